package domain

import (
	"context"
	"time"
)

// Repository defines the interface for submission persistence.
// Submissions are append-only: nothing is ever updated or deleted after the
// write, with the single exception of the contact-preference follow-up.
type Repository interface {
	// Submission log
	SaveSubmission(ctx context.Context, sub *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	ListSubmissions(ctx context.Context, limit int) ([]*Submission, error)

	// FindLatestByEmail returns the most recent submission for an email,
	// matched case-insensitively. Returns nil, nil when none exists.
	FindLatestByEmail(ctx context.Context, email string) (*Submission, error)

	// SetContactPreference records the applicant's follow-up choice against
	// an existing submission.
	SetContactPreference(ctx context.Context, id string, wantsContact bool, at time.Time) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
