// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

const defaultListLimit = 100

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const submissionColumns = `id, name, email, loan_amount, credit_score, annual_income,
	   has_bankruptcy, decision, reason_code, flags, source,
	   contact_requested, contact_at, created_at`

// SaveSubmission appends one submission to the log.
func (r *SQLRepository) SaveSubmission(ctx context.Context, sub *domain.Submission) error {
	if sub == nil || sub.ID == "" {
		return fmt.Errorf("%w: submission id is required", ErrInvalidInput)
	}

	flags, _ := json.Marshal(sub.Flags)

	bankruptcy := 0
	if sub.Applicant.HasBankruptcy {
		bankruptcy = 1
	}

	query := `
		INSERT INTO submissions (
			id, name, email, loan_amount, credit_score, annual_income,
			has_bankruptcy, decision, reason_code, flags, source,
			contact_requested, contact_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		sub.ID,
		sub.Applicant.Name, strings.ToLower(sub.Applicant.Email),
		sub.Applicant.LoanAmount, sub.Applicant.CreditScore, sub.Applicant.AnnualIncome,
		bankruptcy,
		string(sub.Decision), string(sub.ReasonCode), string(flags),
		sub.Source,
		nullableBool(sub.ContactRequested), sub.ContactAt,
		sub.CreatedAt,
	)
	return err
}

// GetSubmission retrieves a submission by ID.
func (r *SQLRepository) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: submission id is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE id = ?
	`

	sub, err := r.scanSubmission(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// ListSubmissions retrieves the most recent submissions, newest first.
func (r *SQLRepository) ListSubmissions(ctx context.Context, limit int) ([]*domain.Submission, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*domain.Submission
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// FindLatestByEmail returns the most recent submission for an email address.
// Emails are stored lowercased, so the match is case-insensitive.
// Returns nil, nil when no submission exists.
func (r *SQLRepository) FindLatestByEmail(ctx context.Context, email string) (*domain.Submission, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}

	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE email = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	sub, err := r.scanSubmission(r.db.QueryRowContext(ctx, r.rebind(query), strings.ToLower(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// SetContactPreference records the applicant's follow-up choice. This is the
// only mutation the log permits.
func (r *SQLRepository) SetContactPreference(ctx context.Context, id string, wantsContact bool, at time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: submission id is required", ErrInvalidInput)
	}

	requested := 0
	if wantsContact {
		requested = 1
	}

	query := `
		UPDATE submissions
		SET contact_requested = ?, contact_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), requested, at, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanSubmission(row scanner) (*domain.Submission, error) {
	var sub domain.Submission
	var flags string
	var bankruptcy int
	var decision, reasonCode string
	var contactRequested sql.NullInt64
	var contactAt sql.NullTime

	err := row.Scan(
		&sub.ID,
		&sub.Applicant.Name, &sub.Applicant.Email,
		&sub.Applicant.LoanAmount, &sub.Applicant.CreditScore, &sub.Applicant.AnnualIncome,
		&bankruptcy,
		&decision, &reasonCode, &flags,
		&sub.Source,
		&contactRequested, &contactAt,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Applicant.HasBankruptcy = bankruptcy == 1
	sub.Decision = domain.Decision(decision)
	sub.ReasonCode = domain.ReasonCode(reasonCode)

	if flags != "" && flags != "null" {
		json.Unmarshal([]byte(flags), &sub.Flags)
	}
	if contactRequested.Valid {
		v := contactRequested.Int64 == 1
		sub.ContactRequested = &v
	}
	if contactAt.Valid {
		t := contactAt.Time
		sub.ContactAt = &t
	}

	return &sub, nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
