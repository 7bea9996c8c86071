// Package resubmit enforces the resubmission window: one application per
// email address per window.
package resubmit

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Service answers whether a new application from an email is currently
// blocked by a prior submission. The cache is consulted first; the
// repository is the source of truth on a miss.
type Service struct {
	repo       domain.Repository
	cache      domain.Cache
	windowDays int
}

// Status is the outcome of a resubmission check.
type Status struct {
	Blocked       bool
	DaysRemaining int
	Previous      *domain.SubmissionMarker
}

// New creates a resubmission service. windowDays of 0 disables the check.
func New(repo domain.Repository, cache domain.Cache, windowDays int) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		windowDays: windowDays,
	}
}

// Window returns the configured window length.
func (s *Service) Window() time.Duration {
	return time.Duration(s.windowDays) * 24 * time.Hour
}

// Check reports whether a prior submission from this email blocks a new one.
// A cache error degrades to the repository rather than failing the check.
func (s *Service) Check(ctx context.Context, email string) (Status, error) {
	if s.windowDays <= 0 {
		return Status{}, nil
	}

	if s.cache != nil {
		marker, err := s.cache.GetMarker(ctx, email)
		if err != nil {
			slog.Warn("resubmission marker lookup failed, falling back to repository",
				"error", err)
		} else if marker != nil {
			return s.statusFor(marker), nil
		}
	}

	prev, err := s.repo.FindLatestByEmail(ctx, email)
	if err != nil {
		return Status{}, err
	}
	if prev == nil {
		return Status{}, nil
	}

	marker := &domain.SubmissionMarker{
		SubmissionID: prev.ID,
		Email:        prev.Applicant.Email,
		CreatedAt:    prev.CreatedAt,
	}

	status := s.statusFor(marker)
	if status.Blocked && s.cache != nil {
		remaining := s.Window() - time.Since(marker.CreatedAt)
		_ = s.cache.SetMarker(ctx, email, marker, remaining)
	}

	return status, nil
}

// Mark records a fresh submission so later checks block without a repository
// round trip. Call it as soon as the submission id is assigned; the recorder
// may not have flushed the row yet.
func (s *Service) Mark(ctx context.Context, sub *domain.Submission) {
	if s.windowDays <= 0 || s.cache == nil {
		return
	}

	marker := &domain.SubmissionMarker{
		SubmissionID: sub.ID,
		Email:        sub.Applicant.Email,
		CreatedAt:    sub.CreatedAt,
	}
	if err := s.cache.SetMarker(ctx, sub.Applicant.Email, marker, s.Window()); err != nil {
		slog.Warn("failed to cache resubmission marker",
			"submission_id", sub.ID,
			"error", err)
	}
}

func (s *Service) statusFor(marker *domain.SubmissionMarker) Status {
	elapsed := time.Since(marker.CreatedAt)
	daysSince := int(elapsed.Hours() / 24)
	if daysSince >= s.windowDays {
		return Status{}
	}

	return Status{
		Blocked:       true,
		DaysRemaining: s.windowDays - daysSince,
		Previous:      marker,
	}
}
