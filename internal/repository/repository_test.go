package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSubmission(email string, createdAt time.Time) *domain.Submission {
	return &domain.Submission{
		ID: uuid.New().String(),
		Applicant: domain.ApplicantRecord{
			Name:          "Sam Ortiz",
			Email:         email,
			LoanAmount:    250000,
			CreditScore:   735,
			AnnualIncome:  900000,
			HasBankruptcy: false,
		},
		Decision:   domain.DecisionPreApproved,
		ReasonCode: domain.ReasonExcellentCreditGoodRatio,
		Flags: []domain.ScreeningFlag{
			{RuleID: "jumbo-loan", Reason: "loan amount above 200k"},
		},
		Source:    "api",
		CreatedAt: createdAt,
	}
}

func TestSaveAndGetSubmission(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub := testSubmission("sam@example.com", time.Now().UTC())
	if err := repo.SaveSubmission(ctx, sub); err != nil {
		t.Fatalf("SaveSubmission failed: %v", err)
	}

	got, err := repo.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission failed: %v", err)
	}

	if got.ID != sub.ID {
		t.Errorf("id: got %q, want %q", got.ID, sub.ID)
	}
	if got.Applicant.Email != "sam@example.com" {
		t.Errorf("email: got %q", got.Applicant.Email)
	}
	if got.Decision != domain.DecisionPreApproved || got.ReasonCode != domain.ReasonExcellentCreditGoodRatio {
		t.Errorf("unexpected decision (%q, %q)", got.Decision, got.ReasonCode)
	}
	if len(got.Flags) != 1 || got.Flags[0].RuleID != "jumbo-loan" {
		t.Errorf("flags not round-tripped: %+v", got.Flags)
	}
	if got.ContactRequested != nil {
		t.Error("contact preference should be unset")
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetSubmission(context.Background(), uuid.New().String())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListSubmissions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		sub := testSubmission("list@example.com", base.Add(time.Duration(i)*time.Minute))
		if err := repo.SaveSubmission(ctx, sub); err != nil {
			t.Fatalf("SaveSubmission failed: %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		subs, err := repo.ListSubmissions(ctx, 10)
		if err != nil {
			t.Fatalf("ListSubmissions failed: %v", err)
		}
		if len(subs) != 5 {
			t.Fatalf("expected 5 submissions, got %d", len(subs))
		}
		for i := 1; i < len(subs); i++ {
			if subs[i].CreatedAt.After(subs[i-1].CreatedAt) {
				t.Errorf("submissions not ordered newest first at %d", i)
			}
		}
	})

	t.Run("limit applied", func(t *testing.T) {
		subs, err := repo.ListSubmissions(ctx, 2)
		if err != nil {
			t.Fatalf("ListSubmissions failed: %v", err)
		}
		if len(subs) != 2 {
			t.Errorf("expected 2 submissions, got %d", len(subs))
		}
	})
}

func TestFindLatestByEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	older := testSubmission("casey@example.com", time.Now().UTC().Add(-48*time.Hour))
	newer := testSubmission("casey@example.com", time.Now().UTC())
	for _, sub := range []*domain.Submission{older, newer} {
		if err := repo.SaveSubmission(ctx, sub); err != nil {
			t.Fatalf("SaveSubmission failed: %v", err)
		}
	}

	t.Run("returns most recent", func(t *testing.T) {
		got, err := repo.FindLatestByEmail(ctx, "casey@example.com")
		if err != nil {
			t.Fatalf("FindLatestByEmail failed: %v", err)
		}
		if got == nil || got.ID != newer.ID {
			t.Errorf("expected newest submission %q, got %+v", newer.ID, got)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		got, err := repo.FindLatestByEmail(ctx, "Casey@Example.COM")
		if err != nil {
			t.Fatalf("FindLatestByEmail failed: %v", err)
		}
		if got == nil || got.ID != newer.ID {
			t.Error("expected case-insensitive match")
		}
	})

	t.Run("no rows means nil nil", func(t *testing.T) {
		got, err := repo.FindLatestByEmail(ctx, "nobody@example.com")
		if err != nil {
			t.Fatalf("FindLatestByEmail failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func TestSetContactPreference(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub := testSubmission("pref@example.com", time.Now().UTC())
	if err := repo.SaveSubmission(ctx, sub); err != nil {
		t.Fatalf("SaveSubmission failed: %v", err)
	}

	at := time.Now().UTC()
	if err := repo.SetContactPreference(ctx, sub.ID, true, at); err != nil {
		t.Fatalf("SetContactPreference failed: %v", err)
	}

	got, err := repo.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubmission failed: %v", err)
	}
	if got.ContactRequested == nil || !*got.ContactRequested {
		t.Error("contact preference should be recorded as true")
	}
	if got.ContactAt == nil {
		t.Error("contact timestamp should be recorded")
	}

	t.Run("unknown id", func(t *testing.T) {
		err := repo.SetContactPreference(ctx, uuid.New().String(), false, at)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPing(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
