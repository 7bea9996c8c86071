package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/recorder"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/resubmit"
	"github.com/opensource-finance/kestrel/internal/validate"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store    *policy.Store
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	recorder *recorder.Recorder
	resubmit *resubmit.Service
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(store *policy.Store, repo domain.Repository, cache domain.Cache, bus domain.EventBus, rec *recorder.Recorder, resub *resubmit.Service, version string) *Handler {
	return &Handler{
		store:    store,
		repo:     repo,
		cache:    cache,
		bus:      bus,
		recorder: rec,
		resubmit: resub,
		version:  version,
	}
}

// fieldText accepts a JSON string, number, or boolean and preserves its
// textual form. The validator owns coercion, so form posts and JSON bodies
// go through identical checks.
type fieldText string

func (f *fieldText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = fieldText(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = fieldText(n.String())
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = fieldText(strconv.FormatBool(b))
		return nil
	}

	return errors.New("field must be a string, number, or boolean")
}

// ApplicationRequest is the request body for POST /applications.
type ApplicationRequest struct {
	Name          fieldText `json:"name"`
	Email         fieldText `json:"email"`
	LoanAmount    fieldText `json:"loan_amount"`
	CreditScore   fieldText `json:"credit_score"`
	AnnualIncome  fieldText `json:"annual_income"`
	HasBankruptcy fieldText `json:"has_bankruptcy"`
}

// ApplicationResponse is the response for POST /applications.
type ApplicationResponse struct {
	SubmissionID string                 `json:"submission_id"`
	Decision     string                 `json:"decision"`
	ReasonCode   string                 `json:"reason_code"`
	Message      string                 `json:"message"`
	Flags        []domain.ScreeningFlag `json:"flags,omitempty"`
	Metadata     struct {
		TraceID string `json:"trace_id"`
		TotalMs int64  `json:"total_ms"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// SubmitApplication handles POST /applications.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)
	catalog := h.store.Catalog()

	var req ApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	raw := domain.RawApplication{
		Name:          string(req.Name),
		Email:         string(req.Email),
		LoanAmount:    string(req.LoanAmount),
		CreditScore:   string(req.CreditScore),
		AnnualIncome:  string(req.AnnualIncome),
		HasBankruptcy: string(req.HasBankruptcy),
	}

	record, verr := validate.Applicant(raw)
	if verr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  catalog.ErrorMessage("validation_failed"),
			"fields": verr.Fields,
		})
		return
	}

	// Resubmission window check before any evaluation work.
	status, err := h.resubmit.Check(ctx, record.Email)
	if err != nil {
		slog.Error("resubmission check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": catalog.ErrorMessage("system_error"),
		})
		return
	}
	if status.Blocked {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":          catalog.ErrorMessage("resubmission_blocked"),
			"days_remaining": status.DaysRemaining,
		})
		return
	}

	// Announce the application before deciding.
	if h.bus != nil {
		if payload, err := json.Marshal(record); err == nil {
			if err := h.bus.Publish(ctx, domain.TopicApplicationReceived, payload); err != nil {
				slog.Warn("failed to publish application received event", "error", err)
			}
		}
	}

	d, rc := decision.Evaluate(record, h.store.Rules())
	flags := h.store.Screener().Screen(record)
	message := decision.Compose(d, rc, catalog, record.LoanAmount)

	sub := &domain.Submission{
		ID:         uuid.New().String(),
		Applicant:  record,
		Decision:   d,
		ReasonCode: rc,
		Flags:      flags,
		Source:     "api",
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.recorder.Record(ctx, sub); err != nil {
		slog.Error("failed to enqueue submission", "submission_id", sub.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": catalog.ErrorMessage("system_error"),
		})
		return
	}

	// The row may still be queued; the marker blocks immediate resubmits.
	h.resubmit.Mark(ctx, sub)

	resp := ApplicationResponse{
		SubmissionID: sub.ID,
		Decision:     string(d),
		ReasonCode:   string(rc),
		Message:      message,
		Flags:        flags,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// ListSubmissions handles GET /submissions.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be between 1 and 500",
			})
			return
		}
		limit = n
	}

	subs, err := h.repo.ListSubmissions(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": h.store.Catalog().ErrorMessage("system_error"),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": subs,
		"count":       len(subs),
	})
}

// GetSubmission handles GET /submissions/{id}.
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "submission id is required",
		})
		return
	}

	sub, err := h.repo.GetSubmission(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "submission not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to load submission", "submission_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": h.store.Catalog().ErrorMessage("system_error"),
		})
		return
	}

	writeJSON(w, http.StatusOK, sub)
}

// ContactRequest is the request body for POST /contact.
type ContactRequest struct {
	Email        fieldText `json:"email"`
	WantsContact fieldText `json:"wants_contact"`
}

// ContactPreference handles POST /contact: it records the applicant's
// follow-up choice against their most recent submission.
func (h *Handler) ContactPreference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	catalog := h.store.Catalog()

	var req ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	wantsContact, err := strconv.ParseBool(string(req.WantsContact))
	if err != nil {
		switch string(req.WantsContact) {
		case "yes", "y", "on":
			wantsContact = true
		case "no", "n", "off", "":
			wantsContact = false
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "wants_contact must be yes or no",
			})
			return
		}
	}

	sub, err := h.repo.FindLatestByEmail(ctx, string(req.Email))
	if err != nil {
		slog.Error("failed to look up submission for contact preference", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": catalog.ErrorMessage("system_error"),
		})
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no submission found for this email",
		})
		return
	}

	if err := h.repo.SetContactPreference(ctx, sub.ID, wantsContact, time.Now().UTC()); err != nil {
		slog.Error("failed to set contact preference", "submission_id", sub.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": catalog.ErrorMessage("system_error"),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submission_id": sub.ID,
		"message":       decision.ContactConfirmation(catalog, wantsContact),
	})
}

// GetPolicy handles GET /policy: the active thresholds and screening rule
// ids, never the message catalog internals.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	rules := h.store.Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"creditScoreExcellentThreshold": rules.CreditScoreExcellentThreshold,
		"creditScoreGoodThreshold":      rules.CreditScoreGoodThreshold,
		"creditScoreMinimum":            rules.CreditScoreMinimum,
		"maxLoanAmount":                 rules.MaxLoanAmount,
		"loanToIncomePreApprovedMax":    rules.LoanToIncomePreApprovedMax,
		"loanToIncomeConditionalMax":    rules.LoanToIncomeConditionalMax,
		"screeningRules":                h.store.Screener().RuleIDs(),
	})
}

// ReloadPolicy handles POST /policy/reload: re-read, validate, swap. A bad
// replacement document leaves the prior policy serving.
func (h *Handler) ReloadPolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(); err != nil {
		slog.Error("policy reload failed", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "policy reload rejected, previous policy still active",
		})
		return
	}

	slog.Info("policy reloaded",
		"screening_rules", h.store.Screener().Count(),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "reloaded",
		"screening_rules": h.store.Screener().Count(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
