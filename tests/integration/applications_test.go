//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel loan
// pre-approval engine.
//
// These tests verify the COMPLETE submission pipeline:
//
//	Application → Validation → Decision → Explanation → Recorded Submission
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. APPLICATION: Five applicant fields plus a bankruptcy flag. Fields may
//    arrive as strings, numbers, or booleans; validation normalizes them.
//
// 2. DECISION: One of three outcomes with a single reason code:
//   - Pre-Approved  (excellent credit, affordable ratio)
//   - Conditional   (good credit, thin margin, or prior bankruptcy)
//   - Denied        (below the floor or above the ceiling)
//
// 3. SCREENING FLAGS: Advisory CEL rules attached to the response. They
//    never change the decision itself.
//
// 4. RESUBMISSION WINDOW: A repeat application from the same email inside
//    the configured window returns 409.
//
// REQUIRED SETUP: Kestrel must be running with the repository-root
// rules.json and messages.json documents:
//
//	go run cmd/kestrel/main.go
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// uniqueEmail keeps repeat runs clear of the resubmission window.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@integration.example.com", prefix, time.Now().UnixNano())
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

// ApplicationRequest is the payload sent to POST /applications
type ApplicationRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	LoanAmount    any    `json:"loan_amount"`
	CreditScore   any    `json:"credit_score"`
	AnnualIncome  any    `json:"annual_income"`
	HasBankruptcy any    `json:"has_bankruptcy"`
}

// ApplicationResponse is what POST /applications returns
type ApplicationResponse struct {
	SubmissionID string           `json:"submission_id"`
	Decision     string           `json:"decision"`
	ReasonCode   string           `json:"reason_code"`
	Message      string           `json:"message"`
	Flags        []ScreeningFlag  `json:"flags,omitempty"`
	Metadata     ResponseMetadata `json:"metadata"`
}

type ScreeningFlag struct {
	RuleID string `json:"ruleId"`
	Reason string `json:"reason"`
}

type ResponseMetadata struct {
	TraceID string `json:"trace_id"`
	TotalMs int64  `json:"total_ms"`
	Version string `json:"version"`
}

// ErrorResponse covers 400/409 bodies
type ErrorResponse struct {
	Error         string       `json:"error"`
	Fields        []FieldError `json:"fields,omitempty"`
	DaysRemaining int          `json:"days_remaining,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func submit(t *testing.T, config TestConfig, req ApplicationRequest) (int, []byte) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, config.BaseURL+"/applications", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		t.Fatalf("request failed (is Kestrel running at %s?): %v", config.BaseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}

	return resp.StatusCode, respBody
}

func submitOK(t *testing.T, config TestConfig, req ApplicationRequest) ApplicationResponse {
	t.Helper()

	status, body := submit(t, config, req)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var result ApplicationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return result
}

func requireHealthy(t *testing.T, config TestConfig) {
	t.Helper()

	resp, err := http.Get(config.BaseURL + "/health")
	if err != nil {
		t.Skipf("Kestrel not reachable at %s: %v", config.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Skipf("Kestrel unhealthy at %s: status %d", config.BaseURL, resp.StatusCode)
	}
}

// ============================================================================
// Decision Pipeline
// ============================================================================

func TestDecisionOutcomes(t *testing.T) {
	config := getTestConfig()
	requireHealthy(t, config)

	cases := []struct {
		name       string
		req        ApplicationRequest
		decision   string
		reasonCode string
	}{
		{
			name: "excellent credit pre-approved",
			req: ApplicationRequest{
				Name:          "Dana Whitfield",
				Email:         uniqueEmail("preapproved"),
				LoanAmount:    200000,
				CreditScore:   760,
				AnnualIncome:  800000,
				HasBankruptcy: false,
			},
			decision:   "Pre-Approved",
			reasonCode: "ExcellentCreditGoodRatio",
		},
		{
			name: "good credit conditional",
			req: ApplicationRequest{
				Name:          "Ray Okafor",
				Email:         uniqueEmail("conditional"),
				LoanAmount:    100000,
				CreditScore:   700,
				AnnualIncome:  300000,
				HasBankruptcy: false,
			},
			decision:   "Conditional",
			reasonCode: "GoodCreditRange",
		},
		{
			name: "bankruptcy forces conditional",
			req: ApplicationRequest{
				Name:          "Sam Virel",
				Email:         uniqueEmail("bankruptcy"),
				LoanAmount:    50000,
				CreditScore:   790,
				AnnualIncome:  500000,
				HasBankruptcy: true,
			},
			decision:   "Conditional",
			reasonCode: "BankruptcyWithExcellentCredit",
		},
		{
			name: "below credit floor denied",
			req: ApplicationRequest{
				Name:          "Lee Marsh",
				Email:         uniqueEmail("floor"),
				LoanAmount:    50000,
				CreditScore:   540,
				AnnualIncome:  200000,
				HasBankruptcy: false,
			},
			decision:   "Denied",
			reasonCode: "CreditBelowMinimum",
		},
		{
			name: "loan over ceiling denied",
			req: ApplicationRequest{
				Name:          "Pat Crane",
				Email:         uniqueEmail("ceiling"),
				LoanAmount:    600000,
				CreditScore:   780,
				AnnualIncome:  900000,
				HasBankruptcy: false,
			},
			decision:   "Denied",
			reasonCode: "LoanAboveMaximum",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := submitOK(t, config, tc.req)
			if result.Decision != tc.decision {
				t.Errorf("expected decision %q, got %q", tc.decision, result.Decision)
			}
			if result.ReasonCode != tc.reasonCode {
				t.Errorf("expected reason %q, got %q", tc.reasonCode, result.ReasonCode)
			}
			if result.SubmissionID == "" {
				t.Error("expected a submission ID")
			}
			if result.Message == "" {
				t.Error("expected an applicant-facing message")
			}
		})
	}
}

func TestMixedFieldTypes(t *testing.T) {
	config := getTestConfig()
	requireHealthy(t, config)

	result := submitOK(t, config, ApplicationRequest{
		Name:          "Jules Tanaka",
		Email:         uniqueEmail("mixed"),
		LoanAmount:    "250,000.00",
		CreditScore:   "715",
		AnnualIncome:  600000,
		HasBankruptcy: "no",
	})

	if result.Decision != "Conditional" {
		t.Errorf("expected Conditional, got %s", result.Decision)
	}
	if result.ReasonCode != "GoodCreditRange" {
		t.Errorf("expected GoodCreditRange, got %s", result.ReasonCode)
	}
}

func TestValidationCollectsAllErrors(t *testing.T) {
	config := getTestConfig()
	requireHealthy(t, config)

	status, body := submit(t, config, ApplicationRequest{
		Name:          "",
		Email:         "not-an-email",
		LoanAmount:    -5,
		CreditScore:   900,
		AnnualIncome:  0,
		HasBankruptcy: "perhaps",
	})

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", status, body)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if len(errResp.Fields) != 6 {
		t.Errorf("expected 6 field errors, got %d: %v", len(errResp.Fields), errResp.Fields)
	}
}

func TestResubmissionWindow(t *testing.T) {
	config := getTestConfig()
	requireHealthy(t, config)

	email := uniqueEmail("window")
	req := ApplicationRequest{
		Name:          "Rene Castillo",
		Email:         email,
		LoanAmount:    80000,
		CreditScore:   740,
		AnnualIncome:  400000,
		HasBankruptcy: false,
	}

	first := submitOK(t, config, req)
	if first.Decision != "Pre-Approved" {
		t.Fatalf("expected first submission to be Pre-Approved, got %s", first.Decision)
	}

	status, body := submit(t, config, req)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on resubmission, got %d: %s", status, body)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("failed to decode conflict body: %v", err)
	}
	if errResp.DaysRemaining <= 0 {
		t.Errorf("expected positive days_remaining, got %d", errResp.DaysRemaining)
	}
}

func TestSubmissionRetrieval(t *testing.T) {
	config := getTestConfig()
	requireHealthy(t, config)

	result := submitOK(t, config, ApplicationRequest{
		Name:          "Ira Bellweather",
		Email:         uniqueEmail("retrieve"),
		LoanAmount:    120000,
		CreditScore:   730,
		AnnualIncome:  500000,
		HasBankruptcy: false,
	})

	// The recorder persists asynchronously; poll briefly.
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(config.BaseURL + "/submissions/" + result.SubmissionID)
		if err != nil {
			t.Fatalf("get submission failed: %v", err)
		}
		status := resp.StatusCode
		resp.Body.Close()

		if status == http.StatusOK {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("submission %s never became readable, last status %d", result.SubmissionID, status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestContactPreference(t *testing.T) {
	config := getTestConfig()
	requireHealthy(t, config)

	email := uniqueEmail("contact")
	submitOK(t, config, ApplicationRequest{
		Name:          "Noor Haddad",
		Email:         email,
		LoanAmount:    90000,
		CreditScore:   700,
		AnnualIncome:  350000,
		HasBankruptcy: false,
	})

	// Wait for the async write so the follow-up can find the row.
	time.Sleep(200 * time.Millisecond)

	body, _ := json.Marshal(map[string]any{
		"email":         email,
		"wants_contact": "yes",
	})

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Post(config.BaseURL+"/contact", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("contact request failed: %v", err)
		}
		status := resp.StatusCode
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if status == http.StatusOK {
			var out map[string]any
			if err := json.Unmarshal(respBody, &out); err != nil {
				t.Fatalf("failed to decode contact response: %v", err)
			}
			if out["message"] == "" {
				t.Error("expected a confirmation message")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("contact preference never accepted, last status %d: %s", status, respBody)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestPolicyEndpoint(t *testing.T) {
	config := getTestConfig()
	requireHealthy(t, config)

	resp, err := http.Get(config.BaseURL + "/policy")
	if err != nil {
		t.Fatalf("get policy failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var policy map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&policy); err != nil {
		t.Fatalf("failed to decode policy: %v", err)
	}
	if _, ok := policy["creditScoreMinimum"]; !ok {
		t.Errorf("expected creditScoreMinimum in policy, got %v", policy)
	}
}
