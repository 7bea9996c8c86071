package domain

import "fmt"

// RuleConfiguration holds the thresholds and guardrails the decision engine
// evaluates against. It is loaded once from an external document, validated,
// and treated as read-only for the life of the process (an explicit reload
// swaps in a whole new value).
type RuleConfiguration struct {
	CreditScoreExcellentThreshold int     `json:"creditScoreExcellentThreshold"`
	CreditScoreGoodThreshold      int     `json:"creditScoreGoodThreshold"`
	CreditScoreMinimum            int     `json:"creditScoreMinimum"`
	MaxLoanAmount                 float64 `json:"maxLoanAmount"`
	LoanToIncomePreApprovedMax    float64 `json:"loanToIncomePreApprovedMax"`
	LoanToIncomeConditionalMax    float64 `json:"loanToIncomeConditionalMax"`

	// ScreeningRules are optional operator-defined CEL expressions that
	// attach advisory flags to submissions. They do not affect the decision.
	ScreeningRules []ScreeningRule `json:"screeningRules,omitempty"`
}

// ScreeningRule is one operator-defined advisory rule.
type ScreeningRule struct {
	ID         string `json:"id"`
	Reason     string `json:"reason"`
	Expression string `json:"expression"`
}

// Validate checks the structural invariants of the configuration. A value
// that fails validation must never reach the engine.
func (c RuleConfiguration) Validate() error {
	if c.CreditScoreExcellentThreshold <= c.CreditScoreGoodThreshold {
		return fmt.Errorf("excellent threshold (%d) must be greater than good threshold (%d)",
			c.CreditScoreExcellentThreshold, c.CreditScoreGoodThreshold)
	}
	if c.CreditScoreGoodThreshold <= c.CreditScoreMinimum {
		return fmt.Errorf("good threshold (%d) must be greater than minimum (%d)",
			c.CreditScoreGoodThreshold, c.CreditScoreMinimum)
	}
	if c.MaxLoanAmount <= 0 {
		return fmt.Errorf("max loan amount must be positive, got %.2f", c.MaxLoanAmount)
	}
	if c.LoanToIncomePreApprovedMax <= 0 {
		return fmt.Errorf("pre-approved ratio cap must be positive, got %.4f", c.LoanToIncomePreApprovedMax)
	}
	if c.LoanToIncomePreApprovedMax >= c.LoanToIncomeConditionalMax {
		return fmt.Errorf("pre-approved ratio cap (%.4f) must be less than conditional cap (%.4f)",
			c.LoanToIncomePreApprovedMax, c.LoanToIncomeConditionalMax)
	}
	for i, r := range c.ScreeningRules {
		if r.ID == "" || r.Expression == "" {
			return fmt.Errorf("screening rule %d: id and expression are required", i)
		}
	}
	return nil
}

// MessageCatalog maps (decision, reason code) pairs to user-facing text.
// Immutable after load, like RuleConfiguration.
type MessageCatalog struct {
	// Decisions keys are "<decision>.<reason_code>".
	Decisions map[string]string `json:"decisions"`

	// Generic holds per-decision fallbacks used when a specific reason code
	// has no entry.
	Generic map[string]string `json:"generic"`

	// Errors holds user-safe error strings keyed by condition.
	Errors map[string]string `json:"errors"`

	// ContactPreference holds confirmation text keyed by "yes"/"no".
	ContactPreference map[string]string `json:"contactPreference"`
}

// CatalogKey builds the lookup key for a decision/reason pair.
func CatalogKey(d Decision, rc ReasonCode) string {
	return string(d) + "." + string(rc)
}

// Lookup returns the message for a specific decision/reason pair.
func (m *MessageCatalog) Lookup(d Decision, rc ReasonCode) (string, bool) {
	msg, ok := m.Decisions[CatalogKey(d, rc)]
	return msg, ok
}

// GenericFor returns the per-decision fallback message.
func (m *MessageCatalog) GenericFor(d Decision) (string, bool) {
	msg, ok := m.Generic[string(d)]
	return msg, ok
}

// ErrorMessage returns a user-safe error string, falling back to the
// catalog's system error and then to a built-in line. Callers can always
// show the result to an end user.
func (m *MessageCatalog) ErrorMessage(key string) string {
	if msg, ok := m.Errors[key]; ok {
		return msg
	}
	if msg, ok := m.Errors["system_error"]; ok {
		return msg
	}
	return "Something went wrong. Please try again later."
}

// Validate checks that the catalog can serve every decision.
func (m *MessageCatalog) Validate() error {
	if len(m.Decisions) == 0 {
		return fmt.Errorf("catalog has no decision messages")
	}
	for _, d := range []Decision{DecisionPreApproved, DecisionConditional, DecisionDenied} {
		if _, ok := m.Generic[string(d)]; !ok {
			return fmt.Errorf("catalog missing generic message for decision %q", d)
		}
	}
	return nil
}
