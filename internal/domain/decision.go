package domain

import "time"

// Decision is the outcome of evaluating an application.
type Decision string

const (
	DecisionPreApproved Decision = "Pre-Approved"
	DecisionConditional Decision = "Conditional"
	DecisionDenied      Decision = "Denied"
)

// ReasonCode identifies exactly why a Decision was reached. The enumeration
// is closed: every decision carries exactly one of these, and the pair is
// what the message catalog keys on.
type ReasonCode string

const (
	ReasonExcellentCreditGoodRatio         ReasonCode = "ExcellentCreditGoodRatio"
	ReasonExcellentCreditBorderlineRatio   ReasonCode = "ExcellentCreditBorderlineRatio"
	ReasonRatioExceedsConditionalCap       ReasonCode = "RatioExceedsConditionalCap"
	ReasonGoodCreditRange                  ReasonCode = "GoodCreditRange"
	ReasonLowCreditRange                   ReasonCode = "LowCreditRange"
	ReasonBankruptcyWithExcellentCredit    ReasonCode = "BankruptcyWithExcellentCredit"
	ReasonBankruptcyWithoutExcellentCredit ReasonCode = "BankruptcyWithoutExcellentCredit"
	ReasonCreditBelowMinimum               ReasonCode = "CreditBelowMinimum"
	ReasonLoanAboveMaximum                 ReasonCode = "LoanAboveMaximum"
)

// ScreeningFlag is an advisory marker attached to a submission when an
// operator-defined screening rule matches. Flags never change the decision;
// they exist for agent review.
type ScreeningFlag struct {
	RuleID string `json:"ruleId"`
	Reason string `json:"reason"`
}

// Submission is one recorded evaluation: the applicant record, the decision
// that was made, and the follow-up state. Submissions are append-only; the
// only field ever updated after the fact is the contact preference.
type Submission struct {
	ID         string          `json:"id"`
	Applicant  ApplicantRecord `json:"applicant"`
	Decision   Decision        `json:"decision"`
	ReasonCode ReasonCode      `json:"reasonCode"`
	Flags      []ScreeningFlag `json:"flags,omitempty"`
	Source     string          `json:"source"`
	CreatedAt  time.Time       `json:"createdAt"`

	ContactRequested *bool      `json:"contactRequested,omitempty"`
	ContactAt        *time.Time `json:"contactAt,omitempty"`
}
