// Package decision implements the pre-approval decision engine and the
// explanation composer.
package decision

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Evaluate maps a validated applicant record and a rule configuration to a
// decision and reason code. It is pure and deterministic: the guards below
// are checked in order and the first match wins, so every input lands on
// exactly one (Decision, ReasonCode) pair.
//
// The record must have passed validation; Evaluate does not re-check fields.
func Evaluate(record domain.ApplicantRecord, cfg domain.RuleConfiguration) (domain.Decision, domain.ReasonCode) {
	// Hard guardrails come first, before any tier logic.
	if record.CreditScore < cfg.CreditScoreMinimum {
		return domain.DecisionDenied, domain.ReasonCreditBelowMinimum
	}
	if record.LoanAmount > cfg.MaxLoanAmount {
		return domain.DecisionDenied, domain.ReasonLoanAboveMaximum
	}

	excellent := record.CreditScore >= cfg.CreditScoreExcellentThreshold

	// Bankruptcy branches before any ratio tiering.
	if record.HasBankruptcy {
		if excellent {
			return domain.DecisionConditional, domain.ReasonBankruptcyWithExcellentCredit
		}
		return domain.DecisionDenied, domain.ReasonBankruptcyWithoutExcellentCredit
	}

	if excellent {
		ratio := record.LoanToIncome()
		switch {
		case ratio <= cfg.LoanToIncomePreApprovedMax:
			return domain.DecisionPreApproved, domain.ReasonExcellentCreditGoodRatio
		case ratio <= cfg.LoanToIncomeConditionalMax:
			return domain.DecisionConditional, domain.ReasonExcellentCreditBorderlineRatio
		default:
			return domain.DecisionDenied, domain.ReasonRatioExceedsConditionalCap
		}
	}

	// The good tier routes to manual review regardless of ratio. Ratio
	// tiering below the excellent threshold is pending product sign-off;
	// until then the affordability ratio is deliberately not consulted here.
	if record.CreditScore >= cfg.CreditScoreGoodThreshold {
		return domain.DecisionConditional, domain.ReasonGoodCreditRange
	}

	return domain.DecisionDenied, domain.ReasonLowCreditRange
}
