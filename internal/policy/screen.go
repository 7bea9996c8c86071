package policy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Screener evaluates operator-defined advisory rules against a validated
// applicant record. Matching rules attach flags for agent review; they never
// change the decision itself.
type Screener struct {
	env      *cel.Env
	compiled []compiledScreen
}

type compiledScreen struct {
	rule    domain.ScreeningRule
	program cel.Program
}

// NewScreener compiles the screening rules. A rule that fails to compile or
// does not produce a boolean is a configuration defect and fails the load.
func NewScreener(rules []domain.ScreeningRule) (*Screener, error) {
	env, err := cel.NewEnv(
		cel.Variable("credit_score", cel.IntType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("annual_income", cel.DoubleType),
		cel.Variable("loan_to_income", cel.DoubleType),
		cel.Variable("has_bankruptcy", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	s := &Screener{env: env}
	for _, rule := range rules {
		ast, issues := env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("failed to compile screening rule %s: %w", rule.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("screening rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to create program for screening rule %s: %w", rule.ID, err)
		}
		s.compiled = append(s.compiled, compiledScreen{rule: rule, program: program})
	}

	return s, nil
}

// Screen runs every rule against the record and returns the flags for rules
// that matched. A rule that errors at evaluation time is skipped with a
// warning; screening is best-effort by contract.
func (s *Screener) Screen(record domain.ApplicantRecord) []domain.ScreeningFlag {
	if len(s.compiled) == 0 {
		return nil
	}

	activation := map[string]any{
		"credit_score":   int64(record.CreditScore),
		"loan_amount":    record.LoanAmount,
		"annual_income":  record.AnnualIncome,
		"loan_to_income": record.LoanToIncome(),
		"has_bankruptcy": record.HasBankruptcy,
	}

	var flags []domain.ScreeningFlag
	for _, cs := range s.compiled {
		out, _, err := cs.program.Eval(activation)
		if err != nil {
			slog.Warn("screening rule evaluation failed",
				"rule_id", cs.rule.ID,
				"error", err)
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			flags = append(flags, domain.ScreeningFlag{
				RuleID: cs.rule.ID,
				Reason: cs.rule.Reason,
			})
		}
	}

	return flags
}

// Count returns the number of compiled screening rules.
func (s *Screener) Count() int {
	return len(s.compiled)
}

// RuleIDs returns the ids of the compiled rules, in document order.
func (s *Screener) RuleIDs() []string {
	ids := make([]string, 0, len(s.compiled))
	for _, cs := range s.compiled {
		ids = append(ids, cs.rule.ID)
	}
	return ids
}
