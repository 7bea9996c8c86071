// Package validate turns raw application input into a fully checked
// applicant record, collecting every field error in one pass.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Credit scores use the standard FICO range.
const (
	CreditScoreFloor   = 300
	CreditScoreCeiling = 850
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// sanitizer strips all HTML from free-text fields before they reach storage
// or a response body.
var sanitizer = bluemonday.StrictPolicy()

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field error found in a single pass. All
// checks always run; the first defect never hides the rest.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("validation failed for %d field(s): %s", len(e.Fields), strings.Join(names, ", "))
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Applicant validates a raw application and returns the typed record. On
// failure the returned *ValidationError lists every offending field. The
// function never panics on any input.
func Applicant(raw domain.RawApplication) (domain.ApplicantRecord, *ValidationError) {
	verr := &ValidationError{}
	var record domain.ApplicantRecord

	name := strings.TrimSpace(sanitizer.Sanitize(raw.Name))
	if name == "" {
		verr.add("name", "name is required")
	} else if len(name) > 200 {
		verr.add("name", "name must be 200 characters or fewer")
	} else {
		record.Name = name
	}

	email := strings.ToLower(strings.TrimSpace(sanitizer.Sanitize(raw.Email)))
	if email == "" {
		verr.add("email", "email is required")
	} else if !emailPattern.MatchString(email) {
		verr.add("email", "email address is not valid")
	} else {
		record.Email = email
	}

	if loan, ok := parseAmount(raw.LoanAmount); !ok {
		verr.add("loan_amount", "loan amount must be a number")
	} else if loan <= 0 {
		verr.add("loan_amount", "loan amount must be greater than zero")
	} else {
		record.LoanAmount = loan
	}

	if score, ok := parseScore(raw.CreditScore); !ok {
		verr.add("credit_score", "credit score must be a whole number")
	} else if score < CreditScoreFloor || score > CreditScoreCeiling {
		verr.add("credit_score", fmt.Sprintf("credit score must be between %d and %d", CreditScoreFloor, CreditScoreCeiling))
	} else {
		record.CreditScore = score
	}

	if income, ok := parseAmount(raw.AnnualIncome); !ok {
		verr.add("annual_income", "annual income must be a number")
	} else if income <= 0 {
		verr.add("annual_income", "annual income must be greater than zero")
	} else {
		record.AnnualIncome = income
	}

	if bankruptcy, ok := parseBool(raw.HasBankruptcy); !ok {
		verr.add("has_bankruptcy", "bankruptcy flag must be yes or no")
	} else {
		record.HasBankruptcy = bankruptcy
	}

	if len(verr.Fields) > 0 {
		return domain.ApplicantRecord{}, verr
	}
	return record, nil
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Tolerate "250,000.00" style input from forms.
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseScore(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, true
	case "false", "no", "n", "0", "off", "":
		// An absent flag means no bankruptcy on file.
		return false, true
	default:
		return false, false
	}
}
