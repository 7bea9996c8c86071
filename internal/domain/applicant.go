// Package domain defines the core interfaces and types for Kestrel.
package domain

// RawApplication is the untyped field set as it arrives at the boundary.
// Every field is text: the validator owns coercion, so form posts and JSON
// bodies are treated identically.
type RawApplication struct {
	Name          string
	Email         string
	LoanAmount    string
	CreditScore   string
	AnnualIncome  string
	HasBankruptcy string
}

// ApplicantRecord is a fully validated application. The decision engine
// requires every field to be present and individually valid; constructing
// one without going through the validator voids that guarantee.
type ApplicantRecord struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	LoanAmount    float64 `json:"loanAmount"`
	CreditScore   int     `json:"creditScore"`
	AnnualIncome  float64 `json:"annualIncome"`
	HasBankruptcy bool    `json:"hasBankruptcy"`
}

// LoanToIncome returns the affordability ratio. AnnualIncome is guaranteed
// positive by the validator, so the division is always defined.
func (a ApplicantRecord) LoanToIncome() float64 {
	return a.LoanAmount / a.AnnualIncome
}
