package decision

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const loanAmountPlaceholder = "${loan_amount}"

// Compose renders the user-facing explanation for a decision. Lookup order:
// the catalog entry for the exact (decision, reason code) pair, then the
// per-decision generic message, then a built-in last-resort line. A miss is
// logged at warn level but never surfaces to the caller.
func Compose(d domain.Decision, rc domain.ReasonCode, catalog *domain.MessageCatalog, loanAmount float64) string {
	msg, ok := catalog.Lookup(d, rc)
	if !ok {
		slog.Warn("message catalog miss, using generic fallback",
			"decision", string(d),
			"reason_code", string(rc))
		msg, ok = catalog.GenericFor(d)
	}
	if !ok {
		slog.Warn("message catalog has no generic entry",
			"decision", string(d))
		msg = builtinMessage(d)
	}

	if strings.Contains(msg, loanAmountPlaceholder) {
		msg = strings.ReplaceAll(msg, loanAmountPlaceholder, formatAmount(loanAmount))
	}

	return msg
}

// ContactConfirmation returns the catalog's confirmation text for a contact
// preference, with a built-in fallback.
func ContactConfirmation(catalog *domain.MessageCatalog, wantsContact bool) string {
	key := "no"
	if wantsContact {
		key = "yes"
	}
	if msg, ok := catalog.ContactPreference[key]; ok {
		return msg
	}
	if wantsContact {
		return "Thank you. A loan specialist will contact you."
	}
	return "Thank you. We will not contact you about this application."
}

func builtinMessage(d domain.Decision) string {
	switch d {
	case domain.DecisionPreApproved:
		return "Your application has been pre-approved."
	case domain.DecisionConditional:
		return "Your application requires further review."
	default:
		return "Your application could not be pre-approved at this time."
	}
}

// formatAmount renders a dollar amount with a currency sign, thousands
// separators, and two decimal places, e.g. 250000 -> "$250,000.00".
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)

	dot := strings.IndexByte(s, '.')
	intPart, fracPart := s[:dot], s[dot:]

	neg := false
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	b.WriteString(fracPart)
	return b.String()
}
