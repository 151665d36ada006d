package connectors

import (
	"fmt"
	"strings"

	"hlexecutor/src/model"
)

// Substrings the ledger embeds in rejection messages, mapped to the typed
// errors the callers branch on. Matching is case-insensitive.
var ledgerErrorClasses = []struct {
	needle string
	err    error
}{
	{"insufficient", model.ErrInsufficientFunds},
	{"rate limit", model.ErrRateLimited},
	{"too many requests", model.ErrRateLimited},
}

// classifyLedgerError turns a raw ledger failure body into a typed error,
// defaulting to ErrAPI for anything unrecognized.
func classifyLedgerError(message string) error {
	lowered := strings.ToLower(message)
	for _, class := range ledgerErrorClasses {
		if strings.Contains(lowered, class.needle) {
			return fmt.Errorf("%w: %s", class.err, message)
		}
	}
	return fmt.Errorf("%w: %s", model.ErrAPI, message)
}
