package enums

import "fmt"

// QuotePhase is the visible state of the storefront quote controller.
type QuotePhase string

const (
	QuotePhaseIdle        QuotePhase = "idle"
	QuotePhasePending     QuotePhase = "pending"
	QuotePhaseSettled     QuotePhase = "settled"
	QuotePhaseFailed      QuotePhase = "failed"
	QuotePhaseRateLimited QuotePhase = "rate_limited"
)

var validQuotePhases = []QuotePhase{
	QuotePhaseIdle,
	QuotePhasePending,
	QuotePhaseSettled,
	QuotePhaseFailed,
	QuotePhaseRateLimited,
}

// String implements fmt.Stringer.
func (q QuotePhase) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuotePhase.
func (q QuotePhase) IsValid() bool {
	for _, candidate := range validQuotePhases {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuotePhase converts raw input into a QuotePhase.
func ParseQuotePhase(value string) (QuotePhase, error) {
	for _, candidate := range validQuotePhases {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote phase %q", value)
}
