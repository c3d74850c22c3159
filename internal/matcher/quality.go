package matcher

import (
	"fmt"

	"conciliador/internal/models"
)

// MatchQuality is the comparable value of a proposed match. It is never
// persisted; it exists only so that every "better match" decision goes
// through the same total ordering.
type MatchQuality struct {
	Confidence        models.MatchConfidence
	IdentityMatched   bool
	DateProximityDays int
}

// CompareQuality orders two qualities: confidence tier first, then the
// identity-match flag, then date proximity (closer wins). The result is
// positive when a is strictly better than b, negative when worse, and zero
// when they are equivalent.
func CompareQuality(a, b MatchQuality) int {
	if a.Confidence != b.Confidence {
		return int(a.Confidence) - int(b.Confidence)
	}
	if a.IdentityMatched != b.IdentityMatched {
		if a.IdentityMatched {
			return 1
		}
		return -1
	}
	return b.DateProximityDays - a.DateProximityDays
}

// IsBetterMatch reports whether a is strictly better than b. Equal quality is
// never "better": displacement on ties would churn assignments forever.
func IsBetterMatch(a, b MatchQuality) bool {
	return CompareQuality(a, b) > 0
}

// String returns a short human-readable representation of the quality.
func (q MatchQuality) String() string {
	return fmt.Sprintf("MatchQuality{%s, identity: %t, ±%dd}", q.Confidence, q.IdentityMatched, q.DateProximityDays)
}
