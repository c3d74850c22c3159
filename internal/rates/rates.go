// Package rates supplies historical exchange rates to the cross-currency
// equivalence checks. Providers are constructed and injected explicitly; the
// matching core never reaches for a package-level singleton.
package rates

import (
	"sort"
	"time"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
)

// Provider resolves the exchange rate from a foreign currency into the local
// currency for a given date. The boolean result is false when no rate is
// known for that currency/date.
type Provider interface {
	RateFor(currency models.Currency, date time.Time) (decimal.Decimal, bool)
}

// RatePoint is one dated rate observation.
type RatePoint struct {
	Date time.Time
	Rate decimal.Decimal
}

// StaticProvider serves rates from an in-memory table. Lookups resolve to the
// most recent observation at or before the requested date.
type StaticProvider struct {
	points map[models.Currency][]RatePoint
}

// NewStaticProvider creates an empty static rate table.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		points: make(map[models.Currency][]RatePoint),
	}
}

// Add records a rate observation, keeping the per-currency series sorted.
func (sp *StaticProvider) Add(currency models.Currency, date time.Time, rate decimal.Decimal) {
	series := append(sp.points[currency], RatePoint{Date: date, Rate: rate})
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})
	sp.points[currency] = series
}

// RateFor returns the most recent rate at or before the requested date.
func (sp *StaticProvider) RateFor(currency models.Currency, date time.Time) (decimal.Decimal, bool) {
	series := sp.points[currency]
	if len(series) == 0 {
		return decimal.Zero, false
	}

	// First observation strictly after the date marks the upper bound.
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].Date.After(date)
	})
	if idx == 0 {
		return decimal.Zero, false
	}
	return series[idx-1].Rate, true
}
