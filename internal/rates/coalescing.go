package rates

import (
	"fmt"
	"sync"
	"time"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// FetchFunc resolves a rate from a slow source (an HTTP rate service, a
// spreadsheet of official quotes). It is only called on cache misses.
type FetchFunc func(currency models.Currency, date time.Time) (decimal.Decimal, error)

// CoalescingProvider caches fetched rates keyed by currency and day, and
// collapses concurrent identical lookups into a single in-flight fetch.
// Entries live until explicitly invalidated on write.
type CoalescingProvider struct {
	fetch FetchFunc

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]decimal.Decimal
}

// NewCoalescingProvider wraps a fetch function with caching and coalescing.
func NewCoalescingProvider(fetch FetchFunc) *CoalescingProvider {
	return &CoalescingProvider{
		fetch: fetch,
		cache: make(map[string]decimal.Decimal),
	}
}

// RateFor implements Provider. Failed fetches are reported as missing rates;
// the matchers treat those candidates as non-comparable rather than erroring.
func (cp *CoalescingProvider) RateFor(currency models.Currency, date time.Time) (decimal.Decimal, bool) {
	key := rateKey(currency, date)

	cp.mu.RLock()
	if rate, ok := cp.cache[key]; ok {
		cp.mu.RUnlock()
		return rate, true
	}
	cp.mu.RUnlock()

	value, err, _ := cp.group.Do(key, func() (interface{}, error) {
		rate, err := cp.fetch(currency, date)
		if err != nil {
			return decimal.Zero, err
		}
		cp.mu.Lock()
		cp.cache[key] = rate
		cp.mu.Unlock()
		return rate, nil
	})
	if err != nil {
		return decimal.Zero, false
	}
	return value.(decimal.Decimal), true
}

// Invalidate drops the cached rate for a currency/day so the next lookup
// re-fetches. Call after writing a corrected rate upstream.
func (cp *CoalescingProvider) Invalidate(currency models.Currency, date time.Time) {
	key := rateKey(currency, date)
	cp.mu.Lock()
	delete(cp.cache, key)
	cp.mu.Unlock()
	cp.group.Forget(key)
}

func rateKey(currency models.Currency, date time.Time) string {
	return fmt.Sprintf("%s@%s", currency, date.Format("2006-01-02"))
}
