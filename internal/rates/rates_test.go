package rates

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"conciliador/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStaticProviderRateFor(t *testing.T) {
	provider := NewStaticProvider()
	provider.Add(models.CurrencyUSD, day(2025, 3, 10), decimal.NewFromInt(1020))
	provider.Add(models.CurrencyUSD, day(2025, 3, 1), decimal.NewFromInt(1000))
	provider.Add(models.CurrencyUSD, day(2025, 3, 20), decimal.NewFromInt(1050))

	tests := []struct {
		name     string
		currency models.Currency
		date     time.Time
		want     string
		wantOK   bool
	}{
		{name: "exact observation", currency: models.CurrencyUSD, date: day(2025, 3, 10), want: "1020", wantOK: true},
		{name: "between observations uses earlier", currency: models.CurrencyUSD, date: day(2025, 3, 15), want: "1020", wantOK: true},
		{name: "after last observation", currency: models.CurrencyUSD, date: day(2025, 4, 1), want: "1050", wantOK: true},
		{name: "before first observation", currency: models.CurrencyUSD, date: day(2025, 2, 28), wantOK: false},
		{name: "unknown currency", currency: models.Currency("EUR"), date: day(2025, 3, 10), wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := provider.RateFor(tt.currency, tt.date)
			if ok != tt.wantOK {
				t.Fatalf("RateFor() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && rate.String() != tt.want {
				t.Errorf("RateFor() = %s, want %s", rate, tt.want)
			}
		})
	}
}

func TestCoalescingProviderCachesFetches(t *testing.T) {
	var calls int32
	provider := NewCoalescingProvider(func(currency models.Currency, date time.Time) (decimal.Decimal, error) {
		atomic.AddInt32(&calls, 1)
		return decimal.NewFromInt(1000), nil
	})

	for i := 0; i < 3; i++ {
		rate, ok := provider.RateFor(models.CurrencyUSD, day(2025, 3, 10))
		if !ok {
			t.Fatal("expected a rate")
		}
		if rate.String() != "1000" {
			t.Fatalf("rate = %s, want 1000", rate)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}

	// A different day is a different cache key.
	provider.RateFor(models.CurrencyUSD, day(2025, 3, 11))
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch called %d times after second day, want 2", got)
	}
}

func TestCoalescingProviderReportsFetchFailure(t *testing.T) {
	provider := NewCoalescingProvider(func(currency models.Currency, date time.Time) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("rate service unavailable")
	})

	if _, ok := provider.RateFor(models.CurrencyUSD, day(2025, 3, 10)); ok {
		t.Error("failed fetch should report a missing rate")
	}
}

func TestCoalescingProviderInvalidate(t *testing.T) {
	var calls int32
	provider := NewCoalescingProvider(func(currency models.Currency, date time.Time) (decimal.Decimal, error) {
		return decimal.NewFromInt(int64(atomic.AddInt32(&calls, 1))), nil
	})

	first, _ := provider.RateFor(models.CurrencyUSD, day(2025, 3, 10))
	provider.Invalidate(models.CurrencyUSD, day(2025, 3, 10))
	second, _ := provider.RateFor(models.CurrencyUSD, day(2025, 3, 10))

	if first.Equal(second) {
		t.Error("invalidated entry should be re-fetched")
	}
}

func TestCoalescingProviderConcurrentLookups(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	provider := NewCoalescingProvider(func(currency models.Currency, date time.Time) (decimal.Decimal, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return decimal.NewFromInt(1000), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			provider.RateFor(models.CurrencyUSD, day(2025, 3, 10))
		}()
	}

	// Give the goroutines a moment to pile onto the same key, then release.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times for coalesced lookups, want 1", got)
	}
}
