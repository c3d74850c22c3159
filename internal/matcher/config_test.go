package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMatchingConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchingConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*MatchingConfig) {}},
		{name: "negative tolerance", mutate: func(c *MatchingConfig) {
			c.AmountTolerance = decimal.NewFromFloat(-0.01)
		}, wantErr: true},
		{name: "cross tolerance over 100", mutate: func(c *MatchingConfig) {
			c.CrossCurrencyTolerancePercent = 150
		}, wantErr: true},
		{name: "negative high window", mutate: func(c *MatchingConfig) {
			c.HighWindowAfterDays = -1
		}, wantErr: true},
		{name: "low window inside medium window", mutate: func(c *MatchingConfig) {
			c.LowWindowAfterDays = 20
		}, wantErr: true},
		{name: "negative movement tolerance", mutate: func(c *MatchingConfig) {
			c.MovementPaymentToleranceDays = -1
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultMatchingConfig()
			tt.mutate(config)
			if err := config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMatchingConfigClone(t *testing.T) {
	original := DefaultMatchingConfig()
	clone := original.Clone()

	clone.HighWindowAfterDays = 99
	if original.HighWindowAfterDays == 99 {
		t.Error("mutating the clone changed the original")
	}

	var nilConfig *MatchingConfig
	if nilConfig.Clone() != nil {
		t.Error("cloning nil should return nil")
	}
}

func TestConfidenceWindows(t *testing.T) {
	config := DefaultMatchingConfig()

	tests := []struct {
		offset     int
		wantHigh   bool
		wantMedium bool
		wantLow    bool
	}{
		{offset: 0, wantHigh: true, wantMedium: true, wantLow: true},
		{offset: 15, wantHigh: true, wantMedium: true, wantLow: true},
		{offset: 16, wantMedium: true, wantLow: true},
		{offset: 29, wantMedium: true, wantLow: true},
		{offset: 30, wantLow: true},
		{offset: 60, wantLow: true},
		{offset: 61},
		{offset: -2, wantMedium: true, wantLow: true},
		{offset: -3, wantLow: true},
		{offset: -10, wantLow: true},
		{offset: -11},
	}

	for _, tt := range tests {
		if got := config.withinHighWindow(tt.offset); got != tt.wantHigh {
			t.Errorf("withinHighWindow(%d) = %v, want %v", tt.offset, got, tt.wantHigh)
		}
		if got := config.withinMediumWindow(tt.offset); got != tt.wantMedium {
			t.Errorf("withinMediumWindow(%d) = %v, want %v", tt.offset, got, tt.wantMedium)
		}
		if got := config.withinLowWindow(tt.offset); got != tt.wantLow {
			t.Errorf("withinLowWindow(%d) = %v, want %v", tt.offset, got, tt.wantLow)
		}
	}
}
