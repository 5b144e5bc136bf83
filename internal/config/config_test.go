package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != ":3001" {
		t.Errorf("Expected default port :3001, got %s", cfg.Server.Port)
	}
	if cfg.Cache.QuotesTTL != 60*time.Second {
		t.Errorf("Expected quotes ttl 60s, got %v", cfg.Cache.QuotesTTL)
	}
	if cfg.Cache.IndexTTL != 300*time.Second {
		t.Errorf("Expected index ttl 300s, got %v", cfg.Cache.IndexTTL)
	}
	if cfg.Client.ThresholdMode != "strict" {
		t.Errorf("Expected strict threshold mode, got %s", cfg.Client.ThresholdMode)
	}
	if cfg.Market.SensexRatio != 3.3 {
		t.Errorf("Expected sensex ratio 3.3, got %v", cfg.Market.SensexRatio)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":8080")
	t.Setenv("CACHE_QUOTES_TTL", "5s")
	t.Setenv("CLIENT_THRESHOLD_MODE", "inclusive")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != ":8080" {
		t.Errorf("Expected port :8080, got %s", cfg.Server.Port)
	}
	if cfg.Cache.QuotesTTL != 5*time.Second {
		t.Errorf("Expected quotes ttl 5s, got %v", cfg.Cache.QuotesTTL)
	}
	if cfg.Client.ThresholdMode != "inclusive" {
		t.Errorf("Expected inclusive threshold mode, got %s", cfg.Client.ThresholdMode)
	}
}

func TestLoad_RejectsUnknownThresholdMode(t *testing.T) {
	t.Setenv("CLIENT_THRESHOLD_MODE", "fuzzy")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unknown threshold mode")
	}
}

func TestLoadSymbols_Default(t *testing.T) {
	symbols, err := LoadSymbols("")
	if err != nil {
		t.Fatalf("LoadSymbols() error: %v", err)
	}

	if len(symbols) != 10 {
		t.Fatalf("Expected 10 symbols, got %d", len(symbols))
	}

	set := SymbolSet(symbols)
	for _, s := range []string{"RELIANCE", "TCS", "LT"} {
		if !set[s] {
			t.Errorf("Expected %s in default universe", s)
		}
	}
	if set["FAKESYM"] {
		t.Error("FAKESYM must not be tracked")
	}
	if symbols[1].BasePrice != 3700 {
		t.Errorf("Expected TCS base 3700, got %v", symbols[1].BasePrice)
	}
}

func TestParseSymbols_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "symbols: []"},
		{"duplicate", "symbols:\n  - {symbol: TCS, base_price: 1}\n  - {symbol: tcs, base_price: 2}"},
		{"zero base", "symbols:\n  - {symbol: TCS, base_price: 0}"},
		{"missing ticker", "symbols:\n  - {name: x, base_price: 1}"},
		{"bad yaml", "symbols: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSymbols([]byte(tt.data)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
