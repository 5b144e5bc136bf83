package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed symbols.yaml
var defaultSymbols []byte

// Symbol is one tracked ticker with the base price the generator moves around.
type Symbol struct {
	Symbol    string  `yaml:"symbol"`
	Name      string  `yaml:"name"`
	BasePrice float64 `yaml:"base_price"`
}

type SymbolsFile struct {
	Symbols []Symbol `yaml:"symbols"`
}

// LoadSymbols reads the tracked symbol universe from path, or the embedded
// default list when path is empty.
func LoadSymbols(path string) ([]Symbol, error) {
	data := defaultSymbols
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read symbols file: %w", err)
		}
		data = b
	}
	return ParseSymbols(data)
}

func ParseSymbols(data []byte) ([]Symbol, error) {
	var file SymbolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse symbols: %w", err)
	}
	if len(file.Symbols) == 0 {
		return nil, fmt.Errorf("symbols list is empty")
	}

	seen := make(map[string]bool, len(file.Symbols))
	for i := range file.Symbols {
		s := &file.Symbols[i]
		s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
		if s.Symbol == "" {
			return nil, fmt.Errorf("symbol %d has no ticker", i)
		}
		if seen[s.Symbol] {
			return nil, fmt.Errorf("duplicate symbol %s", s.Symbol)
		}
		if s.BasePrice <= 0 {
			return nil, fmt.Errorf("symbol %s: base price must be positive", s.Symbol)
		}
		seen[s.Symbol] = true
	}
	return file.Symbols, nil
}

// SymbolSet returns the tickers as a lookup set.
func SymbolSet(symbols []Symbol) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s.Symbol] = true
	}
	return set
}
