package server

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/brk3/flux/pkg/flux"
	"github.com/brk3/flux/pkg/micros"
	"go.yaml.in/yaml/v4"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Habits []struct {
		ID          string    `yaml:"id"`
		Name        string    `yaml:"name"`
		Ticker      string    `yaml:"ticker"`
		Icon        string    `yaml:"icon"`
		Unit        string    `yaml:"unit"`
		RateType    string    `yaml:"rate_type"`
		RateOptions []float64 `yaml:"rate_options"`
	} `yaml:"habits"`
}

// LoadCatalog reads the habit catalog at path, or the built-in one when path
// is empty.
func LoadCatalog(path string) ([]flux.CatalogEntry, error) {
	d := defaultCatalog
	if path != "" {
		var err error
		if d, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
	}
	return parseCatalog(d)
}

func parseCatalog(d []byte) ([]flux.CatalogEntry, error) {
	var f catalogFile
	if err := yaml.Unmarshal(d, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Habits))
	out := make([]flux.CatalogEntry, 0, len(f.Habits))
	for _, h := range f.Habits {
		if h.ID == "" || seen[h.ID] {
			return nil, fmt.Errorf("catalog: missing or duplicate id %q", h.ID)
		}
		seen[h.ID] = true

		rateType := strings.ToUpper(h.RateType)
		if !validRateType(rateType) {
			return nil, fmt.Errorf("catalog: %s: unknown rate type %q", h.ID, h.RateType)
		}
		opts := make([]int64, 0, len(h.RateOptions))
		for _, r := range h.RateOptions {
			opts = append(opts, micros.ToMicros(r))
		}
		out = append(out, flux.CatalogEntry{
			ID:                h.ID,
			Name:              h.Name,
			Ticker:            h.Ticker,
			Icon:              h.Icon,
			Unit:              h.Unit,
			RateType:          rateType,
			RateOptionsMicros: opts,
		})
	}
	return out, nil
}

func validRateType(t string) bool {
	switch t {
	case flux.RateBinary, flux.RateCount, flux.RateDistance, flux.RateDuration:
		return true
	}
	return false
}
