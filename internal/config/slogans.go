package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed slogans.json
var defaultSlogansJSON []byte

// Stage lists the mascots and quotes used for one progress band.
type Stage struct {
	Animals []string `json:"animals" mapstructure:"animals"`
	Quotes  []string `json:"quotes" mapstructure:"quotes"`
}

// Slogans is every piece of text the dashboard rotates through.
type Slogans struct {
	Slogans  []string         `json:"slogans" mapstructure:"slogans"`
	CatFacts []string         `json:"cat_facts" mapstructure:"cat_facts"`
	Goodbyes []string         `json:"goodbyes" mapstructure:"goodbyes"`
	Quotes   []string         `json:"quotes" mapstructure:"quotes"`
	Stages   map[string]Stage `json:"stages" mapstructure:"stages"`
}

// FallbackSlogans is used when a slogans file is configured but unreadable.
func FallbackSlogans() Slogans {
	return Slogans{
		Slogans:  []string{"Backup running..."},
		CatFacts: []string{"Cats sleep a lot."},
	}
}

func DefaultSlogans() Slogans {
	s, err := ParseSlogans(defaultSlogansJSON)
	if err != nil {
		return FallbackSlogans()
	}
	return s
}

func ParseSlogans(data []byte) (Slogans, error) {
	var s Slogans
	if err := json.Unmarshal(data, &s); err != nil {
		return Slogans{}, fmt.Errorf("parse slogans JSON: %w", err)
	}
	return s, nil
}

func (s Slogans) Stage(key string) Stage {
	if s.Stages == nil {
		return Stage{}
	}
	return s.Stages[key]
}
