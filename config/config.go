// Package config loads evaluation settings from YAML: weight profiles,
// quality bands, gate thresholds, and the aggregation imbalance penalty.
//
// Band thresholds carry no defaults on purpose: different calibration
// cohorts run different cut-offs, so every deployment states its own. A
// config is validated once at load time and the resulting Runtime is
// immutable.
package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
	"rubriq.co/rubriq/fuse"
	"rubriq.co/rubriq/model"
	"rubriq.co/rubriq/profile"
)

// Runtime is the validated, immutable form of a config file. Engines hold
// it by reference; nothing mutates it after Build.
type Runtime struct {
	EngineID         string
	ImbalancePenalty float64
	Gates            fuse.GateThresholds
	Bands            fuse.Bands
	Profiles         *profile.Registry
}

type Config struct {
	EngineID         string          `yaml:"engine_id"`
	ImbalancePenalty float64         `yaml:"imbalance_penalty"`
	Gates            *gateConfig     `yaml:"gates"`
	Bands            bandConfig      `yaml:"bands"`
	Profiles         []profileConfig `yaml:"profiles"`
}

type gateConfig struct {
	BaseMin     float64 `yaml:"base_min"`
	ContractMin float64 `yaml:"contract_min"`
	ContractCap float64 `yaml:"contract_cap"`
}

type bandConfig struct {
	Excellent  float64 `yaml:"excellent"`
	Good       float64 `yaml:"good"`
	Acceptable float64 `yaml:"acceptable"`
}

type profileConfig struct {
	ID           string                  `yaml:"id"`
	Linear       map[model.Layer]float64 `yaml:"linear"`
	Interactions []interactionConfig     `yaml:"interactions"`
}

type interactionConfig struct {
	A      model.Layer `yaml:"a"`
	B      model.Layer `yaml:"b"`
	Weight float64     `yaml:"weight"`
}

// LoadFile reads and builds a config from a YAML file.
func LoadFile(path string) (*Runtime, error) {
	if path == "" {
		return nil, model.NewError(model.KindValidation, "RBQ-VAL-070", "empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapError(model.KindValidation, "RBQ-VAL-070", "config file unreadable", err)
	}
	return Parse(b)
}

// Parse builds a Runtime from YAML bytes. Unknown keys are rejected so a
// typoed threshold fails loudly instead of silently taking a zero value.
func Parse(data []byte) (*Runtime, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, model.WrapError(model.KindParse, "RBQ-PARSE-050", "config is not valid YAML", err)
	}
	return cfg.Build()
}

// Build validates the config and freezes it into a Runtime.
func (c Config) Build() (*Runtime, error) {
	rt := &Runtime{
		EngineID:         c.EngineID,
		ImbalancePenalty: c.ImbalancePenalty,
		Gates:            fuse.DefaultGateThresholds(),
		Bands: fuse.Bands{
			Excellent:  c.Bands.Excellent,
			Good:       c.Bands.Good,
			Acceptable: c.Bands.Acceptable,
		},
	}
	if c.Gates != nil {
		rt.Gates = fuse.GateThresholds{
			BaseMin:     c.Gates.BaseMin,
			ContractMin: c.Gates.ContractMin,
			ContractCap: c.Gates.ContractCap,
		}
	}
	if err := rt.Gates.Validate(); err != nil {
		return nil, err
	}
	if err := rt.Bands.Validate(); err != nil {
		return nil, err
	}
	if c.ImbalancePenalty < 0 {
		return nil, model.NewError(model.KindValidation, "RBQ-VAL-071",
			"imbalance_penalty must be >= 0")
	}
	if len(c.Profiles) == 0 {
		return nil, model.NewError(model.KindValidation, "RBQ-VAL-072",
			"config declares no weight profiles")
	}

	profiles := make([]*profile.WeightProfile, 0, len(c.Profiles))
	for _, pc := range c.Profiles {
		p := &profile.WeightProfile{
			ID:           pc.ID,
			Linear:       pc.Linear,
			Interactions: make(map[profile.InteractionPair]float64, len(pc.Interactions)),
		}
		for _, ic := range pc.Interactions {
			p.Interactions[profile.InteractionPair{A: ic.A, B: ic.B}] = ic.Weight
		}
		profiles = append(profiles, p)
	}
	registry, err := profile.NewRegistry(profiles...)
	if err != nil {
		return nil, err
	}
	rt.Profiles = registry
	return rt, nil
}
