package contextstore

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes the config, accepting Go duration strings such as
// "30m" for decay_half_life. Absent keys keep their current values, so the
// config can be overlaid onto defaults.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		MaxItems       int     `yaml:"max_items"`
		MaxBudget      int     `yaml:"max_budget"`
		Model          string  `yaml:"model"`
		DedupEnabled   bool    `yaml:"dedup_enabled"`
		DedupThreshold float64 `yaml:"dedup_threshold"`
		DecayHalfLife  string  `yaml:"decay_half_life"`
	}
	p := plain{
		MaxItems:       c.MaxItems,
		MaxBudget:      c.MaxBudget,
		Model:          c.Model,
		DedupEnabled:   c.DedupEnabled,
		DedupThreshold: c.DedupThreshold,
		DecayHalfLife:  c.DecayHalfLife.String(),
	}
	if err := value.Decode(&p); err != nil {
		return err
	}

	halfLife, err := time.ParseDuration(p.DecayHalfLife)
	if err != nil {
		return fmt.Errorf("invalid decay_half_life %q: %w", p.DecayHalfLife, err)
	}

	c.MaxItems = p.MaxItems
	c.MaxBudget = p.MaxBudget
	c.Model = p.Model
	c.DedupEnabled = p.DedupEnabled
	c.DedupThreshold = p.DedupThreshold
	c.DecayHalfLife = halfLife
	return nil
}
