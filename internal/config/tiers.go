package config

import (
	"fmt"
	"os"

	"github.com/kevin07696/settlement-recon/internal/domain"
	"gopkg.in/yaml.v3"
)

type tiersFile struct {
	Tiers []domain.CommissionTier `yaml:"tiers"`
}

// LoadTiers reads a commission tier table from a YAML file of the form
//
//	tiers:
//	  - id: tier-1
//	    tier_name: Tier 1
//	    min_volume: 0
//	    max_volume: 250000000
//	    commission_percentage: "2.1"
//	    is_active: true
func LoadTiers(path string) ([]domain.CommissionTier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}
	var f tiersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tiers file %s: %w", path, err)
	}
	if err := ValidateTiers(f.Tiers); err != nil {
		return nil, err
	}
	return f.Tiers, nil
}

// ValidateTiers rejects tables with duplicate ids or inverted bounds.
// Overlapping ranges are allowed; resolution picks the highest minimum.
func ValidateTiers(tiers []domain.CommissionTier) error {
	seen := make(map[string]bool, len(tiers))
	for _, t := range tiers {
		if t.ID == "" {
			return fmt.Errorf("tier %q has no id", t.TierName)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate tier id %s", t.ID)
		}
		seen[t.ID] = true
		if t.MinVolume < 0 || (t.MaxVolume != nil && *t.MaxVolume < t.MinVolume) {
			return fmt.Errorf("tier %s has invalid volume bounds", t.ID)
		}
		if t.CommissionPercentage.IsNegative() {
			return fmt.Errorf("tier %s has negative commission", t.ID)
		}
	}
	return nil
}
