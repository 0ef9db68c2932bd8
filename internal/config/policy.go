package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/retrofutureitalia25/retrofuture-search/internal/classifier"
	"github.com/retrofutureitalia25/retrofuture-search/internal/search"
)

// Policy bundles the tunable thresholds read from POLICY_FILE.
type Policy struct {
	Classifier classifier.Policy
	Search     search.Config
}

// LoadPolicy overlays the YAML file at path on the built-in defaults. Keys
// absent from the file keep their default; a missing file yields defaults.
func LoadPolicy(path string) (*Policy, error) {
	p := &Policy{
		Classifier: classifier.DefaultPolicy(),
		Search:     search.DefaultConfig(),
	}
	if path == "" {
		return p, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load policy %s: %w", path, err)
	}

	if err := k.Unmarshal("classifier", &p.Classifier); err != nil {
		return nil, fmt.Errorf("decode classifier policy: %w", err)
	}
	if k.Exists("search.recency_tiers") {
		p.Search.RecencyTiers = nil
	}
	if err := k.Unmarshal("search", &p.Search); err != nil {
		return nil, fmt.Errorf("decode search policy: %w", err)
	}

	if p.Search.ResultFloor <= 0 {
		return nil, fmt.Errorf("search.result_floor must be positive")
	}
	if p.Search.FuzzyThreshold <= 0 || p.Search.FuzzyThreshold > 100 {
		return nil, fmt.Errorf("search.fuzzy_threshold must be in (0, 100]")
	}
	if p.Classifier.RecentYearFrom > p.Classifier.RecentYearTo {
		return nil, fmt.Errorf("classifier.recent_year_from cannot exceed recent_year_to")
	}
	for _, t := range p.Search.RecencyTiers {
		if t.MaxAge <= 0 {
			return nil, fmt.Errorf("search.recency_tiers max_age must be positive")
		}
	}
	return p, nil
}
