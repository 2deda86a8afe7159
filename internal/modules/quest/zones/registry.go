// Package zones holds the venue's static zone list and reward thresholds.
//
// The registry is loaded once at start-up and never mutated, so it is safe
// for concurrent readers without locking.
package zones

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/tastequest-backend/internal/domain/quest"
	"github.com/yungbote/tastequest-backend/internal/platform/logger"
)

//go:embed default_zones.yaml
var defaultConfig []byte

// File is the on-disk layout of a quest configuration.
type File struct {
	Zones   []quest.Zone            `yaml:"zones"`
	Rewards []quest.RewardThreshold `yaml:"rewards"`
}

type Registry struct {
	zones      []quest.Zone
	byName     map[string]quest.Zone
	thresholds []quest.RewardThreshold
	warnings   []string
}

// Default returns the built-in eight-zone layout.
func Default() *Registry {
	r, err := Parse(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("zones: built-in config invalid: %v", err))
	}
	return r
}

// Load reads a YAML registry from path. An empty path selects Default.
func Load(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quest config %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("quest config %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a YAML registry. Unknown fields are rejected.
func Parse(data []byte) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return New(f.Zones, f.Rewards)
}

// New validates zones and thresholds and builds a registry. Problems that
// make the quest unusable are errors; inconsistencies that only make a
// reward unreachable are kept as warnings.
func New(zs []quest.Zone, thresholds []quest.RewardThreshold) (*Registry, error) {
	if len(zs) == 0 {
		return nil, errors.New("at least one zone is required")
	}
	r := &Registry{byName: make(map[string]quest.Zone, len(zs))}
	for i, z := range zs {
		name := Canonical(z.Name)
		if name == "" {
			return nil, fmt.Errorf("zone %d: name is required", i)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("zone %q listed twice", name)
		}
		z.Name = name
		if z.DisplayIndex == 0 {
			z.DisplayIndex = i + 1
		}
		r.byName[name] = z
		r.zones = append(r.zones, z)
	}
	sort.SliceStable(r.zones, func(i, j int) bool { return r.zones[i].DisplayIndex < r.zones[j].DisplayIndex })

	seen := map[string]bool{}
	for i, t := range thresholds {
		t.RewardID = strings.TrimSpace(t.RewardID)
		if t.RewardID == "" {
			return nil, fmt.Errorf("reward %d: reward_id is required", i)
		}
		if t.Count < 1 {
			return nil, fmt.Errorf("reward %q: count must be >= 1", t.RewardID)
		}
		if seen[t.RewardID] {
			return nil, fmt.Errorf("reward %q listed twice", t.RewardID)
		}
		seen[t.RewardID] = true
		if t.Count > len(r.zones) {
			r.warnings = append(r.warnings, fmt.Sprintf(
				"reward %q needs %d stamps but only %d zones exist; it can never unlock",
				t.RewardID, t.Count, len(r.zones)))
		}
		r.thresholds = append(r.thresholds, t)
	}
	sort.SliceStable(r.thresholds, func(i, j int) bool {
		if r.thresholds[i].Count != r.thresholds[j].Count {
			return r.thresholds[i].Count < r.thresholds[j].Count
		}
		return r.thresholds[i].RewardID < r.thresholds[j].RewardID
	})
	if len(r.thresholds) == 0 {
		r.warnings = append(r.warnings, "no reward thresholds configured")
	} else if top := r.thresholds[len(r.thresholds)-1].Count; top < len(r.zones) {
		r.warnings = append(r.warnings, fmt.Sprintf(
			"highest reward threshold is %d but %d zones exist; completing every zone grants nothing extra",
			top, len(r.zones)))
	}
	return r, nil
}

// Canonical is the stored form of a zone name.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup resolves a caller-supplied zone name.
func (r *Registry) Lookup(name string) (quest.Zone, bool) {
	if r == nil {
		return quest.Zone{}, false
	}
	z, ok := r.byName[Canonical(name)]
	return z, ok
}

func (r *Registry) Contains(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Count is Z, the number of zones.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	return len(r.zones)
}

// Zones returns the zones in display order.
func (r *Registry) Zones() []quest.Zone {
	if r == nil {
		return nil
	}
	return append([]quest.Zone(nil), r.zones...)
}

// Thresholds returns the reward table ordered by count, then reward id.
func (r *Registry) Thresholds() []quest.RewardThreshold {
	if r == nil {
		return nil
	}
	return append([]quest.RewardThreshold(nil), r.thresholds...)
}

func (r *Registry) Warnings() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.warnings...)
}

// LogWarnings reports configuration drift once at start-up.
func (r *Registry) LogWarnings(log *logger.Logger) {
	if r == nil || log == nil {
		return
	}
	for _, w := range r.warnings {
		log.Warn("quest config inconsistency", "detail", w, "zone_count", len(r.zones))
	}
}
