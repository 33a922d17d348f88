package risk

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Policy is the per-category risk configuration.
type Policy struct {
	MaxStake        float64 `yaml:"max_stake"`        // hard USD cap per trade
	MinConfidence   float64 `yaml:"min_confidence"`   // 0-100
	MinEdge         float64 `yaml:"min_edge"`         // probability points, 0-1
	MaxDailyTrades  int     `yaml:"max_daily_trades"` // 0 = unlimited
	KellyMultiplier float64 `yaml:"kelly_multiplier"`
	Enabled         bool    `yaml:"enabled"`
}

// DefaultPolicy is the conservative fallback for categories with no
// explicit entry. Disabled: unmatched categories must not silently trade.
func DefaultPolicy() Policy {
	return Policy{
		MaxStake:        5,
		MinConfidence:   75,
		MinEdge:         0.08,
		MaxDailyTrades:  1,
		KellyMultiplier: 0.25,
		Enabled:         false,
	}
}

// Patch is a partial policy update; nil fields are left unchanged.
type Patch struct {
	MaxStake        *float64
	MinConfidence   *float64
	MinEdge         *float64
	MaxDailyTrades  *int
	KellyMultiplier *float64
	Enabled         *bool
}

// Table maps categories to policies. Reads are lock-protected so an
// administrative Update can land mid-cycle without corrupting them.
type Table struct {
	mu       sync.RWMutex
	policies map[string]Policy
	fallback Policy
}

// NewTable builds a table from explicit entries.
func NewTable(policies map[string]Policy) *Table {
	m := make(map[string]Policy, len(policies))
	for k, v := range policies {
		m[k] = v
	}
	return &Table{policies: m, fallback: DefaultPolicy()}
}

// LoadTable reads the policy table from a YAML file keyed by category.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("risk.LoadTable: read %q: %w", path, err)
	}
	var policies map[string]Policy
	if err := yaml.Unmarshal(data, &policies); err != nil {
		return nil, fmt.Errorf("risk.LoadTable: parse YAML: %w", err)
	}
	return NewTable(policies), nil
}

// Get returns the policy for a category, falling back to the
// conservative default for unknown categories. Never fails.
func (t *Table) Get(category string) Policy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.policies[category]; ok {
		return p
	}
	return t.fallback
}

// Has reports whether an explicit policy exists for the category.
func (t *Table) Has(category string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.policies[category]
	return ok
}

// Update applies a partial policy change, last write wins. Updating a
// category with no explicit entry starts from the conservative default.
func (t *Table) Update(category string, patch Patch) Policy {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.policies[category]
	if !ok {
		p = t.fallback
	}
	if patch.MaxStake != nil {
		p.MaxStake = *patch.MaxStake
	}
	if patch.MinConfidence != nil {
		p.MinConfidence = *patch.MinConfidence
	}
	if patch.MinEdge != nil {
		p.MinEdge = *patch.MinEdge
	}
	if patch.MaxDailyTrades != nil {
		p.MaxDailyTrades = *patch.MaxDailyTrades
	}
	if patch.KellyMultiplier != nil {
		p.KellyMultiplier = *patch.KellyMultiplier
	}
	if patch.Enabled != nil {
		p.Enabled = *patch.Enabled
	}
	t.policies[category] = p
	return p
}

// Categories returns the categories with explicit policies.
func (t *Table) Categories() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.policies))
	for k := range t.policies {
		out = append(out, k)
	}
	return out
}
