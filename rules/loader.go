package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/healthpro/health"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// RuleTable is a set of named rule tables as read from YAML.
type RuleTable struct {
	Profiles []ProfileDef `yaml:"profiles"`
}

// ProfileDef is one rule table: the metrics its expressions may read, the
// level thresholds and the rules in evaluation order.
type ProfileDef struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Thresholds LevelThresholds   `yaml:"thresholds"`
	Metrics    map[string]string `yaml:"metrics"`
	Rules      []*Rule           `yaml:"rules"`
}

// UnmarshalYAML defaults Active to true when the key is absent.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type plain Rule
	p := plain{Active: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// DefaultRuleTable returns the rule tables shipped with the binary.
func DefaultRuleTable() (*RuleTable, error) {
	return LoadRuleTable(bytes.NewReader(defaultRulesYAML))
}

// LoadRuleTableFile reads a rule table from path.
func LoadRuleTableFile(path string) (*RuleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule table: %w", err)
	}
	defer f.Close()
	return LoadRuleTable(f)
}

// LoadRuleTable decodes and validates a YAML rule table. Rule positions are
// assigned from list order; missing thresholds fall back to the defaults.
func LoadRuleTable(r io.Reader) (*RuleTable, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var table RuleTable
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	if len(table.Profiles) == 0 {
		return nil, errors.New("rule table defines no profiles")
	}

	seen := make(map[string]bool, len(table.Profiles))
	for i := range table.Profiles {
		p := &table.Profiles[i]
		if p.ID == "" {
			return nil, fmt.Errorf("profile %d: id is required", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("profile %s defined twice", p.ID)
		}
		seen[p.ID] = true

		if p.Thresholds == (LevelThresholds{}) {
			p.Thresholds = DefaultThresholds()
		}
		if err := p.Thresholds.Validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
		if err := p.normalizeRules(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
	}

	return &table, nil
}

func (p *ProfileDef) normalizeRules() error {
	ids := make(map[string]bool, len(p.Rules))
	for i, rule := range p.Rules {
		if rule == nil {
			return fmt.Errorf("rule %d is empty", i)
		}
		if err := rule.Validate(); err != nil {
			return err
		}
		if ids[rule.ID] {
			return fmt.Errorf("rule %s defined twice", rule.ID)
		}
		ids[rule.ID] = true
		if len(p.Metrics) > 0 {
			if _, ok := p.Metrics[rule.Metric]; !ok {
				return fmt.Errorf("rule %s reads undeclared metric %s", rule.ID, rule.Metric)
			}
		}
		rule.Position = i
	}
	return nil
}

// Profile looks up a profile by ID.
func (t *RuleTable) Profile(id string) (*ProfileDef, bool) {
	for i := range t.Profiles {
		if t.Profiles[i].ID == id {
			return &t.Profiles[i], true
		}
	}
	return nil, false
}

// Check compiles every profile so expression errors surface before deployment.
func (t *RuleTable) Check() error {
	var errs []error
	for i := range t.Profiles {
		if _, err := t.Profiles[i].NewEngine(); err != nil {
			errs = append(errs, fmt.Errorf("profile %s: %w", t.Profiles[i].ID, err))
		}
	}
	return errors.Join(errs...)
}

// MetricNames returns the declared metrics in sorted order, or every metric
// the aggregator produces when none are declared.
func (p *ProfileDef) MetricNames() []string {
	if len(p.Metrics) == 0 {
		return append([]string(nil), health.KnownMetrics...)
	}
	names := make([]string, 0, len(p.Metrics))
	for name := range p.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Populate adds a copy of every rule to store.
func (p *ProfileDef) Populate(store RuleStore) error {
	for _, rule := range p.Rules {
		r := *rule
		if err := store.Add(&r); err != nil {
			return fmt.Errorf("failed to add rule %s: %w", rule.ID, err)
		}
	}
	return nil
}

// NewEngine builds an engine for the profile over an in-memory store.
func (p *ProfileDef) NewEngine() (*Engine, error) {
	env, err := MetricEnv(p.MetricNames())
	if err != nil {
		return nil, err
	}
	store := NewInMemoryRuleStore()
	if err := p.Populate(store); err != nil {
		return nil, err
	}
	return NewEngineWithEnv(env, store, p.Thresholds)
}
