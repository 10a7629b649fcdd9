// Package profiles keeps one compiled risk engine per rule-table profile.
package profiles

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/logger"
	"github.com/liamcoop/healthpro/rules"
)

// ProfileEngine pairs a profile with the engine compiled from its rules.
type ProfileEngine struct {
	Profile Profile
	Engine  *rules.Engine
}

// Manager manages engines for all profiles. Engines are replaced wholesale,
// so callers holding an old engine keep a consistent rule set.
type Manager struct {
	backend   Backend
	engines   map[string]*ProfileEngine
	ruleCache *rules.CacheConfig
	mu        sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRuleCache sets the active-rule cache of every engine the manager builds.
// Deployments sharing a rule database across instances need a finite TTL.
func WithRuleCache(config rules.CacheConfig) ManagerOption {
	return func(m *Manager) {
		m.ruleCache = &config
	}
}

// NewManager creates a manager over backend. Call LoadAll or Seed to populate it.
func NewManager(backend Backend, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend: backend,
		engines: make(map[string]*ProfileEngine),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) buildEngine(p Profile) (*rules.Engine, error) {
	env, err := CreateCELEnvFromSchema(p.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	var opts []rules.EngineOption
	if m.ruleCache != nil {
		opts = append(opts, rules.WithCacheConfig(*m.ruleCache))
	}
	engine, err := rules.NewEngineWithEnv(env, m.backend.RuleStore(p.ID), p.Thresholds, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

// LoadAll loads every stored profile and compiles its engine.
func (m *Manager) LoadAll(ctx context.Context) error {
	profiles, err := m.backend.ListProfiles(ctx)
	if err != nil {
		return err
	}

	for _, p := range profiles {
		engine, err := m.buildEngine(p)
		if err != nil {
			return fmt.Errorf("failed to initialize profile %s: %w", p.ID, err)
		}
		m.mu.Lock()
		m.engines[p.ID] = &ProfileEngine{Profile: p, Engine: engine}
		m.mu.Unlock()
	}

	logger.Info("profiles loaded", "count", len(profiles))
	return nil
}

func validateProfile(p Profile) error {
	if err := validateIdentifier(p.ID); err != nil {
		return fmt.Errorf("invalid profile id %q: %w", p.ID, err)
	}
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	return ValidateSchema(p.Schema)
}

// CreateProfile stores a new profile and compiles an engine over whatever
// rules its store already holds.
func (m *Manager) CreateProfile(ctx context.Context, p Profile) error {
	return m.install(ctx, p, nil)
}

func (m *Manager) install(ctx context.Context, p Profile, seed []*rules.Rule) error {
	if p.Thresholds == (rules.LevelThresholds{}) {
		p.Thresholds = rules.DefaultThresholds()
	}
	if err := validateProfile(p); err != nil {
		return err
	}

	m.mu.RLock()
	_, exists := m.engines[p.ID]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("profile %s: %w", p.ID, ErrProfileExists)
	}

	version, err := m.backend.SaveProfile(ctx, p)
	if err != nil {
		return err
	}
	p.SchemaVersion = version

	store := m.backend.RuleStore(p.ID)
	for _, r := range seed {
		copied := *r
		if err := store.Add(&copied); err != nil {
			return m.rollback(ctx, p.ID, fmt.Errorf("failed to seed rule %s: %w", r.ID, err))
		}
	}

	engine, err := m.buildEngine(p)
	if err != nil {
		return m.rollback(ctx, p.ID, err)
	}

	m.mu.Lock()
	m.engines[p.ID] = &ProfileEngine{Profile: p, Engine: engine}
	m.mu.Unlock()

	logger.Info("profile created", "profile", p.ID, "rules", len(seed), "schema_version", version)
	return nil
}

// rollback removes a profile whose install failed after it was saved, so a
// later LoadAll never serves a partial rule table.
func (m *Manager) rollback(ctx context.Context, profileID string, cause error) error {
	if err := m.backend.DeleteProfile(ctx, profileID); err != nil {
		logger.Error("failed to roll back profile", "profile", profileID, "error", err)
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}
	return cause
}

// Seed installs every profile of table that is not loaded yet and returns
// the IDs it created. Existing profiles are left untouched.
func (m *Manager) Seed(ctx context.Context, table *rules.RuleTable) ([]string, error) {
	var created []string
	for i := range table.Profiles {
		def := &table.Profiles[i]

		m.mu.RLock()
		_, exists := m.engines[def.ID]
		m.mu.RUnlock()
		if exists {
			continue
		}

		p := Profile{
			ID:         def.ID,
			Name:       def.Name,
			Thresholds: def.Thresholds,
			Schema:     schemaFromDef(def),
		}
		if err := m.install(ctx, p, def.Rules); err != nil {
			return created, fmt.Errorf("failed to seed profile %s: %w", def.ID, err)
		}
		created = append(created, def.ID)
	}
	return created, nil
}

func schemaFromDef(def *rules.ProfileDef) Schema {
	schema := make(Schema)
	if len(def.Metrics) == 0 {
		for _, name := range health.KnownMetrics {
			schema[name] = "double"
		}
		return schema
	}
	for name, typ := range def.Metrics {
		schema[name] = typ
	}
	return schema
}

// GetEngine retrieves the engine for a specific profile
func (m *Manager) GetEngine(profileID string) (*rules.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pe, exists := m.engines[profileID]
	if !exists {
		return nil, fmt.Errorf("profile %s: %w", profileID, ErrProfileNotFound)
	}
	return pe.Engine, nil
}

// Get returns the profile's metadata
func (m *Manager) Get(profileID string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pe, exists := m.engines[profileID]
	if !exists {
		return Profile{}, fmt.Errorf("profile %s: %w", profileID, ErrProfileNotFound)
	}
	return pe.Profile, nil
}

// UpdateProfileSchema swaps in a new metric schema without downtime: the new
// engine is compiled against the profile's rules first, and nothing is saved
// if any rule no longer compiles.
func (m *Manager) UpdateProfileSchema(ctx context.Context, profileID string, schema Schema) error {
	if err := ValidateSchema(schema); err != nil {
		return err
	}

	current, err := m.Get(profileID)
	if err != nil {
		return err
	}

	next := current
	next.Schema = schema
	engine, err := m.buildEngine(next)
	if err != nil {
		return fmt.Errorf("rules do not compile against the new schema: %w", err)
	}

	version, err := m.backend.SaveProfile(ctx, next)
	if err != nil {
		return err
	}
	next.SchemaVersion = version

	m.mu.Lock()
	m.engines[profileID] = &ProfileEngine{Profile: next, Engine: engine}
	m.mu.Unlock()

	logger.Info("profile schema updated", "profile", profileID, "schema_version", version)
	return nil
}

// ListProfiles returns all loaded profiles sorted by ID
func (m *Manager) ListProfiles() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Profile, 0, len(m.engines))
	for _, pe := range m.engines {
		out = append(out, pe.Profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteProfile removes a profile from the backend and the manager
func (m *Manager) DeleteProfile(ctx context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[profileID]; !exists {
		return fmt.Errorf("profile %s: %w", profileID, ErrProfileNotFound)
	}
	if err := m.backend.DeleteProfile(ctx, profileID); err != nil {
		return err
	}

	delete(m.engines, profileID)
	logger.Info("profile deleted", "profile", profileID)
	return nil
}
