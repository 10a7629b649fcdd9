package profiles

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/liamcoop/healthpro/rules"
)

// ErrProfileNotFound is wrapped when a profile ID does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// ErrProfileExists is returned when creating a profile that already exists.
var ErrProfileExists = errors.New("profile already exists")

// Profile is one named rule table's metadata. Its rules live in the
// backend's rule store for the profile.
type Profile struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Thresholds    rules.LevelThresholds `json:"thresholds"`
	Schema        Schema                `json:"schema"`
	SchemaVersion int                   `json:"schemaVersion"`
}

// Backend persists profiles and hands out per-profile rule stores.
type Backend interface {
	// ListProfiles returns every profile with its active schema
	ListProfiles(ctx context.Context) ([]Profile, error)

	// SaveProfile upserts the profile and stores its schema as a new active
	// version, returning that version
	SaveProfile(ctx context.Context, p Profile) (int, error)

	// DeleteProfile removes a profile together with its schemas and rules
	DeleteProfile(ctx context.Context, id string) error

	// RuleStore returns the rule store scoped to a profile
	RuleStore(profileID string) rules.RuleStore
}

// MemoryBackend is a Backend for tests and database-less deployments.
type MemoryBackend struct {
	profiles map[string]Profile
	stores   map[string]*rules.InMemoryRuleStore
	mu       sync.Mutex
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		profiles: make(map[string]Profile),
		stores:   make(map[string]*rules.InMemoryRuleStore),
	}
}

// ListProfiles returns profiles sorted by ID
func (b *MemoryBackend) ListProfiles(ctx context.Context) ([]Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Profile, 0, len(b.profiles))
	for _, p := range b.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveProfile upserts p and bumps its schema version
func (b *MemoryBackend) SaveProfile(ctx context.Context, p Profile) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p.SchemaVersion = b.profiles[p.ID].SchemaVersion + 1
	schema := make(Schema, len(p.Schema))
	for k, v := range p.Schema {
		schema[k] = v
	}
	p.Schema = schema
	b.profiles[p.ID] = p
	return p.SchemaVersion, nil
}

// DeleteProfile drops the profile and its rules
func (b *MemoryBackend) DeleteProfile(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.profiles[id]; !ok {
		return ErrProfileNotFound
	}
	delete(b.profiles, id)
	delete(b.stores, id)
	return nil
}

// RuleStore returns the profile's store, creating it on first use
func (b *MemoryBackend) RuleStore(profileID string) rules.RuleStore {
	b.mu.Lock()
	defer b.mu.Unlock()

	store, ok := b.stores[profileID]
	if !ok {
		store = rules.NewInMemoryRuleStore()
		b.stores[profileID] = store
	}
	return store
}
