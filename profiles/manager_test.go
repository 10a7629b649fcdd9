package profiles

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/rules"
)

func seededManager(t *testing.T) *Manager {
	t.Helper()
	table, err := rules.DefaultRuleTable()
	if err != nil {
		t.Fatalf("DefaultRuleTable() failed: %v", err)
	}
	m := NewManager(NewMemoryBackend())
	if _, err := m.Seed(context.Background(), table); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return m
}

func adultMetrics() health.AggregatedMetrics {
	return health.AggregatedMetrics{
		health.MetricSleepHours:       4,
		health.MetricWaterLiters:      2,
		health.MetricActivityCount:    10,
		health.MetricSedentaryMinutes: 60,
		health.MetricMeals:            3,
	}
}

func TestManager_Seed(t *testing.T) {
	ctx := context.Background()
	table, err := rules.DefaultRuleTable()
	if err != nil {
		t.Fatalf("DefaultRuleTable() failed: %v", err)
	}

	m := NewManager(NewMemoryBackend())
	created, err := m.Seed(ctx, table)
	if err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	if len(created) != 2 {
		t.Errorf("Seed() created %v, want default and senior", created)
	}

	again, err := m.Seed(ctx, table)
	if err != nil {
		t.Fatalf("second Seed() failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Seed() created %v, want nothing", again)
	}

	engine, err := m.GetEngine("default")
	if err != nil {
		t.Fatalf("GetEngine() failed: %v", err)
	}
	got, err := engine.Classify(adultMetrics())
	if err != nil {
		t.Fatalf("Classify() failed: %v", err)
	}
	if got.Score != 3 || got.Conditions[0] != "Severe sleep deprivation" {
		t.Errorf("Classify() = %+v", got)
	}
}

func TestManager_ListProfiles(t *testing.T) {
	m := seededManager(t)

	got := m.ListProfiles()
	if len(got) != 2 || got[0].ID != "default" || got[1].ID != "senior" {
		t.Fatalf("ListProfiles() = %+v", got)
	}
	if got[0].SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", got[0].SchemaVersion)
	}
}

func TestManager_CreateProfile(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend())

	p := Profile{ID: "athlete", Name: "Athlete", Schema: Schema{"calories": "double"}}
	if err := m.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}

	got, err := m.Get("athlete")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Thresholds != rules.DefaultThresholds() {
		t.Errorf("Thresholds = %+v, want defaults", got.Thresholds)
	}

	if err := m.CreateProfile(ctx, p); !errors.Is(err, ErrProfileExists) {
		t.Errorf("duplicate CreateProfile() error = %v, want ErrProfileExists", err)
	}

	engine, _ := m.GetEngine("athlete")
	err = engine.AddRule(&rules.Rule{
		ID: "calories-low", Metric: "calories", Expression: `calories < 1200.0`, Score: 2,
		Condition: "Low energy intake", Recommendation: "Eat more.", Active: true,
	})
	if err != nil {
		t.Fatalf("AddRule() failed: %v", err)
	}
	res, err := engine.Classify(health.AggregatedMetrics{"calories": 900})
	if err != nil {
		t.Fatalf("Classify() failed: %v", err)
	}
	if res.Score != 2 {
		t.Errorf("Score = %d, want 2", res.Score)
	}
}

func TestManager_CreateProfileValidation(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryBackend())

	tests := []struct {
		name string
		p    Profile
	}{
		{"bad id", Profile{ID: "no spaces", Schema: Schema{"meals": "double"}}},
		{"empty schema", Profile{ID: "p", Schema: Schema{}}},
		{"bad thresholds", Profile{ID: "p", Thresholds: rules.LevelThresholds{Moderate: 3, High: 1}, Schema: Schema{"meals": "double"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := m.CreateProfile(ctx, tc.p); err == nil {
				t.Error("CreateProfile() should fail")
			}
		})
	}
	if len(m.ListProfiles()) != 0 {
		t.Error("rejected profiles should not be registered")
	}
}

func TestManager_GetEngineNotFound(t *testing.T) {
	m := NewManager(NewMemoryBackend())

	if _, err := m.GetEngine("ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetEngine() error = %v, want ErrProfileNotFound", err)
	}
}

func TestManager_UpdateProfileSchema(t *testing.T) {
	ctx := context.Background()
	m := seededManager(t)

	old, _ := m.GetEngine("default")

	schema := Schema{
		"sleep_hours": "double", "water_liters": "double", "activity_count": "double",
		"sedentary_minutes": "double", "meals": "double", "calories": "double",
	}
	if err := m.UpdateProfileSchema(ctx, "default", schema); err != nil {
		t.Fatalf("UpdateProfileSchema() failed: %v", err)
	}

	updated, _ := m.GetEngine("default")
	if updated == old {
		t.Error("UpdateProfileSchema() should swap in a new engine")
	}
	if err := updated.CompileRule("check", `calories > 1.0`); err != nil {
		t.Errorf("new schema should declare calories: %v", err)
	}
	if err := old.CompileRule("check", `calories > 1.0`); err == nil {
		t.Error("old engine should keep its old schema")
	}

	p, _ := m.Get("default")
	if p.SchemaVersion != 2 {
		t.Errorf("SchemaVersion = %d, want 2", p.SchemaVersion)
	}
}

func TestManager_UpdateProfileSchemaRejectsBreakingChange(t *testing.T) {
	ctx := context.Background()
	m := seededManager(t)
	before, _ := m.GetEngine("default")

	// Dropping meals leaves the meal rules uncompilable.
	schema := Schema{"sleep_hours": "double", "water_liters": "double", "activity_count": "double", "sedentary_minutes": "double"}
	if err := m.UpdateProfileSchema(ctx, "default", schema); err == nil {
		t.Fatal("UpdateProfileSchema() should reject a schema the rules cannot compile against")
	}

	after, _ := m.GetEngine("default")
	if after != before {
		t.Error("engine should not change after a rejected update")
	}
	p, _ := m.Get("default")
	if p.SchemaVersion != 1 {
		t.Errorf("SchemaVersion = %d, want 1", p.SchemaVersion)
	}
}

func TestManager_UpdateNonexistentProfile(t *testing.T) {
	m := NewManager(NewMemoryBackend())

	err := m.UpdateProfileSchema(context.Background(), "ghost", Schema{"meals": "double"})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("UpdateProfileSchema() error = %v, want ErrProfileNotFound", err)
	}
}

func TestManager_DeleteProfile(t *testing.T) {
	ctx := context.Background()
	m := seededManager(t)

	if err := m.DeleteProfile(ctx, "senior"); err != nil {
		t.Fatalf("DeleteProfile() failed: %v", err)
	}
	if _, err := m.GetEngine("senior"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetEngine() after delete error = %v, want ErrProfileNotFound", err)
	}
	if err := m.DeleteProfile(ctx, "senior"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("DeleteProfile() twice error = %v, want ErrProfileNotFound", err)
	}
}

func TestManager_LoadAll(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	table, _ := rules.DefaultRuleTable()

	if _, err := NewManager(backend).Seed(ctx, table); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	fresh := NewManager(backend)
	if err := fresh.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	engine, err := fresh.GetEngine("default")
	if err != nil {
		t.Fatalf("GetEngine() failed: %v", err)
	}
	got, err := engine.Classify(adultMetrics())
	if err != nil {
		t.Fatalf("Classify() failed: %v", err)
	}
	if got.Score != 3 {
		t.Errorf("Score = %d, want 3 from the stored rules", got.Score)
	}
}

func TestManager_ProfileIsolation(t *testing.T) {
	m := seededManager(t)

	adult, _ := m.GetEngine("default")
	if err := adult.DeleteRule("sleep-severe"); err != nil {
		t.Fatalf("DeleteRule() failed: %v", err)
	}

	senior, _ := m.GetEngine("senior")
	if _, err := senior.Rule("sleep-severe"); err != nil {
		t.Errorf("deleting from one profile should not touch another: %v", err)
	}
}

func TestManager_Concurrency(t *testing.T) {
	ctx := context.Background()
	m := seededManager(t)

	schema := Schema{
		"sleep_hours": "double", "water_liters": "double", "activity_count": "double",
		"sedentary_minutes": "double", "meals": "double",
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			engine, err := m.GetEngine("default")
			if err != nil {
				t.Errorf("GetEngine() failed: %v", err)
				return
			}
			if _, err := engine.Classify(adultMetrics()); err != nil {
				t.Errorf("Classify() failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := m.UpdateProfileSchema(ctx, "default", schema); err != nil {
				t.Errorf("UpdateProfileSchema() failed: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestManager_SeedRollsBackPartialProfile(t *testing.T) {
	ctx := context.Background()
	rule := func(id, expr string) *rules.Rule {
		return &rules.Rule{ID: id, Metric: health.MetricMeals, Expression: expr, Score: 1, Condition: "c", Recommendation: "r", Active: true}
	}

	tests := []struct {
		name  string
		rules []*rules.Rule
	}{
		{"store rejects a rule", []*rules.Rule{rule("meals-none", `meals == 0.0`), rule("meals-none", `meals == 0.0`)}},
		{"rule does not compile", []*rules.Rule{rule("meals-none", `meals == 0.0`), rule("meals-broken", `meals +`)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := NewMemoryBackend()
			m := NewManager(backend)
			table := &rules.RuleTable{Profiles: []rules.ProfileDef{{ID: "partial", Rules: tc.rules}}}

			if _, err := m.Seed(ctx, table); err == nil {
				t.Fatal("Seed() should fail")
			}
			if _, err := m.GetEngine("partial"); !errors.Is(err, ErrProfileNotFound) {
				t.Errorf("GetEngine() error = %v, want ErrProfileNotFound", err)
			}
			stored, err := backend.ListProfiles(ctx)
			if err != nil {
				t.Fatalf("ListProfiles() failed: %v", err)
			}
			if len(stored) != 0 {
				t.Errorf("backend kept %d profiles after a failed seed", len(stored))
			}

			fixed := &rules.RuleTable{Profiles: []rules.ProfileDef{{ID: "partial", Rules: tc.rules[:1]}}}
			if _, err := m.Seed(ctx, fixed); err != nil {
				t.Fatalf("Seed() after rollback failed: %v", err)
			}
			all, err := backend.RuleStore("partial").List()
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(all) != 1 {
				t.Errorf("store holds %d rules, want only the reseeded one", len(all))
			}
		})
	}
}
