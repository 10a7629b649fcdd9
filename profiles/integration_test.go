//go:build integration

package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/dbtest"
	"github.com/liamcoop/healthpro/rules"
)

func TestPostgresBackend_SeedAndReload(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Postgres(t)
	backend := NewPostgresBackend(db)

	table, err := rules.DefaultRuleTable()
	if err != nil {
		t.Fatalf("DefaultRuleTable() failed: %v", err)
	}
	if _, err := NewManager(backend).Seed(ctx, table); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}

	m := NewManager(backend)
	if err := m.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if got := m.ListProfiles(); len(got) != 2 {
		t.Fatalf("ListProfiles() = %+v, want 2 profiles", got)
	}

	engine, err := m.GetEngine("senior")
	if err != nil {
		t.Fatalf("GetEngine() failed: %v", err)
	}
	got, err := engine.Classify(health.AggregatedMetrics{
		health.MetricSleepHours:          8,
		health.MetricWaterLiters:         2,
		health.MetricActivityCount:       10,
		health.MetricSedentaryMinutes:    60,
		health.MetricMeals:               3,
		health.MetricTUGSeconds:          15,
		health.MetricVisionAbnormalRate:  0,
		health.MetricHearingAbnormalRate: 0,
	})
	if err != nil {
		t.Fatalf("Classify() failed: %v", err)
	}
	if got.Score != 2 || got.Conditions[0] != "Reduced mobility (timed up-and-go above 12 s)" {
		t.Errorf("Classify() = %+v", got)
	}
}

func TestPostgresBackend_SchemaVersions(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Postgres(t)
	m := NewManager(NewPostgresBackend(db))

	p := Profile{ID: "athlete", Name: "Athlete", Schema: Schema{"calories": "double"}}
	if err := m.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	if err := m.UpdateProfileSchema(ctx, "athlete", Schema{"calories": "double", "bmi": "double"}); err != nil {
		t.Fatalf("UpdateProfileSchema() failed: %v", err)
	}

	var versions, active int
	if err := db.QueryRow(`SELECT COUNT(*), COUNT(*) FILTER (WHERE active) FROM schemas WHERE profile_id = $1`, "athlete").Scan(&versions, &active); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if versions != 2 || active != 1 {
		t.Errorf("versions = %d, active = %d; want 2 and 1", versions, active)
	}

	reloaded := NewManager(NewPostgresBackend(db))
	if err := reloaded.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	got, _ := reloaded.Get("athlete")
	if got.SchemaVersion != 2 || len(got.Schema) != 2 {
		t.Errorf("reloaded profile = %+v", got)
	}
}

func TestPostgresBackend_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Postgres(t)
	m := NewManager(NewPostgresBackend(db))

	table, _ := rules.DefaultRuleTable()
	if _, err := m.Seed(ctx, table); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	if err := m.DeleteProfile(ctx, "default"); err != nil {
		t.Fatalf("DeleteProfile() failed: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rules WHERE profile_id = 'default'`).Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 0 {
		t.Errorf("%d rules left after profile delete", n)
	}

	if err := NewPostgresBackend(db).DeleteProfile(ctx, "default"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("DeleteProfile() twice error = %v, want ErrProfileNotFound", err)
	}
}
