package rules

import (
	"strings"
	"testing"

	"github.com/liamcoop/healthpro/health"
)

func TestRuleValidate(t *testing.T) {
	valid := Rule{
		ID:             "sleep-severe",
		Metric:         "sleep_hours",
		Expression:     `sleep_hours < 5.0`,
		Score:          3,
		Condition:      "Severe sleep deprivation",
		Recommendation: "Sleep more.",
	}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr string
	}{
		{"valid", func(r *Rule) {}, ""},
		{"zero score", func(r *Rule) { r.Score = 0 }, ""},
		{"no id", func(r *Rule) { r.ID = "" }, "id is required"},
		{"no metric", func(r *Rule) { r.Metric = "" }, "metric is required"},
		{"no expression", func(r *Rule) { r.Expression = "" }, "expression is required"},
		{"negative score", func(r *Rule) { r.Score = -2 }, "score must not be negative"},
		{"no condition", func(r *Rule) { r.Condition = "" }, "condition is required"},
		{"no recommendation", func(r *Rule) { r.Recommendation = "" }, "recommendation is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			err := r.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestRuleValidateReportsEveryProblem(t *testing.T) {
	err := (&Rule{}).Validate()
	if err == nil {
		t.Fatal("Validate() on an empty rule should fail")
	}
	for _, want := range []string{"id", "metric", "expression", "condition", "recommendation"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, missing %q", err, want)
		}
	}
}

func TestLevelThresholds(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		score int
		want  health.RiskLevel
	}{
		{0, health.RiskLow},
		{3, health.RiskLow},
		{4, health.RiskModerate},
		{6, health.RiskModerate},
		{7, health.RiskHigh},
		{13, health.RiskHigh},
	}

	for _, tc := range tests {
		if got := th.Level(tc.score); got != tc.want {
			t.Errorf("Level(%d) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestLevelThresholdsValidate(t *testing.T) {
	tests := []struct {
		th      LevelThresholds
		wantErr bool
	}{
		{LevelThresholds{Moderate: 4, High: 7}, false},
		{LevelThresholds{Moderate: 1, High: 2}, false},
		{LevelThresholds{Moderate: 0, High: 7}, true},
		{LevelThresholds{Moderate: 7, High: 7}, true},
		{LevelThresholds{Moderate: 8, High: 7}, true},
	}

	for _, tc := range tests {
		err := tc.th.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tc.th, err, tc.wantErr)
		}
	}
}
