package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/healthpro/health"
)

// Rule is one row of a risk table: when Expression holds for the aggregated
// metrics, Score is added and Condition/Recommendation are reported.
type Rule struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Factor         string    `json:"factor" yaml:"factor"`
	Metric         string    `json:"metric" yaml:"metric"`
	Expression     string    `json:"expression" yaml:"expression"`
	Score          int       `json:"score" yaml:"score"`
	Condition      string    `json:"condition" yaml:"condition"`
	Recommendation string    `json:"recommendation" yaml:"recommendation"`
	Position       int       `json:"position" yaml:"position"`
	Active         bool      `json:"active" yaml:"active"`
	CreatedAt      time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt      time.Time `json:"updatedAt" yaml:"-"`
}

// Validate checks the fields a rule needs before it can be compiled.
func (r *Rule) Validate() error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if r.Metric == "" {
		errs = append(errs, errors.New("metric is required"))
	}
	if r.Expression == "" {
		errs = append(errs, errors.New("expression is required"))
	}
	if r.Score < 0 {
		errs = append(errs, fmt.Errorf("score must not be negative, got %d", r.Score))
	}
	if r.Condition == "" {
		errs = append(errs, errors.New("condition is required"))
	}
	if r.Recommendation == "" {
		errs = append(errs, errors.New("recommendation is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid rule %q: %w", r.ID, errors.Join(errs...))
	}
	return nil
}

// EvaluationResult contains the outcome of evaluating a rule
type EvaluationResult struct {
	RuleID   string
	RuleName string
	Matched  bool
	Score    int
	Error    error
	Trace    any // CEL evaluation state (optional)
}

// LevelThresholds maps a total score to a risk level: score >= High is High,
// score >= Moderate is Moderate, anything lower is Low.
type LevelThresholds struct {
	Moderate int `json:"moderate" yaml:"moderate"`
	High     int `json:"high" yaml:"high"`
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() LevelThresholds {
	return LevelThresholds{Moderate: 4, High: 7}
}

// Validate requires 0 < Moderate < High.
func (t LevelThresholds) Validate() error {
	if t.Moderate <= 0 || t.High <= t.Moderate {
		return fmt.Errorf("invalid thresholds: need 0 < moderate (%d) < high (%d)", t.Moderate, t.High)
	}
	return nil
}

// Level maps a total score to its risk level.
func (t LevelThresholds) Level(score int) health.RiskLevel {
	switch {
	case score >= t.High:
		return health.RiskHigh
	case score >= t.Moderate:
		return health.RiskModerate
	default:
		return health.RiskLow
	}
}
