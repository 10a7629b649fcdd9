package health

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordered, closed set of assessment outcomes.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskModerate
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "Low"
	case RiskModerate:
		return "Moderate"
	case RiskHigh:
		return "High"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
}

// ParseRiskLevel accepts the level names case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "moderate":
		return RiskModerate, nil
	case "high":
		return RiskHigh, nil
	default:
		return RiskLow, fmt.Errorf("unknown risk level %q", s)
	}
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	if l < RiskLow || l > RiskHigh {
		return nil, fmt.Errorf("invalid risk level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Source identifies which producer built an assessment.
type Source string

const (
	SourceRules Source = "rules"
	SourceLLM   Source = "llm"
)

// Placeholder used when no rule fires; assessments never carry empty lists.
const (
	NoAnomalyCondition      = "No anomaly detected"
	NoAnomalyRecommendation = "Keep up your good habits"
)

// RiskAssessment is a transient result built fresh for each evaluation.
type RiskAssessment struct {
	Level           RiskLevel `json:"risk_level"`
	Score           int       `json:"score"`
	Conditions      []string  `json:"conditions"`
	Recommendations []string  `json:"recommendations"`
	Source          Source    `json:"source"`
	Narrative       string    `json:"narrative,omitempty"`
}

// JoinedRecommendations renders the recommendations as one line for display.
func (a *RiskAssessment) JoinedRecommendations() string {
	return strings.Join(a.Recommendations, " ")
}

// EnsureNonEmpty appends the no-anomaly placeholder when nothing was flagged.
func (a *RiskAssessment) EnsureNonEmpty() {
	if len(a.Conditions) == 0 {
		a.Conditions = append(a.Conditions, NoAnomalyCondition)
	}
	if len(a.Recommendations) == 0 {
		a.Recommendations = append(a.Recommendations, NoAnomalyRecommendation)
	}
}
