package main

import (
	"time"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/norms"
	"github.com/liamcoop/healthpro/profiles"
	"github.com/liamcoop/healthpro/rules"
)

// API request and response models

// EntryRequest is a daily entry as posted by clients. Date accepts either
// 2006-01-02 or RFC 3339.
type EntryRequest struct {
	health.DailyEntry
	Date string `json:"date" example:"2024-03-01"`
}

// AssessRequest classifies metrics supplied by the caller
type AssessRequest struct {
	Profile string                   `json:"profile,omitempty" example:"default"`
	Metrics health.AggregatedMetrics `json:"metrics"`
}

// AssessmentResponse wraps an assessment with the profile that produced it
type AssessmentResponse struct {
	UserID  string `json:"user_id,omitempty"`
	Profile string `json:"profile"`
	*health.RiskAssessment
}

// MetricsResponse is a user's aggregated history
type MetricsResponse struct {
	UserID  string                   `json:"user_id"`
	Metrics health.AggregatedMetrics `json:"metrics"`
}

// NormsResponse sets a user's latest entry against reference norms
type NormsResponse struct {
	UserID string `json:"user_id"`
	*norms.Report
}

// EntriesListResponse represents the response for listing entries
type EntriesListResponse struct {
	Entries []health.DailyEntry `json:"entries"`
}

// FollowingResponse lists the users someone follows
type FollowingResponse struct {
	UserID    string   `json:"user_id"`
	Following []string `json:"following"`
}

// CreateProfileRequest represents the request body for creating a profile
type CreateProfileRequest struct {
	ID         string                `json:"id" example:"athlete"`
	Name       string                `json:"name" example:"Athletes"`
	Thresholds rules.LevelThresholds `json:"thresholds"`
	Schema     profiles.Schema       `json:"schema"`
}

// ProfileResponse represents a profile in API responses
type ProfileResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Thresholds    rules.LevelThresholds `json:"thresholds"`
	Schema        profiles.Schema       `json:"schema"`
	SchemaVersion int                   `json:"schema_version"`
}

func profileResponse(p profiles.Profile) ProfileResponse {
	return ProfileResponse{
		ID:            p.ID,
		Name:          p.Name,
		Thresholds:    p.Thresholds,
		Schema:        p.Schema,
		SchemaVersion: p.SchemaVersion,
	}
}

// ProfilesListResponse represents the response for listing profiles
type ProfilesListResponse struct {
	Profiles []ProfileResponse `json:"profiles"`
}

// UpdateSchemaRequest replaces a profile's metric schema
type UpdateSchemaRequest struct {
	Definition profiles.Schema `json:"definition"`
}

// RuleRequest represents the request body for creating or updating a rule
type RuleRequest struct {
	ID             string `json:"id,omitempty" example:"sleep-severe"`
	Name           string `json:"name" example:"Severe sleep deprivation"`
	Factor         string `json:"factor" example:"sleep"`
	Metric         string `json:"metric" example:"sleep_hours"`
	Expression     string `json:"expression" example:"sleep_hours < 5.0"`
	Score          int    `json:"score" example:"3"`
	Condition      string `json:"condition"`
	Recommendation string `json:"recommendation"`
	Position       int    `json:"position"`
	Active         *bool  `json:"active,omitempty" example:"true"`
}

func (req RuleRequest) rule(id string) *rules.Rule {
	now := time.Now()
	r := &rules.Rule{
		ID:             id,
		Name:           req.Name,
		Factor:         req.Factor,
		Metric:         req.Metric,
		Expression:     req.Expression,
		Score:          req.Score,
		Condition:      req.Condition,
		Recommendation: req.Recommendation,
		Position:       req.Position,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Active != nil {
		r.Active = *req.Active
	}
	return r
}

// RulesListResponse represents the response for listing rules
type RulesListResponse struct {
	Rules []*rules.Rule `json:"rules"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"no data available"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status         string `json:"status" example:"healthy"`
	ProfilesLoaded int    `json:"profilesLoaded"`
	Storage        string `json:"storage" example:"postgres"`
	Error          string `json:"error,omitempty"`
}

// EvaluateRequest evaluates individual rules of a profile; no Rules means
// every active rule.
type EvaluateRequest struct {
	Metrics health.AggregatedMetrics `json:"metrics"`
	Rules   []string                 `json:"rules,omitempty" example:"sleep-severe,meals-none"`
}

// EvaluationResultResponse represents a single rule evaluation result
type EvaluationResultResponse struct {
	RuleID   string  `json:"ruleId" example:"sleep-severe"`
	RuleName string  `json:"ruleName" example:"Severe sleep deprivation"`
	Matched  bool    `json:"matched" example:"true"`
	Score    int     `json:"score" example:"3"`
	Error    *string `json:"error,omitempty"`
}

func evaluationResponse(r *rules.EvaluationResult) EvaluationResultResponse {
	resp := EvaluationResultResponse{
		RuleID:   r.RuleID,
		RuleName: r.RuleName,
		Matched:  r.Matched,
		Score:    r.Score,
	}
	if r.Error != nil {
		msg := r.Error.Error()
		resp.Error = &msg
	}
	return resp
}

// EvaluateResponse represents the response for rule evaluation
type EvaluateResponse struct {
	Results        []EvaluationResultResponse `json:"results"`
	EvaluationTime string                     `json:"evaluationTime" example:"2.3ms"`
}
