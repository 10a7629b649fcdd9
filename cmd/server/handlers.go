package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/liamcoop/healthpro/assessment"
	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/logger"
	"github.com/liamcoop/healthpro/narrative"
	"github.com/liamcoop/healthpro/norms"
	"github.com/liamcoop/healthpro/profiles"
	"github.com/liamcoop/healthpro/rules"
	"github.com/liamcoop/healthpro/social"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "healthy",
		ProfilesLoaded: len(s.profiles.ListProfiles()),
		Storage:        "memory",
	}
	if s.db != nil {
		resp.Storage = "postgres"
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Stateless classification handler
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Metrics == nil {
		respondError(w, http.StatusBadRequest, "metrics are required", nil)
		return
	}

	profile := req.Profile
	if profile == "" {
		profile = s.assessments.DefaultProfile()
	}

	result, err := s.assessments.Evaluate(profile, req.Metrics)
	if errors.Is(err, health.ErrMissingMetric) {
		// the caller supplied the metrics, so this is their mistake
		respondError(w, http.StatusBadRequest, "metrics incomplete for profile", err)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, AssessmentResponse{Profile: profile, RiskAssessment: result})
}

// Add entry handler
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil || date.IsZero() {
		respondError(w, http.StatusBadRequest, "date is required as YYYY-MM-DD or RFC 3339", err)
		return
	}

	entry := req.DailyEntry
	entry.ID = ""
	entry.UserID = userID
	entry.Date = date

	if err := s.assessments.Record(r.Context(), &entry); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// List entries handler
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	req, ok := assessmentRequest(w, r)
	if !ok {
		return
	}

	entries, err := s.assessments.History(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []health.DailyEntry{}
	}

	respondJSON(w, http.StatusOK, EntriesListResponse{Entries: entries})
}

// Aggregated metrics handler
func (s *Server) handleUserMetrics(w http.ResponseWriter, r *http.Request) {
	req, ok := assessmentRequest(w, r)
	if !ok {
		return
	}

	metrics, err := s.assessments.Metrics(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, MetricsResponse{UserID: req.UserID, Metrics: metrics})
}

// User norms handler; ?sex= and ?age= override what the history records.
func (s *Server) handleUserNorms(w http.ResponseWriter, r *http.Request) {
	req := assessment.NormsRequest{
		UserID: chi.URLParam(r, "userId"),
		Sex:    r.URL.Query().Get("sex"),
	}
	if v := r.URL.Query().Get("age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil || age <= 0 {
			respondError(w, http.StatusBadRequest, "age must be a positive integer", err)
			return
		}
		req.Age = age
	}

	report, err := s.assessments.Norms(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, NormsResponse{UserID: req.UserID, Report: report})
}

// User assessment handler; ?source=llm asks the narrative predictor instead
// of the rule engine.
func (s *Server) handleUserAssessment(w http.ResponseWriter, r *http.Request) {
	req, ok := assessmentRequest(w, r)
	if !ok {
		return
	}
	if req.Profile == "" {
		req.Profile = s.assessments.DefaultProfile()
	}

	var (
		result *health.RiskAssessment
		err    error
	)
	switch source := r.URL.Query().Get("source"); source {
	case "", string(health.SourceRules):
		result, err = s.assessments.Assess(r.Context(), req)
	case string(health.SourceLLM):
		result, err = s.assessments.Narrate(r.Context(), req)
	default:
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", source), nil)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, AssessmentResponse{UserID: req.UserID, Profile: req.Profile, RiskAssessment: result})
}

// List following handler
func (s *Server) handleListFollowing(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	following, err := s.social.Following(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if following == nil {
		following = []string{}
	}

	respondJSON(w, http.StatusOK, FollowingResponse{UserID: userID, Following: following})
}

// Follow handler
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	peerID := chi.URLParam(r, "peerId")

	if err := s.social.Follow(r.Context(), userID, peerID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unfollow handler
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	peerID := chi.URLParam(r, "peerId")

	if err := s.social.Unfollow(r.Context(), userID, peerID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Compare handler
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	peerID := chi.URLParam(r, "peerId")

	comparison, err := s.social.Compare(r.Context(), userID, peerID)
	if errors.Is(err, social.ErrNotFollowing) {
		respondError(w, http.StatusForbidden, "follow this user to compare", err)
		return
	}
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, comparison)
}

// List profiles handler
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	list := s.profiles.ListProfiles()
	resp := ProfilesListResponse{Profiles: make([]ProfileResponse, 0, len(list))}
	for _, p := range list {
		resp.Profiles = append(resp.Profiles, profileResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Create profile handler
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p := profiles.Profile{
		ID:         req.ID,
		Name:       req.Name,
		Thresholds: req.Thresholds,
		Schema:     req.Schema,
	}
	if err := s.profiles.CreateProfile(r.Context(), p); err != nil {
		if errors.Is(err, profiles.ErrProfileExists) {
			respondError(w, http.StatusConflict, "profile already exists", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to create profile", err)
		return
	}

	created, err := s.profiles.Get(p.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, profileResponse(created))
}

// Get profile handler
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(chi.URLParam(r, "profileId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profileResponse(p))
}

// Delete profile handler
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileId")
	if profileID == s.assessments.DefaultProfile() {
		respondError(w, http.StatusConflict, "the default profile cannot be deleted", nil)
		return
	}

	if err := s.profiles.DeleteProfile(r.Context(), profileID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get schema handler
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(chi.URLParam(r, "profileId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"version":    p.SchemaVersion,
		"definition": p.Schema,
	})
}

// Update schema handler
func (s *Server) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileId")

	var req UpdateSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	// Update schema (zero downtime!)
	if err := s.profiles.UpdateProfileSchema(r.Context(), profileID, req.Definition); err != nil {
		if errors.Is(err, profiles.ErrProfileNotFound) {
			respondServiceError(w, r, err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to update schema", err)
		return
	}

	p, err := s.profiles.Get(profileID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	engine, err := s.profiles.GetEngine(profileID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	required, err := engine.RequiredMetrics()
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "active",
		"version":         p.SchemaVersion,
		"metricsRequired": required,
	})
}

func (s *Server) profileEngine(w http.ResponseWriter, r *http.Request) (*rules.Engine, bool) {
	engine, err := s.profiles.GetEngine(chi.URLParam(r, "profileId"))
	if err != nil {
		respondServiceError(w, r, err)
		return nil, false
	}
	return engine, true
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.profileEngine(w, r)
	if !ok {
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	id := req.ID
	if id == "" {
		id = "rule-" + uuid.NewString()
	}
	rule := req.rule(id)

	// Add rule (this validates and compiles it)
	if err := engine.AddRule(rule); err != nil {
		if errors.Is(err, rules.ErrRuleExists) {
			respondError(w, http.StatusConflict, "rule already exists", err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to add rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.profileEngine(w, r)
	if !ok {
		return
	}

	list, err := engine.Rules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}

	respondJSON(w, http.StatusOK, RulesListResponse{Rules: list})
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.profileEngine(w, r)
	if !ok {
		return
	}

	rule, err := engine.Rule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Update rule handler
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.profileEngine(w, r)
	if !ok {
		return
	}
	ruleID := chi.URLParam(r, "ruleId")

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	existing, err := engine.Rule(ruleID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	rule := req.rule(ruleID)
	rule.CreatedAt = existing.CreatedAt

	if err := engine.UpdateRule(rule); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			respondServiceError(w, r, err)
			return
		}
		respondError(w, http.StatusBadRequest, "failed to update rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Delete rule handler
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.profileEngine(w, r)
	if !ok {
		return
	}

	if err := engine.DeleteRule(chi.URLParam(r, "ruleId")); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Rule evaluation handler: per-rule results without scoring
func (s *Server) handleEvaluateRules(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.profileEngine(w, r)
	if !ok {
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Metrics == nil {
		respondError(w, http.StatusBadRequest, "metrics are required", nil)
		return
	}

	startTime := time.Now()

	var results []*rules.EvaluationResult
	if len(req.Rules) > 0 {
		results = make([]*rules.EvaluationResult, 0, len(req.Rules))
		for _, ruleID := range req.Rules {
			// evaluation errors are reported per rule; only lookup failures abort
			result, err := engine.Evaluate(ruleID, req.Metrics)
			if result == nil {
				respondServiceError(w, r, err)
				return
			}
			results = append(results, result)
		}
	} else {
		var err error
		results, err = engine.EvaluateAll(req.Metrics)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "evaluation failed", err)
			return
		}
	}

	resp := EvaluateResponse{
		Results:        make([]EvaluationResultResponse, 0, len(results)),
		EvaluationTime: time.Since(startTime).String(),
	}
	for _, result := range results {
		resp.Results = append(resp.Results, evaluationResponse(result))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Batch assessment handler
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	report, err := s.assessments.AssessAll(r.Context(), chi.URLParam(r, "profileId"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// assessmentRequest reads the user, profile and date window from the URL
func assessmentRequest(w http.ResponseWriter, r *http.Request) (assessment.Request, bool) {
	q := r.URL.Query()
	req := assessment.Request{
		UserID:  chi.URLParam(r, "userId"),
		Profile: q.Get("profile"),
	}

	from, err := parseDate(q.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid from date", err)
		return req, false
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid to date", err)
		return req, false
	}
	if !to.IsZero() && len(q.Get("to")) == len(time.DateOnly) {
		// a bare date includes the whole day
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		respondError(w, http.StatusBadRequest, "to is before from", nil)
		return req, false
	}

	req.From, req.To = from, to
	return req, true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assessment.ErrInvalidEntry),
		errors.Is(err, social.ErrSelfFollow),
		errors.Is(err, social.ErrInvalidUser),
		errors.Is(err, health.ErrMixedUsers),
		errors.Is(err, norms.ErrUnknownSex):
		respondError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, assessment.ErrNormsIncomplete):
		respondError(w, http.StatusBadRequest, "sex and age are unknown; record them or pass ?sex= and ?age=", err)
	case errors.Is(err, norms.ErrNoNorm):
		respondError(w, http.StatusNotFound, "no reference norm for this sex and age", err)
	case errors.Is(err, health.ErrEmptyHistory):
		respondError(w, http.StatusNotFound, "no data available", err)
	case errors.Is(err, profiles.ErrProfileNotFound):
		respondError(w, http.StatusNotFound, "profile not found", err)
	case errors.Is(err, rules.ErrRuleNotFound):
		respondError(w, http.StatusNotFound, "rule not found", err)
	case errors.Is(err, social.ErrNotFollowing):
		respondError(w, http.StatusNotFound, "not following this user", err)
	case errors.Is(err, social.ErrAlreadyFollowing),
		errors.Is(err, profiles.ErrProfileExists),
		errors.Is(err, rules.ErrRuleExists):
		respondError(w, http.StatusConflict, "already exists", err)
	case errors.Is(err, narrative.ErrNotConfigured):
		respondError(w, http.StatusNotImplemented, "narrative assessments are not configured", err)
	case errors.Is(err, assessment.ErrNormsNotConfigured):
		respondError(w, http.StatusNotImplemented, "reference norms are not configured", err)
	case errors.Is(err, narrative.ErrMalformedResponse):
		respondError(w, http.StatusBadGateway, "narrative predictor returned an unusable answer", err)
	case errors.Is(err, health.ErrMissingMetric):
		logger.Error("rule table and aggregation disagree", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "assessment failed", err)
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
