// Package assessment ties stored history, aggregation and the profile
// engines together into risk assessments.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/logger"
	"github.com/liamcoop/healthpro/internal/telemetry"
	"github.com/liamcoop/healthpro/narrative"
	"github.com/liamcoop/healthpro/norms"
	"github.com/liamcoop/healthpro/profiles"
	"github.com/liamcoop/healthpro/storage"
)

// ErrInvalidEntry wraps entry validation failures.
var ErrInvalidEntry = errors.New("invalid entry")

// Request selects a user's history and the profile to score it against.
// Zero From/To leave that side of the window open.
type Request struct {
	UserID  string
	Profile string
	From    time.Time
	To      time.Time
}

type Service struct {
	entries        storage.EntryStore
	profiles       *profiles.Manager
	predictor      narrative.Predictor
	norms          *norms.Table
	defaultProfile string
	workers        int
}

type Option func(*Service)

// WithPredictor enables Narrate.
func WithPredictor(p narrative.Predictor) Option {
	return func(s *Service) { s.predictor = p }
}

// WithNorms enables Norms.
func WithNorms(t *norms.Table) Option {
	return func(s *Service) { s.norms = t }
}

// WithDefaultProfile sets the profile used when a request names none.
func WithDefaultProfile(id string) Option {
	return func(s *Service) { s.defaultProfile = id }
}

// WithWorkers bounds AssessAll's concurrency.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func NewService(entries storage.EntryStore, manager *profiles.Manager, opts ...Option) *Service {
	s := &Service{
		entries:        entries,
		profiles:       manager,
		defaultProfile: "default",
		workers:        runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultProfile returns the profile used when a request names none.
func (s *Service) DefaultProfile() string {
	return s.defaultProfile
}

func (s *Service) profileID(id string) string {
	if id == "" {
		return s.defaultProfile
	}
	return id
}

// Record validates an entry, truncates it to its day, derives BMI when
// possible and stores it.
func (s *Service) Record(ctx context.Context, entry *health.DailyEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	entry.NormalizeDate()
	entry.NormalizeBMI()
	return s.entries.Add(ctx, entry)
}

// History returns the user's entries inside the request window.
func (s *Service) History(ctx context.Context, req Request) ([]health.DailyEntry, error) {
	entries, err := s.entries.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", req.UserID, err)
	}
	return health.Window(entries, req.From, req.To), nil
}

// Metrics aggregates the user's windowed history. It returns
// health.ErrEmptyHistory when nothing falls inside the window.
func (s *Service) Metrics(ctx context.Context, req Request) (health.AggregatedMetrics, error) {
	entries, err := s.History(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, health.ErrEmptyHistory
	}
	return health.Aggregate(entries)
}

// Assess scores the user's history with the profile's rule engine.
func (s *Service) Assess(ctx context.Context, req Request) (*health.RiskAssessment, error) {
	profile := s.profileID(req.Profile)
	engine, err := s.profiles.GetEngine(profile)
	if err != nil {
		telemetry.RecordError(profile, "unknown_profile")
		return nil, err
	}

	start := time.Now()
	metrics, err := s.Metrics(ctx, req)
	if err != nil {
		if errors.Is(err, health.ErrEmptyHistory) {
			telemetry.RecordError(profile, "empty_history")
		}
		return nil, err
	}

	result, err := engine.Classify(metrics)
	if err != nil {
		if errors.Is(err, health.ErrMissingMetric) {
			telemetry.RecordError(profile, "missing_metric")
			logger.Error("rule table needs a metric aggregation does not produce",
				"profile", profile, "user", req.UserID, "error", err)
		} else {
			telemetry.RecordError(profile, "classify")
		}
		return nil, err
	}

	telemetry.RecordAssessment(profile, result.Level.String(), string(result.Source), result.Score, time.Since(start))
	logger.Debug("assessment produced", "profile", profile, "user", req.UserID,
		"score", result.Score, "level", result.Level.String())
	return result, nil
}

// Narrate asks the configured predictor for an assessment of the same
// aggregated metrics Assess would use.
func (s *Service) Narrate(ctx context.Context, req Request) (*health.RiskAssessment, error) {
	if s.predictor == nil {
		return nil, narrative.ErrNotConfigured
	}
	profile := s.profileID(req.Profile)

	metrics, err := s.Metrics(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.predictor.Predict(ctx, metrics)
	if err != nil {
		telemetry.RecordError(profile, "predictor")
		return nil, fmt.Errorf("predictor failed: %w", err)
	}
	telemetry.RecordAssessment(profile, result.Level.String(), string(result.Source), result.Score, time.Since(start))
	return result, nil
}

// Evaluate classifies metrics supplied by the caller; nothing is loaded or stored.
func (s *Service) Evaluate(profile string, metrics health.AggregatedMetrics) (*health.RiskAssessment, error) {
	profile = s.profileID(profile)
	engine, err := s.profiles.GetEngine(profile)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := engine.Classify(metrics)
	if err != nil {
		telemetry.RecordError(profile, "classify")
		return nil, err
	}
	telemetry.RecordAssessment(profile, result.Level.String(), string(result.Source), result.Score, time.Since(start))
	return result, nil
}
