package assessment

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/internal/logger"
	"github.com/liamcoop/healthpro/internal/telemetry"
)

type Outcome string

const (
	OutcomeScored  Outcome = "scored"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// UserResult is one user's line in a batch report.
type UserResult struct {
	UserID     string                 `json:"user_id"`
	Outcome    Outcome                `json:"outcome"`
	Assessment *health.RiskAssessment `json:"assessment,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type BatchReport struct {
	Profile string       `json:"profile"`
	Scored  int          `json:"scored"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
	Results []UserResult `json:"results"`
}

// AssessAll scores every user with stored history against one profile.
// Results keep the store's user order. A failing user does not stop the
// batch; only cancellation does.
func (s *Service) AssessAll(ctx context.Context, profile string) (*BatchReport, error) {
	profile = s.profileID(profile)
	if _, err := s.profiles.GetEngine(profile); err != nil {
		return nil, err
	}

	users, err := s.entries.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UserResult, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, user := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := UserResult{UserID: user}
			a, err := s.Assess(gctx, Request{UserID: user, Profile: profile})
			switch {
			case err == nil:
				res.Outcome = OutcomeScored
				res.Assessment = a
			case errors.Is(err, health.ErrEmptyHistory):
				res.Outcome = OutcomeSkipped
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				res.Outcome = OutcomeFailed
				res.Error = err.Error()
			}
			telemetry.RecordBatchUser(string(res.Outcome))
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &BatchReport{Profile: profile, Results: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeScored:
			report.Scored++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeFailed:
			report.Failed++
		}
	}

	logger.Info("batch assessment finished", "profile", profile,
		"scored", report.Scored, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
