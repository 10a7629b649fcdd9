package assessment

import (
	"context"
	"errors"
	"fmt"

	"github.com/liamcoop/healthpro/health"
	"github.com/liamcoop/healthpro/norms"
)

var (
	// ErrNormsNotConfigured is returned by Norms when no reference table was given.
	ErrNormsNotConfigured = errors.New("reference norms are not configured")

	// ErrNormsIncomplete is returned when neither the request nor the
	// history says the user's sex and age.
	ErrNormsIncomplete = errors.New("sex and age are needed to look up norms")
)

// NormsRequest overrides the sex and age found in the user's history.
type NormsRequest struct {
	UserID string
	Sex    string
	Age    int
}

// Norms compares the user's most recent entry with the reference band for
// their sex and age. Sex comes from the latest entry that records one; age
// from the latest entry.
func (s *Service) Norms(ctx context.Context, req NormsRequest) (*norms.Report, error) {
	if s.norms == nil {
		return nil, ErrNormsNotConfigured
	}

	entries, err := s.entries.ListByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", req.UserID, err)
	}
	metrics, err := health.Snapshot(entries)
	if err != nil {
		return nil, err
	}

	sexText := req.Sex
	for i := len(entries) - 1; sexText == "" && i >= 0; i-- {
		sexText = entries[i].Sex
	}
	age := req.Age
	if age == 0 {
		age = int(metrics[health.MetricAge])
	}
	if sexText == "" || age <= 0 {
		return nil, ErrNormsIncomplete
	}

	sex, err := norms.ParseSex(sexText)
	if err != nil {
		return nil, err
	}
	return s.norms.Compare(sex, age, metrics)
}
