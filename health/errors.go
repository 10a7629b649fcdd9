package health

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyHistory is returned when aggregation is asked to summarize no entries.
	// Callers should short-circuit ("no data available") instead of classifying.
	ErrEmptyHistory = errors.New("empty history: no entries to aggregate")

	// ErrMixedUsers is returned when a history contains entries of more than one user.
	ErrMixedUsers = errors.New("history mixes entries from different users")

	// ErrMissingMetric matches any MissingMetricError via errors.Is.
	ErrMissingMetric = errors.New("missing metric")
)

// MissingMetricError names a metric the classifier needed but did not receive.
// It signals a schema mismatch between aggregation and the rule table.
type MissingMetricError struct {
	Metric string
}

func (e *MissingMetricError) Error() string {
	return fmt.Sprintf("missing metric %q", e.Metric)
}

func (e *MissingMetricError) Is(target error) bool {
	return target == ErrMissingMetric
}
