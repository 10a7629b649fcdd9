package health

import "sort"

// Canonical metric names shared by the aggregator, the rule tables and the API.
const (
	MetricSleepHours          = "sleep_hours"
	MetricWaterLiters         = "water_liters"
	MetricActivityCount       = "activity_count"
	MetricActivityMinutes     = "activity_minutes"
	MetricSedentaryMinutes    = "sedentary_minutes"
	MetricMeals               = "meals"
	MetricCalories            = "calories"
	MetricAge                 = "age"
	MetricHeightCm            = "height_cm"
	MetricWeightKg            = "weight_kg"
	MetricBMI                 = "bmi"
	MetricTUGSeconds          = "tug_seconds"
	MetricVisionAbnormalRate  = "vision_abnormal_rate"
	MetricHearingAbnormalRate = "hearing_abnormal_rate"
)

// KnownMetrics lists every metric Aggregate produces, in display order.
var KnownMetrics = []string{
	MetricSleepHours,
	MetricWaterLiters,
	MetricActivityCount,
	MetricActivityMinutes,
	MetricSedentaryMinutes,
	MetricMeals,
	MetricCalories,
	MetricAge,
	MetricHeightCm,
	MetricWeightKg,
	MetricBMI,
	MetricTUGSeconds,
	MetricVisionAbnormalRate,
	MetricHearingAbnormalRate,
}

// AggregatedMetrics maps a metric name to one representative value for a user.
type AggregatedMetrics map[string]float64

// Get returns the named metric or a *MissingMetricError.
func (m AggregatedMetrics) Get(name string) (float64, error) {
	v, ok := m[name]
	if !ok {
		return 0, &MissingMetricError{Metric: name}
	}
	return v, nil
}

// Require fails on the first name (in argument order) that is absent.
func (m AggregatedMetrics) Require(names ...string) error {
	for _, name := range names {
		if _, err := m.Get(name); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the metric names in sorted order.
func (m AggregatedMetrics) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Facts converts the metrics into the activation map rule programs evaluate against.
func (m AggregatedMetrics) Facts() map[string]any {
	facts := make(map[string]any, len(m))
	for name, v := range m {
		facts[name] = v
	}
	return facts
}
