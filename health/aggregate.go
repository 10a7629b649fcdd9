package health

import "time"

// Aggregate reduces one user's history to a single set of metrics.
//
// Habits and body measurements are averaged over every entry. Age and height
// change slowly, so they take the most recent entry's value instead. The
// timed up-and-go average only counts entries where the test was taken, and
// vision/hearing become the share of recorded outcomes that were not normal.
// No filtering or windowing happens here; see Window.
func Aggregate(entries []DailyEntry) (AggregatedMetrics, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyHistory
	}
	if err := checkSingleUser(entries); err != nil {
		return nil, err
	}

	var (
		sleep, water, count, minutes, sedentary float64
		meals, calories, weight, bmi            float64
		tugSum                                  float64
		tugTaken                                int
		vision, hearing                         outcomeTally
	)
	for i := range entries {
		e := &entries[i]
		sleep += e.SleepHours
		water += e.WaterLiters
		count += float64(e.ActivityCount)
		minutes += float64(e.ActivityMinutes)
		sedentary += float64(e.SedentaryMinutes)
		meals += float64(e.Meals)
		calories += float64(e.Calories)
		weight += e.WeightKg
		bmi += e.BMI
		if e.TUGSeconds > 0 {
			tugSum += e.TUGSeconds
			tugTaken++
		}
		vision.add(e.Vision)
		hearing.add(e.Hearing)
	}

	n := float64(len(entries))
	latest := entries[mostRecent(entries)]

	metrics := AggregatedMetrics{
		MetricSleepHours:          sleep / n,
		MetricWaterLiters:         water / n,
		MetricActivityCount:       count / n,
		MetricActivityMinutes:     minutes / n,
		MetricSedentaryMinutes:    sedentary / n,
		MetricMeals:               meals / n,
		MetricCalories:            calories / n,
		MetricWeightKg:            weight / n,
		MetricBMI:                 bmi / n,
		MetricAge:                 float64(latest.Age),
		MetricHeightCm:            latest.HeightCm,
		MetricTUGSeconds:          0,
		MetricVisionAbnormalRate:  vision.rate(),
		MetricHearingAbnormalRate: hearing.rate(),
	}
	if tugTaken > 0 {
		metrics[MetricTUGSeconds] = tugSum / float64(tugTaken)
	}
	return metrics, nil
}

// Snapshot returns the metrics of the most recent entry alone.
func Snapshot(entries []DailyEntry) (AggregatedMetrics, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyHistory
	}
	latest := entries[mostRecent(entries)]
	return Aggregate([]DailyEntry{latest})
}

// Window keeps the entries whose date falls within [from, to]. A zero bound is open.
func Window(entries []DailyEntry, from, to time.Time) []DailyEntry {
	if from.IsZero() && to.IsZero() {
		return entries
	}
	kept := make([]DailyEntry, 0, len(entries))
	for _, e := range entries {
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// mostRecent returns the index of the latest entry; later positions win ties.
func mostRecent(entries []DailyEntry) int {
	idx := 0
	for i := 1; i < len(entries); i++ {
		if !entries[i].Date.Before(entries[idx].Date) {
			idx = i
		}
	}
	return idx
}

func checkSingleUser(entries []DailyEntry) error {
	owner := ""
	for _, e := range entries {
		if e.UserID == "" {
			continue
		}
		if owner == "" {
			owner = e.UserID
			continue
		}
		if e.UserID != owner {
			return ErrMixedUsers
		}
	}
	return nil
}

type outcomeTally struct {
	recorded, abnormal int
}

func (t *outcomeTally) add(result string) {
	if !outcomeRecorded(result) {
		return
	}
	t.recorded++
	if outcomeAbnormal(result) {
		t.abnormal++
	}
}

func (t outcomeTally) rate() float64 {
	if t.recorded == 0 {
		return 0
	}
	return float64(t.abnormal) / float64(t.recorded)
}
