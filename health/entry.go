package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// entryValidate is shared by every DailyEntry; validator caches struct metadata.
var entryValidate = validator.New(validator.WithRequiredStructEnabled())

// DailyEntry is one user's recorded health metrics for a given day or session.
// Entries are immutable once stored.
type DailyEntry struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id" validate:"required,max=128"`
	Date   time.Time `json:"date" validate:"required"`

	// Daily habits
	SleepHours       float64 `json:"sleep_hours" validate:"gte=0,lte=24"`
	WaterLiters      float64 `json:"water_liters" validate:"gte=0,lte=20"`
	ActivityCount    int     `json:"activity_count" validate:"gte=0,lte=10000"`
	ActivityMinutes  int     `json:"activity_minutes" validate:"gte=0,lte=1440"`
	SedentaryMinutes int     `json:"sedentary_minutes" validate:"gte=0,lte=1440"`
	Meals            int     `json:"meals" validate:"gte=0,lte=20"`
	Calories         int     `json:"calories" validate:"gte=0,lte=20000"`

	// Optional biometrics; zero means not recorded
	Sex      string  `json:"sex,omitempty" validate:"omitempty,oneof=female male"`
	Age      int     `json:"age,omitempty" validate:"gte=0,lte=150"`
	HeightCm float64 `json:"height_cm,omitempty" validate:"omitempty,gte=50,lte=250"`
	WeightKg float64 `json:"weight_kg,omitempty" validate:"omitempty,gte=20,lte=400"`
	BMI      float64 `json:"bmi,omitempty" validate:"gte=0,lte=200"`

	// Optional senior tests
	TUGSeconds float64 `json:"tug_seconds,omitempty" validate:"gte=0,lte=600"`
	Vision     string  `json:"vision,omitempty" validate:"max=64"`
	Hearing    string  `json:"hearing,omitempty" validate:"max=64"`
}

// Validate checks field ranges. It is the data-entry boundary's job to call
// it; Aggregate trusts its input.
func (e *DailyEntry) Validate() error {
	if err := entryValidate.Struct(e); err != nil {
		return fmt.Errorf("invalid entry: %w", err)
	}
	return nil
}

// NormalizeBMI fills BMI from weight and height when it was not supplied.
func (e *DailyEntry) NormalizeBMI() {
	if e.BMI > 0 || e.HeightCm <= 0 || e.WeightKg <= 0 {
		return
	}
	meters := e.HeightCm / 100
	e.BMI = e.WeightKg / (meters * meters)
}

// NormalizeDate keeps only the calendar day of Date, as seen in Date's own
// location, at midnight UTC. Entries are stored per day.
func (e *DailyEntry) NormalizeDate() {
	y, m, d := e.Date.Date()
	e.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// outcomeRecorded reports whether a vision or hearing test result was logged.
func outcomeRecorded(result string) bool {
	return strings.TrimSpace(result) != ""
}

// outcomeAbnormal treats anything other than "normal" as a finding.
func outcomeAbnormal(result string) bool {
	return !strings.EqualFold(strings.TrimSpace(result), "normal")
}
