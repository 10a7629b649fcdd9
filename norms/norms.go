// Package norms compares a user's latest metrics with reference ranges for
// their sex and age.
package norms

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/healthpro/health"
)

//go:embed reference_norms.yaml
var referenceNormsYAML []byte

var (
	// ErrNoNorm is wrapped when no band covers the requested sex and age.
	ErrNoNorm = errors.New("no reference norm for this sex and age")

	// ErrUnknownSex is wrapped by ParseSex.
	ErrUnknownSex = errors.New("unknown sex")
)

// Sex selects the reference bands.
type Sex string

const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
)

// ParseSex accepts "female", "male" and their first letters, in any case.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "female", "f":
		return SexFemale, nil
	case "male", "m":
		return SexMale, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSex, s)
	}
}

// Range is an inclusive reference interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Status places a value relative to a Range.
type Status string

const (
	StatusBelow  Status = "below"
	StatusWithin Status = "within"
	StatusAbove  Status = "above"
)

// Status reports where v falls.
func (r Range) Status(v float64) Status {
	switch {
	case v < r.Min:
		return StatusBelow
	case v > r.Max:
		return StatusAbove
	default:
		return StatusWithin
	}
}

// Band holds the reference ranges for one sex over an age interval.
type Band struct {
	Sex     Sex              `yaml:"sex" json:"sex"`
	MinAge  int              `yaml:"min_age" json:"minAge"`
	MaxAge  int              `yaml:"max_age" json:"maxAge"`
	Metrics map[string]Range `yaml:"metrics" json:"metrics"`
}

func (b *Band) covers(sex Sex, age int) bool {
	return b.Sex == sex && age >= b.MinAge && age <= b.MaxAge
}

// Table is a set of non-overlapping bands.
type Table struct {
	Bands []Band `yaml:"bands"`
}

// DefaultTable returns the reference table shipped with the binary.
func DefaultTable() (*Table, error) {
	return LoadTable(bytes.NewReader(referenceNormsYAML))
}

// LoadTableFile reads a reference table from path.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open norms table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// LoadTable decodes and validates a YAML reference table.
func LoadTable(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to parse norms table: %w", err)
	}
	if err := t.check(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) check() error {
	if len(t.Bands) == 0 {
		return errors.New("norms table defines no bands")
	}
	for i := range t.Bands {
		b := &t.Bands[i]
		sex, err := ParseSex(string(b.Sex))
		if err != nil {
			return fmt.Errorf("band %d: %w", i, err)
		}
		b.Sex = sex
		if b.MinAge < 0 || b.MaxAge < b.MinAge {
			return fmt.Errorf("band %d: invalid age interval %d-%d", i, b.MinAge, b.MaxAge)
		}
		if len(b.Metrics) == 0 {
			return fmt.Errorf("band %d: no metrics", i)
		}
		for name, rng := range b.Metrics {
			if !slices.Contains(health.KnownMetrics, name) {
				return fmt.Errorf("band %d: unknown metric %s", i, name)
			}
			if rng.Max < rng.Min {
				return fmt.Errorf("band %d: %s max is below min", i, name)
			}
		}
		for j := 0; j < i; j++ {
			prev := &t.Bands[j]
			if prev.Sex == b.Sex && b.MinAge <= prev.MaxAge && prev.MinAge <= b.MaxAge {
				return fmt.Errorf("band %d overlaps band %d", i, j)
			}
		}
	}
	return nil
}

// Lookup returns the band covering sex and age.
func (t *Table) Lookup(sex Sex, age int) (*Band, error) {
	for i := range t.Bands {
		if t.Bands[i].covers(sex, age) {
			return &t.Bands[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s aged %d", ErrNoNorm, sex, age)
}

// unrecorded metrics read zero when the user never logged them.
var unrecorded = map[string]bool{
	health.MetricCalories: true,
	health.MetricHeightCm: true,
	health.MetricWeightKg: true,
	health.MetricBMI:      true,
}

// Comparison is one metric set against its reference range.
type Comparison struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Range
	Status Status `json:"status"`
}

// Report is the outcome of Compare.
type Report struct {
	Sex         Sex          `json:"sex"`
	Age         int          `json:"age"`
	Band        *Band        `json:"band"`
	Comparisons []Comparison `json:"comparisons"`
	Missing     []string     `json:"missing,omitempty"`
}

// Compare sets metrics against the band for sex and age, in metric name
// order. Metrics the band covers but the user has not recorded are listed
// as missing rather than failing the call.
func (t *Table) Compare(sex Sex, age int, metrics health.AggregatedMetrics) (*Report, error) {
	band, err := t.Lookup(sex, age)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(band.Metrics))
	for name := range band.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &Report{Sex: sex, Age: age, Band: band, Comparisons: []Comparison{}}
	for _, name := range names {
		v, err := metrics.Get(name)
		if err != nil || (v == 0 && unrecorded[name]) {
			report.Missing = append(report.Missing, name)
			continue
		}
		rng := band.Metrics[name]
		report.Comparisons = append(report.Comparisons, Comparison{
			Metric: name,
			Value:  v,
			Range:  rng,
			Status: rng.Status(v),
		})
	}
	return report, nil
}
