package profiles

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/healthpro/rules"
)

// Schema maps each metric a profile's rules may read to its type.
type Schema map[string]string

const maxMetrics = 200

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Names returns the metric names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateSchema checks metric names and types. Every problem is reported.
func ValidateSchema(schema Schema) error {
	if len(schema) == 0 {
		return errors.New("schema cannot be empty, must declare at least one metric")
	}
	if len(schema) > maxMetrics {
		return fmt.Errorf("schema declares %d metrics, maximum allowed is %d", len(schema), maxMetrics)
	}

	var errs []error
	for _, name := range schema.Names() {
		typeName := schema[name]
		if err := validateIdentifier(name); err != nil {
			errs = append(errs, fmt.Errorf("invalid metric name %q: %w", name, err))
			continue
		}
		if typeName == "" {
			errs = append(errs, fmt.Errorf("metric %q has empty type name", name))
			continue
		}
		if strings.TrimSpace(typeName) != typeName {
			errs = append(errs, fmt.Errorf("metric %q has type with leading/trailing whitespace: %q", name, typeName))
			continue
		}
		if !isValidMetricType(typeName) {
			errs = append(errs, fmt.Errorf("metric %q has invalid type %q (must be double or float64)", name, typeName))
		}
	}
	return errors.Join(errs...)
}

// CreateCELEnvFromSchema declares every schema metric as a double variable.
func CreateCELEnvFromSchema(schema Schema) (*cel.Env, error) {
	return rules.MetricEnv(schema.Names())
}

func validateIdentifier(name string) error {
	if len(name) == 0 {
		return errors.New("identifier cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(name))
	}
	if !identifierPattern.MatchString(name) {
		return errors.New("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$")
	}
	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}
	return nil
}

// Aggregated metrics are float64; type names are case-sensitive.
func isValidMetricType(typeName string) bool {
	return typeName == "double" || typeName == "float64"
}

var reservedKeywords = map[string]bool{
	"true": true, "false": true, "null": true,
	"if": true, "else": true, "for": true, "while": true, "break": true, "continue": true, "return": true,
	"var": true, "let": true, "const": true, "function": true,
	"in": true, "as": true, "import": true, "package": true, "namespace": true, "loop": true, "void": true,
}

func isReservedKeyword(name string) bool {
	return reservedKeywords[name]
}
