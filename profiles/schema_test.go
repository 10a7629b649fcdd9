package profiles

import (
	"fmt"
	"strings"
	"testing"
)

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr string
	}{
		{"valid", Schema{"sleep_hours": "double", "meals": "float64"}, ""},
		{"empty", Schema{}, "empty"},
		{"bad type", Schema{"sleep_hours": "string"}, "invalid type"},
		{"case sensitive type", Schema{"sleep_hours": "Double"}, "invalid type"},
		{"whitespace type", Schema{"sleep_hours": " double"}, "whitespace"},
		{"empty type", Schema{"sleep_hours": ""}, "empty type"},
		{"bad name", Schema{"sleep-hours": "double"}, "invalid metric name"},
		{"reserved name", Schema{"in": "double"}, "reserved"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSchema(tc.schema)
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateSchema() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("ValidateSchema() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateSchema_ReportsEveryMetric(t *testing.T) {
	err := ValidateSchema(Schema{"a-b": "double", "c": "int"})
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{`"a-b"`, `"c"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %v does not mention %s", err, want)
		}
	}
}

func TestValidateSchema_TooManyMetrics(t *testing.T) {
	schema := Schema{}
	for i := 0; i <= maxMetrics; i++ {
		schema[fmt.Sprintf("metric_%d", i)] = "double"
	}

	err := ValidateSchema(schema)
	if err == nil || !strings.Contains(err.Error(), "maximum") {
		t.Errorf("ValidateSchema() = %v, want a size error", err)
	}
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"sleep_hours", "_x", "a", "BMI", "tug_seconds2"}
	for _, id := range valid {
		if err := validateIdentifier(id); err != nil {
			t.Errorf("validateIdentifier(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "2fast", "sleep-hours", "sleep.hours", "sleep hours", "true", "null", strings.Repeat("a", 101)}
	for _, id := range invalid {
		if err := validateIdentifier(id); err == nil {
			t.Errorf("validateIdentifier(%q) = nil, want error", id)
		}
	}
}

func TestCreateCELEnvFromSchema(t *testing.T) {
	env, err := CreateCELEnvFromSchema(Schema{"sleep_hours": "double"})
	if err != nil {
		t.Fatalf("CreateCELEnvFromSchema() failed: %v", err)
	}

	if _, iss := env.Compile(`sleep_hours < 5.0`); iss.Err() != nil {
		t.Errorf("declared metric should compile: %v", iss.Err())
	}
	if _, iss := env.Compile(`meals == 0.0`); iss.Err() == nil {
		t.Error("undeclared metric should not compile")
	}
}

func TestSchemaNamesSorted(t *testing.T) {
	got := Schema{"b": "double", "a": "double", "c": "double"}.Names()
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("Names() = %v, want [a b c]", got)
	}
}
