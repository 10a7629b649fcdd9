package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAssessment(t *testing.T) {
	counter := assessmentsTotal.WithLabelValues("test-profile", "High", "rules")
	before := testutil.ToFloat64(counter)

	RecordAssessment("test-profile", "High", "rules", 9, time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("assessments counter grew by %v, want 1", got)
	}
}

func TestRecordError(t *testing.T) {
	counter := assessmentErrors.WithLabelValues("test-profile", "missing_metric")
	before := testutil.ToFloat64(counter)

	RecordError("test-profile", "missing_metric")
	RecordError("test-profile", "missing_metric")

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("error counter grew by %v, want 2", got)
	}
}

func TestRecordBatchUserAndResponse(t *testing.T) {
	skipped := batchUsers.WithLabelValues("skipped")
	before := testutil.ToFloat64(skipped)
	RecordBatchUser("skipped")
	if got := testutil.ToFloat64(skipped) - before; got != 1 {
		t.Errorf("batch counter grew by %v, want 1", got)
	}

	notFound := httpResponses.WithLabelValues("404")
	before = testutil.ToFloat64(notFound)
	RecordResponse(http.StatusNotFound)
	if got := testutil.ToFloat64(notFound) - before; got != 1 {
		t.Errorf("response counter grew by %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordAssessment("exposed", "Low", "rules", 0, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"healthpro_assessments_total", "healthpro_log_errors_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
