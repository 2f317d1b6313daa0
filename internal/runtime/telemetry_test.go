package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/quizchain/config"
)

func TestTelemetryExposesCounters(t *testing.T) {
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{Enabled: true, ServiceName: "quizchain-test"})
	if err != nil {
		t.Fatalf("SetupTelemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	c, err := tel.Meter.Int64Counter("quiz_probe_total")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	c.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quiz_probe_total") {
		t.Fatalf("counter missing from exposition:\n%s", rec.Body.String())
	}
}

func TestTelemetryDisabled(t *testing.T) {
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{})
	if err != nil {
		t.Fatalf("SetupTelemetry: %v", err)
	}
	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
