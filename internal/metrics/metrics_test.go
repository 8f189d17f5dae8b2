package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{422, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("statusBucket(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestCounterIncrements(t *testing.T) {
	PaymentsTotal.Reset()
	PaymentsTotal.WithLabelValues("wallet", "completed").Inc()
	PaymentsTotal.WithLabelValues("wallet", "completed").Inc()

	m := &dto.Metric{}
	counter, err := PaymentsTotal.GetMetricWithLabelValues("wallet", "completed")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 2.0 {
		t.Errorf("counter value = %f, want 2", m.Counter.GetValue())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	body := w.Body.String()
	// Gauges are always exported, even at their default 0 value.
	for _, name := range []string{
		"payflex_active_websocket_clients",
		"payflex_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected metrics output to contain %s", name)
		}
	}

	// Counters appear after the first observation.
	USSDTurnsTotal.WithLabelValues("MAIN_MENU").Inc()

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/metrics", nil)
	r.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "payflex_ussd_turns_total") {
		t.Error("Expected payflex_ussd_turns_total after incrementing")
	}
}

func TestMiddleware_RecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	HTTPRequestsTotal.Reset()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	m := &dto.Metric{}
	counter, err := HTTPRequestsTotal.GetMetricWithLabelValues("GET", "/ping", "2xx")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	_ = counter.Write(m)

	if m.Counter.GetValue() != 1.0 {
		t.Errorf("request counter = %f, want 1", m.Counter.GetValue())
	}
}
