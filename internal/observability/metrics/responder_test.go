package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/ora-response-client/internal/core/domain"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveOperationCountsByStatus(t *testing.T) {
	m := NewResponderMetrics("ora-responder")

	m.ObserveOperation("save", 20*time.Millisecond, nil)
	m.ObserveOperation("save", 30*time.Millisecond, errors.New("boom"))
	m.ObserveOperation("submit", time.Second, domain.WrapError(domain.ErrTemporary, "submit", errors.New("503")))
	m.ObserveUploadedBytes(512)
	m.ObserveUploadedBytes(-1)

	families := gather(t, m)
	counts := map[string]float64{}
	for _, metric := range families["ora_response_operations_total"].GetMetric() {
		counts[label(metric, "operation")+"/"+label(metric, "status")] = metric.GetCounter().GetValue()
	}
	if counts["save/success"] != 1 || counts["save/error"] != 1 || counts["submit/temporary"] != 1 {
		t.Fatalf("unexpected operation counts %v", counts)
	}
	if got := families["ora_upload_bytes_total"].GetMetric()[0].GetCounter().GetValue(); got != 512 {
		t.Fatalf("expected 512 uploaded bytes, got %v", got)
	}
}

func TestMiddlewareNormalizesFilePaths(t *testing.T) {
	m := NewResponderMetrics("ora-responder")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, path := range []string{"/v1/response/files/0/description", "/v1/response/files/7/description"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, path, nil))
	}

	metrics := gather(t, m)["ora_http_requests_total"].GetMetric()
	if len(metrics) != 1 {
		t.Fatalf("expected one normalized series, got %d", len(metrics))
	}
	if label(metrics[0], "path") != "/v1/response/files/{index}/description" || label(metrics[0], "status") != "204" {
		t.Fatalf("unexpected labels %v", metrics[0].GetLabel())
	}
	if metrics[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 requests, got %v", metrics[0].GetCounter().GetValue())
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewResponderMetrics("ora-responder")
	m.ObserveOperation("autosave", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `ora_response_operations_total{operation="autosave",service="ora-responder",status="success"} 1`) {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}

func gather(t *testing.T, m *ResponderMetrics) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		out[family.GetName()] = family
	}
	return out
}

func label(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}
