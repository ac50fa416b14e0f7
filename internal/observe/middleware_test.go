package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// middlewareHarness wires an instrumented no-op handler to in-memory metric
// and span collectors.
type middlewareHarness struct {
	handler http.Handler
	reader  *sdkmetric.ManualReader
	spans   *tracetest.InMemoryExporter

	lastCID string
}

func newMiddlewareHarness(t *testing.T, status int) *middlewareHarness {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prevTP) })

	h := &middlewareHarness{reader: reader, spans: exp}
	h.handler = Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.lastCID = CorrelationID(r.Context())
		w.WriteHeader(status)
	}))
	return h
}

func (h *middlewareHarness) get(t *testing.T, path string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AssignsCorrelationID(t *testing.T) {
	h := newMiddlewareHarness(t, http.StatusOK)
	rec := h.get(t, "/npc_interaction", nil)

	if len(h.lastCID) != 32 {
		t.Fatalf("handler saw correlation ID %q, want a 32-char trace ID", h.lastCID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != h.lastCID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, h.lastCID)
	}
}

func TestMiddleware_RecordsServerSpan(t *testing.T) {
	h := newMiddlewareHarness(t, http.StatusOK)
	h.get(t, "/npcs", nil)

	spans := h.spans.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /npcs" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET /npcs")
	}
}

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	h := newMiddlewareHarness(t, http.StatusOK)
	h.get(t, "/players", nil)

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	met := findMetric(rm, "talevox.http.request.duration")
	if met == nil {
		t.Fatal("request duration metric not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("request duration metric has no histogram data")
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	want := map[string]string{"method": "GET", "path": "/players"}
	for _, kv := range dp.Attributes.ToSlice() {
		if expect, ok := want[string(kv.Key)]; ok && kv.Value.AsString() == expect {
			delete(want, string(kv.Key))
		}
	}
	for k := range want {
		t.Errorf("duration data point missing attribute %q", k)
	}
}

func TestMiddleware_TapsStatusCode(t *testing.T) {
	h := newMiddlewareHarness(t, http.StatusNotFound)
	rec := h.get(t, "/npcs/missing", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	spans := h.spans.GetSpans()
	if len(spans) != 1 {
		t.Fatal("no span recorded")
	}
	var got int64
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" {
			got = a.Value.AsInt64()
		}
	}
	if got != 404 {
		t.Errorf("span status code attribute = %d, want 404", got)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	const upstream = "4bf92f3577b34da6a3ce929d0e0e4736"

	h := newMiddlewareHarness(t, http.StatusOK)
	rec := h.get(t, "/npc_interaction", map[string]string{
		"traceparent": "00-" + upstream + "-00f067aa0ba902b7-01",
	})

	if h.lastCID != upstream {
		t.Errorf("handler correlation ID = %q, want upstream trace %q", h.lastCID, upstream)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != upstream {
		t.Errorf("X-Correlation-ID = %q, want %q", got, upstream)
	}
}
