package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordedSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestRequestMetricsEmitsSpanAndLog(t *testing.T) {
	recorder := recordedSpans(t)
	logger, hook := test.NewNullLogger()

	m, ctx := newRequestMetrics(context.Background(), logger, "/api/channels/:channelID/columns")
	if ctx == nil {
		t.Fatal("span context missing")
	}
	m.ObserveAuth(2 * time.Millisecond)
	m.ObserveStore(5 * time.Millisecond)
	m.ObserveFanout(time.Millisecond)
	m.Log(http.StatusCreated, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "board.mutation" {
		t.Fatalf("span name = %s", span.Name())
	}
	attrs := make(map[string]any)
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	if attrs["http.route"] != "/api/channels/:channelID/columns" {
		t.Fatalf("route attr = %v", attrs["http.route"])
	}
	if attrs["http.status_code"] != int64(http.StatusCreated) {
		t.Fatalf("status attr = %v", attrs["http.status_code"])
	}

	if len(hook.Entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(hook.Entries))
	}
	entry := hook.Entries[0]
	if entry.Data["event.name"] != "board.mutation.metrics" {
		t.Fatalf("event.name = %v", entry.Data["event.name"])
	}
	if entry.Data["status"] != http.StatusCreated {
		t.Fatalf("status = %v", entry.Data["status"])
	}
	for _, key := range []string{"auth_ms", "store_ms", "fanout_ms", "total_ms", "trace_id"} {
		if _, ok := entry.Data[key]; !ok {
			t.Errorf("field %s missing", key)
		}
	}
	if _, ok := entry.Data["error_stage"]; ok {
		t.Error("error_stage set on a clean request")
	}
}

func TestRequestMetricsRecordsErrorStage(t *testing.T) {
	recorder := recordedSpans(t)
	logger, hook := test.NewNullLogger()

	m, _ := newRequestMetrics(context.Background(), logger, "/api/broadcast")
	m.SetErrorStage("fanout")
	m.Log(http.StatusInternalServerError, errors.New("publish failed"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	var stage any
	for _, kv := range spans[0].Attributes() {
		if string(kv.Key) == "board.error_stage" {
			stage = kv.Value.AsInterface()
		}
	}
	if stage != "fanout" {
		t.Fatalf("error stage attr = %v", stage)
	}

	entry := hook.Entries[0]
	if entry.Data["error_stage"] != "fanout" || entry.Data["error"] != "publish failed" {
		t.Fatalf("entry = %+v", entry.Data)
	}
}
