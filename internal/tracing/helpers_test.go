package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs an in-memory tracer provider for the duration of a test
// and returns the recorder holding every span ended through it.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

// The Postgres session repository is the only StartDBSpan caller; these cases
// mirror the exact table/operation pairs it emits.
func TestStartDBSpan_RepositoryOperations(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		spanName  string
	}{
		{"folder provisioning", "session_folders", DBOperationInsert, "insert session_folders"},
		{"session create", "sessions", DBOperationInsert, "insert sessions"},
		{"session lookup", "sessions", DBOperationQuery, "query sessions"},
		{"label merge", "sessions", DBOperationUpdate, "update sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := recordSpans(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]

			if span.Name() != tt.spanName {
				t.Errorf("expected span name %q, got %q", tt.spanName, span.Name())
			}
			if span.SpanKind() != trace.SpanKindClient {
				t.Errorf("expected client span kind, got %s", span.SpanKind())
			}
			if got := span.InstrumentationScope().Name; got != "imagespace/db" {
				t.Errorf("expected tracer scope imagespace/db, got %q", got)
			}

			attrs := attrMap(span)
			if got := attrs["db.system"].AsString(); got != "postgresql" {
				t.Errorf("expected db.system=postgresql, got %q", got)
			}
			if got := attrs["db.operation"].AsString(); got != string(tt.operation) {
				t.Errorf("expected db.operation=%s, got %q", tt.operation, got)
			}
			if got := attrs["db.sql.table"].AsString(); got != tt.table {
				t.Errorf("expected db.sql.table=%s, got %q", tt.table, got)
			}
		})
	}
}

func TestStartDBSpan_NoTable(t *testing.T) {
	recorder := recordSpans(t)

	_, endSpan := StartDBSpan(context.Background(), "", DBOperationExec)
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "exec" {
		t.Errorf("expected bare operation name, got %q", got)
	}
	if _, ok := attrMap(spans[0])["db.sql.table"]; ok {
		t.Error("unexpected db.sql.table attribute on table-less span")
	}
}

func TestStartDBSpan_RecordsError(t *testing.T) {
	recorder := recordSpans(t)
	dbErr := errors.New("pq: connection refused")

	_, endSpan := StartDBSpan(context.Background(), "sessions", DBOperationUpdate)
	endSpan(dbErr)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Status().Code != codes.Error {
		t.Errorf("expected error status, got %s", span.Status().Code)
	}
	if span.Status().Description != dbErr.Error() {
		t.Errorf("expected status description %q, got %q", dbErr.Error(), span.Status().Description)
	}

	var sawException bool
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			sawException = true
		}
	}
	if !sawException {
		t.Error("expected an exception event recording the error")
	}
}

func TestStartSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, endSpan := StartSpan(context.Background(), "search.reconcile_session")
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]

	if span.Name() != "search.reconcile_session" {
		t.Errorf("unexpected span name %q", span.Name())
	}
	if got := span.InstrumentationScope().Name; got != "imagespace" {
		t.Errorf("expected tracer scope imagespace, got %q", got)
	}
	if span.Status().Code != codes.Unset {
		t.Errorf("expected unset status on success, got %s", span.Status().Code)
	}
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := recordSpans(t)
	refineErr := errors.New("iqr engine unavailable")

	_, endSpan := StartSpan(context.Background(), "search.refine")
	endSpan(refineErr)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %s", spans[0].Status().Code)
	}
}

func TestAddEvent(t *testing.T) {
	recorder := recordSpans(t)

	ctx, endSpan := StartSpan(context.Background(), "search.results")
	AddEvent(ctx, "ranking_degraded",
		attribute.String("sid", "iqr-session-7"),
		attribute.Int("offset", 40),
	)
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "ranking_degraded" {
		t.Errorf("unexpected event name %q", events[0].Name)
	}
	if len(events[0].Attributes) != 2 {
		t.Errorf("expected 2 event attributes, got %d", len(events[0].Attributes))
	}
}

func TestSetAttributes(t *testing.T) {
	recorder := recordSpans(t)

	ctx, endSpan := StartSpan(context.Background(), "search.refine")
	SetAttributes(ctx,
		attribute.String("session.sid", "iqr-session-7"),
		attribute.Int("labels.positive", 3),
	)
	endSpan(nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	attrs := attrMap(spans[0])
	if got := attrs["session.sid"].AsString(); got != "iqr-session-7" {
		t.Errorf("expected session.sid attribute, got %q", got)
	}
	if got := attrs["labels.positive"].AsInt64(); got != 3 {
		t.Errorf("expected labels.positive=3, got %d", got)
	}
}
