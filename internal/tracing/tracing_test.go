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

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing service name", Config{Enabled: true, SamplingRate: 0.5}},
		{"sampling rate above one", Config{Enabled: true, ServiceName: "api", SamplingRate: 1.5}},
		{"negative sampling rate", Config{Enabled: true, ServiceName: "api", SamplingRate: -0.1}},
		{"unknown exporter", Config{Enabled: true, ServiceName: "api", SamplingRate: 0.5, ExporterType: "zipkin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProvider(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewProvider_EnabledShutsDown(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	p, err := NewProvider(Config{
		Enabled:      true,
		ServiceName:  "pixelclaim-test",
		ExporterType: ExporterOTLPHTTP,
		OTLPEndpoint: "127.0.0.1:4318",
		SamplingRate: 1,
		InsecureMode: true,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nothing was recorded, so shutdown has nothing to export.
	_ = p.Shutdown(ctx)
}

func TestSampler(t *testing.T) {
	traceID := trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	params := sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: traceID, Name: "x"}

	if got := Sampler(1).ShouldSample(params).Decision; got != sdktrace.RecordAndSample {
		t.Errorf("rate 1 decision = %v, want RecordAndSample", got)
	}
	if got := Sampler(0).ShouldSample(params).Decision; got != sdktrace.Drop {
		t.Errorf("rate 0 decision = %v, want Drop", got)
	}

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	params.ParentContext = trace.ContextWithRemoteSpanContext(context.Background(), parent)
	if got := Sampler(0).ShouldSample(params).Decision; got != sdktrace.RecordAndSample {
		t.Errorf("sampled parent decision = %v, want RecordAndSample", got)
	}
}

func TestStartDBSpanFor(t *testing.T) {
	rec := recorder(t)

	_, end := StartDBSpanFor(context.Background(), "sqlite", "cells", DBOperationInsert)
	end(nil)
	_, end = StartDBSpanFor(context.Background(), "postgresql", "", DBOperationQuery)
	end(errors.New("connection reset"))

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	first := spans[0]
	if first.Name() != "insert cells" {
		t.Errorf("name = %q, want %q", first.Name(), "insert cells")
	}
	if first.SpanKind() != trace.SpanKindClient {
		t.Errorf("kind = %v, want client", first.SpanKind())
	}
	if v, _ := attr(first, "db.system"); v.AsString() != "sqlite" {
		t.Errorf("db.system = %q", v.AsString())
	}
	if v, _ := attr(first, "db.sql.table"); v.AsString() != "cells" {
		t.Errorf("db.sql.table = %q", v.AsString())
	}

	second := spans[1]
	if second.Name() != "query" {
		t.Errorf("name = %q, want %q", second.Name(), "query")
	}
	if _, ok := attr(second, "db.sql.table"); ok {
		t.Error("db.sql.table set without a table")
	}
	if second.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", second.Status().Code)
	}
	if len(second.Events()) == 0 {
		t.Error("error was not recorded as an event")
	}
}

func TestStartSpan_NestsAndAnnotates(t *testing.T) {
	rec := recorder(t)

	ctx, endParent := StartSpan(context.Background(), "acquisition.acquire")
	SetAttributes(ctx, attribute.Int("cells", 4))
	AddEvent(ctx, "payment.verified", attribute.String("policy", "burn"))
	_, endChild := StartSpan(ctx, "payment.verify")
	endChild(nil)
	endParent(nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	child, parent := spans[0], spans[1]
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Error("child span is not parented to the outer span")
	}
	if v, ok := attr(parent, "cells"); !ok || v.AsInt64() != 4 {
		t.Errorf("cells attribute = %v, %v", v, ok)
	}
	if len(parent.Events()) != 1 || parent.Events()[0].Name != "payment.verified" {
		t.Errorf("events = %+v", parent.Events())
	}
}
