package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/onnwee/pixelclaim"

// DBOperation is the db.operation attribute of a store span.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationInsert DBOperation = "insert"
	DBOperationUpdate DBOperation = "update"
	DBOperationDelete DBOperation = "delete"
)

// EndFunc ends a span, recording err when it is non-nil.
type EndFunc func(err error)

// StartDBSpanFor starts a client span named "<operation> <table>" for a
// store call against the given db.system ("postgresql" or "sqlite").
//
//	ctx, end := tracing.StartDBSpanFor(ctx, "sqlite", "cells", tracing.DBOperationInsert)
//	defer func() { end(err) }()
func StartDBSpanFor(ctx context.Context, system, table string, op DBOperation) (context.Context, EndFunc) {
	name := string(op)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", string(op)),
	}
	if table != "" {
		name += " " + table
		attrs = append(attrs, attribute.String("db.sql.table", table))
	}
	return start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

// StartSpan starts an internal span such as "payment.verify".
func StartSpan(ctx context.Context, name string) (context.Context, EndFunc) {
	return start(ctx, name)
}

func start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, EndFunc) {
	ctx, span := otel.Tracer(instrumentation).Start(ctx, name, opts...)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent records an event on the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the span in ctx.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
