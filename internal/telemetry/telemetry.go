// Package telemetry wires OpenTelemetry tracing and metrics into the
// gateway and FSM (the status poller records none), grounded on the pack's use of otel/trace and
// otel/codes in sdp-go's progress.go. The teacher itself carries no
// observability library; ambient-stack policy still requires one.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "hyperdb-go"

// Telemetry bundles the tracer and the counters/histogram this module
// records. A nil *Telemetry is valid and every method on it is a no-op,
// so components can hold one unconditionally.
type Telemetry struct {
	tracer        trace.Tracer
	chunksFetched metric.Int64Counter
	reopenCount   metric.Int64Counter
	batchBytes    metric.Int64Histogram
}

// New builds a Telemetry from the global otel providers. Call
// otel.SetTracerProvider/otel.SetMeterProvider before constructing one
// in a process that wants real export; otherwise the global no-op
// providers make every call here a no-op.
func New() *Telemetry {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	chunksFetched, _ := meter.Int64Counter(
		"hyperdb.chunks_fetched",
		metric.WithDescription("number of result chunks fetched via GetQueryResult"),
	)
	reopenCount, _ := meter.Int64Counter(
		"hyperdb.status_stream_reopens",
		metric.WithDescription("number of times the FSM's status stream ended with a benign CANCELLED and was reopened"),
	)
	batchBytes, _ := meter.Int64Histogram(
		"hyperdb.batch_bytes",
		metric.WithDescription("size in bytes of each QueryResult batch delivered to the caller"),
	)

	return &Telemetry{
		tracer:        tracer,
		chunksFetched: chunksFetched,
		reopenCount:   reopenCount,
		batchBytes:    batchBytes,
	}
}

// StartRPC starts a span for a single gateway RPC call.
func (t *Telemetry) StartRPC(ctx context.Context, method, queryID string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, method, trace.WithAttributes(
		attribute.String("hyperdb.query_id", queryID),
	))
}

// EndRPC ends span, recording err as the span status when non-nil.
func EndRPC(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

// RecordChunkFetched increments the chunks-fetched counter.
func (t *Telemetry) RecordChunkFetched(ctx context.Context, queryID string) {
	if t == nil {
		return
	}
	t.chunksFetched.Add(ctx, 1, metric.WithAttributes(attribute.String("hyperdb.query_id", queryID)))
}

// RecordReopen increments the status-stream-reopen counter.
func (t *Telemetry) RecordReopen(ctx context.Context, queryID string) {
	if t == nil {
		return
	}
	t.reopenCount.Add(ctx, 1, metric.WithAttributes(attribute.String("hyperdb.query_id", queryID)))
}

// RecordBatch records the size of a delivered batch.
func (t *Telemetry) RecordBatch(ctx context.Context, queryID string, n int) {
	if t == nil {
		return
	}
	t.batchBytes.Record(ctx, int64(n), metric.WithAttributes(attribute.String("hyperdb.query_id", queryID)))
}
