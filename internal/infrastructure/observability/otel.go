package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/vetdesk/appointment-engine"

// Metrics holds all engine metrics
type Metrics struct {
	TransitionCount   metric.Int64Counter
	SlotConflictCount metric.Int64Counter
	LockWaitDuration  metric.Float64Histogram
	DBQueryDuration   metric.Float64Histogram
}

// Setup initializes OpenTelemetry tracing and metrics
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace provider
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set up metric exporter and provider
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	// Shutdown function
	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// InitMetrics initializes engine metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	transitionCount, err := meter.Int64Counter(
		"appointment.transition.count",
		metric.WithDescription("Number of committed lifecycle transitions"),
	)
	if err != nil {
		return nil, err
	}

	slotConflictCount, err := meter.Int64Counter(
		"appointment.slot_conflict.count",
		metric.WithDescription("Number of rejected double-booking attempts"),
	)
	if err != nil {
		return nil, err
	}

	lockWaitDuration, err := meter.Float64Histogram(
		"appointment.lock.wait.duration",
		metric.WithDescription("Time spent waiting on slot and appointment locks"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dbQueryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TransitionCount:   transitionCount,
		SlotConflictCount: slotConflictCount,
		LockWaitDuration:  lockWaitDuration,
		DBQueryDuration:   dbQueryDuration,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordTransition records a committed lifecycle transition
func RecordTransition(ctx context.Context, metrics *Metrics, action string, status string) {
	metrics.TransitionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("appointment.action", action),
		attribute.String("appointment.status", status),
	))
}

// RecordSlotConflict records a rejected double-booking attempt
func RecordSlotConflict(ctx context.Context, metrics *Metrics, vetID string) {
	metrics.SlotConflictCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("appointment.vet_id", vetID),
	))
}

// RecordLockWait records the time spent acquiring a keyed lock
func RecordLockWait(ctx context.Context, metrics *Metrics, key string, duration time.Duration) {
	metrics.LockWaitDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("lock.key", key),
	))
}

// RecordDBMetric records a database operation metric
func RecordDBMetric(ctx context.Context, metrics *Metrics, operation string, duration time.Duration) {
	metrics.DBQueryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("db.operation", operation),
	))
}
