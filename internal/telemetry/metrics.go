package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
)

// Instruments holds every counter/histogram the orchestrator's
// observation surface publishes (spec.md §6).
type Instruments struct {
	WorkloadsAdmitted   metric.Int64Counter
	WorkloadsRejected   metric.Int64Counter // attribute "reason"
	WorkloadsCompleted  metric.Int64Counter
	WorkloadsCancelled  metric.Int64Counter
	TasksDispatched     metric.Int64Counter
	TasksCompleted      metric.Int64Counter
	ScalingTransitions  metric.Int64Counter
	TaskTurnaroundMs    metric.Float64Histogram
}

// InitMetrics sets up a global OTLP metrics exporter (push) and returns
// its shutdown function plus the instrument bundle.
func InitMetrics(ctx context.Context, service string) (shutdown func(context.Context) error, instruments Instruments) {
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		attribute.String("service", service),
	))
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "error", err)
		return func(context.Context) error { return nil }, createInstruments()
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", endpoint)
	return mp.Shutdown, createInstruments()
}

func createInstruments() Instruments {
	meter := otel.Meter("edge-orchestrator")
	admitted, _ := meter.Int64Counter("orch_workloads_admitted_total")
	rejected, _ := meter.Int64Counter("orch_workloads_rejected_total")
	completed, _ := meter.Int64Counter("orch_workloads_completed_total")
	cancelled, _ := meter.Int64Counter("orch_workloads_cancelled_total")
	dispatched, _ := meter.Int64Counter("orch_tasks_dispatched_total")
	tasksCompleted, _ := meter.Int64Counter("orch_tasks_completed_total")
	scaling, _ := meter.Int64Counter("orch_scaling_transitions_total")
	turnaround, _ := meter.Float64Histogram("orch_task_turnaround_ms")
	return Instruments{
		WorkloadsAdmitted:  admitted,
		WorkloadsRejected:  rejected,
		WorkloadsCompleted: completed,
		WorkloadsCancelled: cancelled,
		TasksDispatched:    dispatched,
		TasksCompleted:     tasksCompleted,
		ScalingTransitions: scaling,
		TaskTurnaroundMs:   turnaround,
	}
}
