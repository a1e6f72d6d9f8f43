package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Observer implements the orchestrator's trace-hook surface (the Go
// equivalent of ns3::TracedCallback) by incrementing OTel counters and
// emitting structured log events. It satisfies orchestrator.Observer
// structurally — no import of the orchestrator package is needed here.
type Observer struct {
	Instruments Instruments
}

func (o Observer) WorkloadAdmitted(workloadID uint64) {
	o.Instruments.WorkloadsAdmitted.Add(context.Background(), 1)
	slog.Info("workload admitted", "workload_id", workloadID)
}

func (o Observer) WorkloadRejected(reason string) {
	o.Instruments.WorkloadsRejected.Add(context.Background(), 1, attribute.String("reason", reason))
	slog.Warn("workload rejected", "reason", reason)
}

func (o Observer) WorkloadCancelled(workloadID uint64) {
	o.Instruments.WorkloadsCancelled.Add(context.Background(), 1)
	slog.Info("workload cancelled", "workload_id", workloadID)
}

func (o Observer) WorkloadCompleted(workloadID uint64) {
	o.Instruments.WorkloadsCompleted.Add(context.Background(), 1)
	slog.Info("workload completed", "workload_id", workloadID)
}

func (o Observer) TaskDispatched(workloadID, taskID uint64, backendIdx int) {
	o.Instruments.TasksDispatched.Add(context.Background(), 1)
	slog.Debug("task dispatched", "workload_id", workloadID, "task_id", taskID, "backend_idx", backendIdx)
}

func (o Observer) TaskCompleted(workloadID, taskID uint64, backendIdx int, turnaround time.Duration) {
	o.Instruments.TasksCompleted.Add(context.Background(), 1)
	o.Instruments.TaskTurnaroundMs.Record(context.Background(), float64(turnaround.Milliseconds()))
	slog.Debug("task completed", "workload_id", workloadID, "task_id", taskID, "backend_idx", backendIdx)
}

func (o Observer) ScalingCommandIssued(backendIdx int, targetFrequency float64) {
	o.Instruments.ScalingTransitions.Add(context.Background(), 1)
	slog.Debug("scaling command issued", "backend_idx", backendIdx, "target_frequency", targetFrequency)
}
