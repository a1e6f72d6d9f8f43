// Package orchestrator implements the two-phase admission protocol,
// workload lifecycle, DAG driver, wire-ID translation, dispatch,
// response routing, cleanup, and optional DVFS tick described for the
// edge workload orchestrator's core.
package orchestrator

import (
	"net"
	"time"

	"github.com/edgeorch/orchestrator/internal/dagmodel"
)

// Observer receives the orchestrator's trace-hook events. The Go
// equivalent of ns3::TracedCallback. A no-op Observer is used when none
// is configured.
type Observer interface {
	WorkloadAdmitted(workloadID uint64)
	WorkloadRejected(reason string)
	WorkloadCancelled(workloadID uint64)
	WorkloadCompleted(workloadID uint64)
	TaskDispatched(workloadID, taskID uint64, backendIdx int)
	TaskCompleted(workloadID, taskID uint64, backendIdx int, turnaround time.Duration)
}

// noopObserver is the default Observer when none is configured.
type noopObserver struct{}

func (noopObserver) WorkloadAdmitted(uint64)                                   {}
func (noopObserver) WorkloadRejected(string)                                   {}
func (noopObserver) WorkloadCancelled(uint64)                                  {}
func (noopObserver) WorkloadCompleted(uint64)                                  {}
func (noopObserver) TaskDispatched(uint64, uint64, int)                        {}
func (noopObserver) TaskCompleted(uint64, uint64, int, time.Duration)          {}

// Rejection reasons. A closed set; callers use these exact strings so
// the Observer/metrics surface stays stable.
const (
	ReasonDeserializationFailed = "deserialization_failed"
	ReasonEmptyDag              = "empty_dag"
	ReasonInvalidDag            = "invalid_dag"
	ReasonAdmissionRejected     = "admission_rejected"
	ReasonDuplicateAdmission    = "duplicate_admission"
	ReasonAdmissionTimeout      = "admission_timeout"
	ReasonClientDisconnect      = "client_disconnect"
)

// WorkloadState is the orchestrator's per-live-workload record.
// Exclusively owned by the core; all access happens under its mutex.
type WorkloadState struct {
	Dag           *dagmodel.DAG
	ClientAddr    net.Addr
	TaskToBackend map[uint64]int
	Pending       int

	// InputPayload holds each task's Phase-2 payload bytes, keyed by
	// client-visible task ID, consumed at dispatch time.
	InputPayload map[uint64][]byte
	// OutputPayload holds a task's backend-reported output bytes once
	// its completion response has arrived, used when a sink task's
	// response is sent to the client.
	OutputPayload map[uint64][]byte

	dispatchedAt map[uint64]time.Time // for turnaround observability only
}

func newWorkloadState(dag *dagmodel.DAG, clientAddr net.Addr, inputPayload map[uint64][]byte) *WorkloadState {
	return &WorkloadState{
		Dag:           dag,
		ClientAddr:    clientAddr,
		TaskToBackend: make(map[uint64]int),
		InputPayload:  inputPayload,
		OutputPayload: make(map[uint64][]byte),
		dispatchedAt:  make(map[uint64]time.Time),
	}
}

// pendingAdmission is one entry in a client's FIFO admission queue: an
// admission ID awaiting its Phase-2 upload, plus its timeout timer.
type pendingAdmission struct {
	id    uint64
	timer *time.Timer
}

// Stats is a point-in-time snapshot of the orchestrator's monotonic
// counters and live-state sizes, exposed for tests and operators.
type Stats struct {
	WorkloadsAdmitted  uint64
	WorkloadsRejected  uint64
	WorkloadsCompleted uint64
	WorkloadsCancelled uint64
	ActiveWorkloads    int
	PendingAdmissions  int
}
