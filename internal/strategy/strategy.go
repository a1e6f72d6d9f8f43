// Package strategy defines the three pluggable decision points the
// orchestrator delegates to: admission, cluster scheduling, and DVFS
// scaling. Each reference implementation is a stateless function over
// immutable inputs, except where noted (FirstFit keeps a round-robin
// cursor; schedulers are otherwise pure).
package strategy

import (
	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/dagmodel"
)

// AdmissionPolicy decides whether an incoming DAG should be admitted
// against current cluster topology and load. Implementations must not
// mutate dag, c, or state.
type AdmissionPolicy interface {
	ShouldAdmit(dag *dagmodel.DAG, c *cluster.Cluster, state *cluster.State) bool
}

// ClusterScheduler picks a backend index for a single ready task, or
// reports that none is currently suitable.
type ClusterScheduler interface {
	ScheduleTask(task dagmodel.Task, c *cluster.Cluster, state *cluster.State) (backendIdx int, ok bool)
	// NotifyTaskCompleted lets stateful schedulers (e.g. round-robin
	// variants) react to completion. Default implementations may no-op.
	NotifyTaskCompleted(backendIdx int, task dagmodel.Task)
}

// ScalingTarget is a non-nil DVFS decision: a frequency/voltage pair a
// backend should move to.
type ScalingTarget struct {
	TargetFrequency float64
	TargetVoltage   float64
}

// OperatingPoint is one entry in a backend's DVFS table: a
// frequency/voltage pair the accelerator can be commanded to.
type OperatingPoint struct {
	Frequency float64
	Voltage   float64
}

// BackendDeviceState is the per-backend snapshot a ScalingPolicy decides
// against: whether it is busy, its queue length, its last known
// frequency, and the operating-point table it may move within. OPPs
// MUST be sorted ascending by Frequency.
type BackendDeviceState struct {
	Busy             bool
	QueueLength      uint32
	CurrentFrequency float64
	OPPs             []OperatingPoint
}

// ScalingPolicy is consulted once per backend per scaling tick. A nil
// return means "no change".
type ScalingPolicy interface {
	Decide(state BackendDeviceState) *ScalingTarget
}
