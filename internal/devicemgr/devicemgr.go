// Package devicemgr implements the optional per-backend DVFS control
// loop: ingesting device metrics reports and, on each orchestrator
// scaling tick, consulting a strategy.ScalingPolicy and emitting
// ScalingCmdHdr commands back to the backend.
package devicemgr

import (
	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/strategy"
	"github.com/edgeorch/orchestrator/internal/wire"
)

// Sender abstracts the backend connection the device manager writes
// scaling commands to, letting this package stay decoupled from
// internal/transport.
type Sender interface {
	Send(backendIdx int, payload []byte) error
}

// Manager tracks per-backend operating-point tables (configured at
// startup from cluster topology) and current frequency, and drives the
// scaling tick.
type Manager struct {
	opps    [][]strategy.OperatingPoint
	current []float64
	sender  Sender
}

// New allocates a Manager for a cluster whose backends each have the
// given operating-point table (identical across backends for this
// release; per-backend tables are a natural future extension).
func New(c *cluster.Cluster, opps []strategy.OperatingPoint, sender Sender) *Manager {
	n := c.GetN()
	m := &Manager{
		opps:    make([][]strategy.OperatingPoint, n),
		current: make([]float64, n),
		sender:  sender,
	}
	for i := 0; i < n; i++ {
		m.opps[i] = opps
		if len(opps) > 0 {
			m.current[i] = opps[0].Frequency
		}
	}
	return m
}

// OnDeviceMetrics records a backend's reported metrics into ClusterState
// and remembers the reported frequency for the next scaling decision.
func (m *Manager) OnDeviceMetrics(backendIdx int, state *cluster.State, metrics wire.DeviceMetricsHdr) {
	state.SetDeviceMetrics(backendIdx, metrics)
	m.current[backendIdx] = metrics.Frequency
}

// Tick consults policy for backendIdx's current state and, if it
// decides a change, sends a ScalingCmdHdr to that backend. Returns the
// target frequency when a command was sent, for observability.
func (m *Manager) Tick(backendIdx int, state *cluster.State, policy strategy.ScalingPolicy) (targetFreq float64, sent bool, err error) {
	if backendIdx < 0 || backendIdx >= len(m.opps) {
		return 0, false, nil
	}
	snapshot := strategy.BackendDeviceState{
		CurrentFrequency: m.current[backendIdx],
		OPPs:             m.opps[backendIdx],
	}
	if metrics := state.DeviceMetrics(backendIdx); metrics != nil {
		snapshot.Busy = metrics.Busy
		snapshot.QueueLength = metrics.QueueLength
	} else {
		snapshot.Busy = state.ActiveTasks(backendIdx) > 0
	}
	decision := policy.Decide(snapshot)
	if decision == nil {
		return 0, false, nil
	}
	hdr := wire.ScalingCmdHdr{TargetFrequency: decision.TargetFrequency, TargetVoltage: decision.TargetVoltage}
	if err := m.sender.Send(backendIdx, hdr.Marshal()); err != nil {
		return 0, false, err
	}
	m.current[backendIdx] = decision.TargetFrequency
	return decision.TargetFrequency, true, nil
}
