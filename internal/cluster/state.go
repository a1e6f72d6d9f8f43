package cluster

import "github.com/edgeorch/orchestrator/internal/wire"

// backendState is the authoritative counters and latest metrics snapshot
// for one backend. Mutated only by the orchestrator core.
type backendState struct {
	activeTasks     int
	totalDispatched int
	totalCompleted  int
	metrics         *wire.DeviceMetricsHdr
}

// State is the per-backend authoritative counter vector, sized to the
// cluster at startup. A read-only view of it is passed to strategies,
// which must not mutate it; Go has no const-reference enforcement, so
// this is a documented contract rather than a compiler-checked one
// (strategies are given *State but are expected to only call the
// read-only accessors below).
type State struct {
	backends []backendState
}

// NewState allocates counters for n backends, all zeroed.
func NewState(n int) *State {
	return &State{backends: make([]backendState, n)}
}

// ActiveTasks returns the in-flight task count for backend idx.
func (s *State) ActiveTasks(idx int) int { return s.backends[idx].activeTasks }

// TotalDispatched returns the lifetime dispatched count for backend idx.
func (s *State) TotalDispatched(idx int) int { return s.backends[idx].totalDispatched }

// TotalCompleted returns the lifetime completed count for backend idx.
func (s *State) TotalCompleted(idx int) int { return s.backends[idx].totalCompleted }

// DeviceMetrics returns the latest reported metrics for backend idx, or
// nil if none have arrived yet.
func (s *State) DeviceMetrics(idx int) *wire.DeviceMetricsHdr { return s.backends[idx].metrics }

// NotifyTaskDispatched increments activeTasks and totalDispatched for
// idx. Must be paired with a later NotifyTaskCompleted.
func (s *State) NotifyTaskDispatched(idx int) {
	s.backends[idx].activeTasks++
	s.backends[idx].totalDispatched++
}

// NotifyTaskCompleted decrements activeTasks and increments
// totalCompleted for idx.
func (s *State) NotifyTaskCompleted(idx int) {
	s.backends[idx].activeTasks--
	s.backends[idx].totalCompleted++
}

// NotifyTaskCancelled decrements activeTasks for idx without counting
// the task as completed, used when a workload is cancelled while one of
// its tasks is still in flight.
func (s *State) NotifyTaskCancelled(idx int) {
	s.backends[idx].activeTasks--
}

// SetDeviceMetrics replaces the stored metrics snapshot for idx.
func (s *State) SetDeviceMetrics(idx int, m wire.DeviceMetricsHdr) {
	s.backends[idx].metrics = &m
}

// N reports the number of backends this state tracks.
func (s *State) N() int { return len(s.backends) }
