package cluster

import (
	"testing"

	"github.com/edgeorch/orchestrator/internal/wire"
)

func TestDispatchCompletedBalance(t *testing.T) {
	s := NewState(2)
	s.NotifyTaskDispatched(0)
	s.NotifyTaskDispatched(0)
	if s.ActiveTasks(0) != 2 || s.TotalDispatched(0) != 2 {
		t.Fatalf("after two dispatches: active=%d dispatched=%d", s.ActiveTasks(0), s.TotalDispatched(0))
	}
	s.NotifyTaskCompleted(0)
	if s.ActiveTasks(0) != 1 || s.TotalCompleted(0) != 1 {
		t.Fatalf("after one completion: active=%d completed=%d", s.ActiveTasks(0), s.TotalCompleted(0))
	}
	if s.ActiveTasks(1) != 0 {
		t.Fatalf("backend 1 should be untouched: active=%d", s.ActiveTasks(1))
	}
}

func TestDeviceMetricsDefaultsToNil(t *testing.T) {
	s := NewState(1)
	if s.DeviceMetrics(0) != nil {
		t.Fatalf("expected nil metrics before any report")
	}
	s.SetDeviceMetrics(0, wire.DeviceMetricsHdr{Frequency: 1})
	if s.DeviceMetrics(0) == nil || s.DeviceMetrics(0).Frequency != 1 {
		t.Fatalf("expected stored metrics snapshot")
	}
}
