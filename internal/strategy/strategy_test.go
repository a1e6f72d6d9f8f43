package strategy

import (
	"testing"

	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/dagmodel"
)

func twoBackendCluster() *cluster.Cluster {
	return cluster.New([]cluster.Backend{
		{AccelType: "GPU"},
		{AccelType: "TPU"},
	})
}

func TestMaxActiveTasksAdmitsBelowThreshold(t *testing.T) {
	c := twoBackendCluster()
	st := cluster.NewState(c.GetN())
	p := MaxActiveTasks{Threshold: 2}
	if !p.ShouldAdmit(dagmodel.New(), c, st) {
		t.Fatalf("expected admission with no load")
	}
	st.NotifyTaskDispatched(0)
	st.NotifyTaskDispatched(0)
	st.NotifyTaskDispatched(1)
	st.NotifyTaskDispatched(1)
	if p.ShouldAdmit(dagmodel.New(), c, st) {
		t.Fatalf("expected rejection when all backends at threshold")
	}
}

func TestDeadlineAwareRejectsInfeasible(t *testing.T) {
	c := twoBackendCluster()
	st := cluster.NewState(c.GetN())
	dag := dagmodel.New()
	dag.AddTask(dagmodel.Task{TaskID: 1, ComputeDemand: 1000, HasDeadline: true, Deadline: 0.0001})
	p := DeadlineAware{ComputeRateFlopsPerSec: 1}
	if p.ShouldAdmit(dag, c, st) {
		t.Fatalf("expected rejection: 1000s execution cannot meet 0.0001s deadline")
	}
}

func TestDeadlineAwareAdmitsFeasible(t *testing.T) {
	c := twoBackendCluster()
	st := cluster.NewState(c.GetN())
	dag := dagmodel.New()
	dag.AddTask(dagmodel.Task{TaskID: 1, ComputeDemand: 1, HasDeadline: true, Deadline: 1000})
	p := DeadlineAware{ComputeRateFlopsPerSec: 1}
	if !p.ShouldAdmit(dag, c, st) {
		t.Fatalf("expected admission: 1s execution comfortably meets 1000s deadline")
	}
}

func TestDeadlineAwareRespectsAccelType(t *testing.T) {
	c := twoBackendCluster()
	st := cluster.NewState(c.GetN())
	dag := dagmodel.New()
	dag.AddTask(dagmodel.Task{TaskID: 1, ComputeDemand: 1, AccelType: "NOTHING_MATCHES", HasDeadline: true, Deadline: 1000})
	p := DeadlineAware{ComputeRateFlopsPerSec: 1}
	if p.ShouldAdmit(dag, c, st) {
		t.Fatalf("expected rejection: no backend of the required type")
	}
}

func TestFirstFitRoundRobinsWithinType(t *testing.T) {
	c := cluster.New([]cluster.Backend{{AccelType: "GPU"}, {AccelType: "GPU"}})
	st := cluster.NewState(2)
	s := &FirstFit{}
	task := dagmodel.Task{AccelType: "GPU"}
	first, ok := s.ScheduleTask(task, c, st)
	if !ok {
		t.Fatalf("expected a backend")
	}
	second, _ := s.ScheduleTask(task, c, st)
	if second == first {
		t.Fatalf("expected round robin to advance: got %d twice", first)
	}
}

func TestFirstFitNoMatchingType(t *testing.T) {
	c := cluster.New([]cluster.Backend{{AccelType: "GPU"}})
	st := cluster.NewState(1)
	s := &FirstFit{}
	_, ok := s.ScheduleTask(dagmodel.Task{AccelType: "TPU"}, c, st)
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestLeastLoadedPicksLeastActive(t *testing.T) {
	c := cluster.New([]cluster.Backend{{}, {}})
	st := cluster.NewState(2)
	st.NotifyTaskDispatched(0)
	s := LeastLoaded{}
	idx, ok := s.ScheduleTask(dagmodel.Task{}, c, st)
	if !ok || idx != 1 {
		t.Fatalf("expected backend 1 (less loaded), got %d (ok=%v)", idx, ok)
	}
}

func oppTable() []OperatingPoint {
	return []OperatingPoint{{Frequency: 1}, {Frequency: 2}, {Frequency: 3}}
}

func TestUtilizationJumpsToExtremes(t *testing.T) {
	p := Utilization{}
	idle := p.Decide(BackendDeviceState{CurrentFrequency: 2, OPPs: oppTable()})
	if idle == nil || idle.TargetFrequency != 1 {
		t.Fatalf("expected idle to target lowest OPP, got %+v", idle)
	}
	busy := p.Decide(BackendDeviceState{Busy: true, CurrentFrequency: 2, OPPs: oppTable()})
	if busy == nil || busy.TargetFrequency != 3 {
		t.Fatalf("expected busy to target highest OPP, got %+v", busy)
	}
}

func TestUtilizationNoChangeReturnsNil(t *testing.T) {
	p := Utilization{}
	if got := p.Decide(BackendDeviceState{CurrentFrequency: 1, OPPs: oppTable()}); got != nil {
		t.Fatalf("expected nil when already at target, got %+v", got)
	}
}

func TestConservativeStepsOnePointAtATime(t *testing.T) {
	p := Conservative{}
	got := p.Decide(BackendDeviceState{Busy: true, CurrentFrequency: 1, OPPs: oppTable()})
	if got == nil || got.TargetFrequency != 2 {
		t.Fatalf("expected step to 2, got %+v", got)
	}
	got = p.Decide(BackendDeviceState{Busy: false, CurrentFrequency: 2, OPPs: oppTable()})
	if got == nil || got.TargetFrequency != 1 {
		t.Fatalf("expected step down to 1, got %+v", got)
	}
}

func TestConservativeAtBoundaryReturnsNil(t *testing.T) {
	p := Conservative{}
	if got := p.Decide(BackendDeviceState{Busy: true, CurrentFrequency: 3, OPPs: oppTable()}); got != nil {
		t.Fatalf("expected nil at top boundary while busy, got %+v", got)
	}
	if got := p.Decide(BackendDeviceState{Busy: false, CurrentFrequency: 1, OPPs: oppTable()}); got != nil {
		t.Fatalf("expected nil at bottom boundary while idle, got %+v", got)
	}
}
