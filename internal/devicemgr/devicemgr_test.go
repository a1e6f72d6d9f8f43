package devicemgr

import (
	"testing"

	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/strategy"
	"github.com/edgeorch/orchestrator/internal/wire"
)

type fakeSender struct {
	sent map[int][]byte
}

func (f *fakeSender) Send(backendIdx int, payload []byte) error {
	if f.sent == nil {
		f.sent = make(map[int][]byte)
	}
	f.sent[backendIdx] = payload
	return nil
}

func TestTickSendsScalingCommandWhenBusy(t *testing.T) {
	c := cluster.New([]cluster.Backend{{}})
	st := cluster.NewState(1)
	sender := &fakeSender{}
	opps := []strategy.OperatingPoint{{Frequency: 1, Voltage: 0.8}, {Frequency: 2, Voltage: 1.0}}
	m := New(c, opps, sender)
	st.NotifyTaskDispatched(0)

	freq, sent, err := m.Tick(0, st, strategy.Utilization{})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !sent || freq != 2 {
		t.Fatalf("expected scale up to 2, got freq=%v sent=%v", freq, sent)
	}
	if _, ok := sender.sent[0]; !ok {
		t.Fatalf("expected a command sent to backend 0")
	}
}

func TestTickNoChangeDoesNotSend(t *testing.T) {
	c := cluster.New([]cluster.Backend{{}})
	st := cluster.NewState(1)
	sender := &fakeSender{}
	opps := []strategy.OperatingPoint{{Frequency: 1, Voltage: 0.8}}
	m := New(c, opps, sender)

	_, sent, err := m.Tick(0, st, strategy.Utilization{})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if sent {
		t.Fatalf("expected no command when already at the only OPP")
	}
}

func TestOnDeviceMetricsUpdatesClusterState(t *testing.T) {
	c := cluster.New([]cluster.Backend{{}})
	st := cluster.NewState(1)
	m := New(c, nil, &fakeSender{})
	m.OnDeviceMetrics(0, st, wire.DeviceMetricsHdr{Frequency: 5, Busy: true})
	if st.DeviceMetrics(0) == nil || st.DeviceMetrics(0).Frequency != 5 {
		t.Fatalf("expected metrics stored in cluster state")
	}
}
