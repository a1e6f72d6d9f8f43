package orchestrator

import (
	"net"
	"testing"
	"time"

	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/transport"
	"github.com/edgeorch/orchestrator/internal/wire"
)

const testTimeout = 2 * time.Second

// fakeBackend is a bare-TCP stand-in for an accelerator: it accepts one
// connection from the orchestrator's backend connector and lets the
// test read dispatched requests and write completions by hand.
type fakeBackend struct {
	ln   net.Listener
	conn net.Conn
	buf  []byte
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("backend listen: %v", err)
	}
	return &fakeBackend{ln: ln}
}

func (f *fakeBackend) addr() string { return f.ln.Addr().String() }

func (f *fakeBackend) accept(t *testing.T) {
	t.Helper()
	conn, err := f.ln.Accept()
	if err != nil {
		t.Fatalf("backend accept: %v", err)
	}
	f.conn = conn
}

func (f *fakeBackend) recvTask(t *testing.T) (wire.SimpleTaskRecord, []byte) {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(testTimeout))
	for {
		rec, payload, n, err := wire.UnmarshalSimpleTaskFull(f.buf)
		if err != nil {
			t.Fatalf("backend decode task: %v", err)
		}
		if n > 0 {
			f.buf = f.buf[n:]
			return rec, payload
		}
		tmp := make([]byte, 4096)
		k, err := f.conn.Read(tmp)
		if err != nil {
			t.Fatalf("backend read: %v", err)
		}
		f.buf = append(f.buf, tmp[:k]...)
	}
}

func (f *fakeBackend) sendResponse(t *testing.T, wireID uint64, outputSize uint64, payload []byte) {
	t.Helper()
	rec := wire.SimpleTaskRecord{MsgType: wire.MsgTaskResponse, TaskID: wireID, OutputSize: outputSize}
	if _, err := f.conn.Write(rec.MarshalFull(payload)); err != nil {
		t.Fatalf("backend send response: %v", err)
	}
}

func (f *fakeBackend) close() {
	if f.conn != nil {
		f.conn.Close()
	}
	f.ln.Close()
}

// fakeClient is a bare-TCP stand-in for a workload submitter.
type fakeClient struct {
	conn net.Conn
	buf  []byte
}

func newFakeClient(t *testing.T, addr string) *fakeClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("client dial: %v", err)
	}
	return &fakeClient{conn: conn}
}

func (c *fakeClient) sendAdmission(t *testing.T, dagID uint64, wd wire.WireDag) {
	t.Helper()
	payload := wire.MarshalDagMeta(wd)
	hdr := wire.OrchHdr{MsgType: wire.MsgAdmissionRequest, TaskID: dagID, PayloadSize: uint64(len(payload))}
	if _, err := c.conn.Write(append(hdr.Marshal(), payload...)); err != nil {
		t.Fatalf("client send admission: %v", err)
	}
}

func (c *fakeClient) recvAdmissionResp(t *testing.T) wire.OrchHdr {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	for {
		if len(c.buf) >= wire.OrchHdrSize {
			hdr, err := wire.UnmarshalOrchHdr(c.buf)
			if err != nil {
				t.Fatalf("client decode admission resp: %v", err)
			}
			c.buf = c.buf[wire.OrchHdrSize:]
			return hdr
		}
		tmp := make([]byte, 4096)
		n, err := c.conn.Read(tmp)
		if err != nil {
			t.Fatalf("client read: %v", err)
		}
		c.buf = append(c.buf, tmp[:n]...)
	}
}

func (c *fakeClient) sendPhase2(t *testing.T, wd wire.WireDag) {
	t.Helper()
	if _, err := c.conn.Write(wire.MarshalDagFull(wd)); err != nil {
		t.Fatalf("client send phase2: %v", err)
	}
}

func (c *fakeClient) recvResult(t *testing.T) (wire.SimpleTaskRecord, []byte) {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	for {
		rec, payload, n, err := wire.UnmarshalSimpleTaskFull(c.buf)
		if err != nil {
			t.Fatalf("client decode result: %v", err)
		}
		if n > 0 {
			c.buf = c.buf[n:]
			return rec, payload
		}
		tmp := make([]byte, 4096)
		k, err := c.conn.Read(tmp)
		if err != nil {
			t.Fatalf("client read: %v", err)
		}
		c.buf = append(c.buf, tmp[:k]...)
	}
}

func (c *fakeClient) close() { c.conn.Close() }

// singleTaskDag builds a one-task WireDag with no edges, its payload
// sized to match inputSize.
func singleTaskDag(taskID uint64, compute float64, inputSize, outputSize uint64, deadline float64, hasDeadline bool) wire.WireDag {
	return wire.WireDag{
		Tasks: []wire.WireTask{{
			TaskType: wire.SimpleTaskTypeID,
			Record: wire.SimpleTaskRecord{
				MsgType:       wire.MsgTaskRequest,
				TaskID:        taskID,
				ComputeDemand: compute,
				InputSize:     inputSize,
				OutputSize:    outputSize,
				HasDeadline:   hasDeadline,
				Deadline:      deadline,
			},
			Payload: make([]byte, inputSize),
		}},
	}
}

// twoTaskSequentialDag builds A -> B with a data edge, each task
// demanding compute FLOPS; only B carries a deadline.
func twoTaskSequentialDag(idA, idB uint64, compute float64, deadlineB float64) wire.WireDag {
	return wire.WireDag{
		Tasks: []wire.WireTask{
			{
				TaskType: wire.SimpleTaskTypeID,
				Record: wire.SimpleTaskRecord{
					MsgType: wire.MsgTaskRequest, TaskID: idA, ComputeDemand: compute,
					InputSize: 64, OutputSize: 64,
				},
				Payload: make([]byte, 64),
			},
			{
				TaskType: wire.SimpleTaskTypeID,
				Record: wire.SimpleTaskRecord{
					MsgType: wire.MsgTaskRequest, TaskID: idB, ComputeDemand: compute,
					InputSize: 0, OutputSize: 64, HasDeadline: true, Deadline: deadlineB,
				},
				Payload: nil,
			},
		},
		Edges: []wire.WireEdge{{From: 0, To: 1, Kind: wire.EdgeData}},
	}
}

func newClusterWithAddrs(t *testing.T, addrs ...string) *cluster.Cluster {
	t.Helper()
	backends := make([]cluster.Backend, len(addrs))
	for i, a := range addrs {
		addr, err := net.ResolveTCPAddr("tcp", a)
		if err != nil {
			t.Fatalf("resolve backend addr: %v", err)
		}
		backends[i] = cluster.Backend{Address: addr}
	}
	return cluster.New(backends)
}

// testObserver records every trace event on buffered channels a test
// can block-read from, with a bound large enough for any scenario here.
type testObserver struct {
	admitted   chan uint64
	rejected   chan string
	completed  chan uint64
	cancelled  chan uint64
	dispatched chan dispatchEvt
	taskDone   chan taskDoneEvt
}

type dispatchEvt struct {
	workloadID, taskID uint64
	backendIdx         int
}

type taskDoneEvt struct {
	workloadID, taskID uint64
	backendIdx         int
}

func newTestObserver() *testObserver {
	return &testObserver{
		admitted:   make(chan uint64, 32),
		rejected:   make(chan string, 32),
		completed:  make(chan uint64, 32),
		cancelled:  make(chan uint64, 32),
		dispatched: make(chan dispatchEvt, 32),
		taskDone:   make(chan taskDoneEvt, 32),
	}
}

func (o *testObserver) WorkloadAdmitted(id uint64)  { o.admitted <- id }
func (o *testObserver) WorkloadRejected(r string)   { o.rejected <- r }
func (o *testObserver) WorkloadCancelled(id uint64) { o.cancelled <- id }
func (o *testObserver) WorkloadCompleted(id uint64) { o.completed <- id }
func (o *testObserver) TaskDispatched(workloadID, taskID uint64, backendIdx int) {
	o.dispatched <- dispatchEvt{workloadID, taskID, backendIdx}
}
func (o *testObserver) TaskCompleted(workloadID, taskID uint64, backendIdx int, _ time.Duration) {
	o.taskDone <- taskDoneEvt{workloadID, taskID, backendIdx}
}

func waitDispatch(t *testing.T, ch chan dispatchEvt) dispatchEvt {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for dispatch")
		return dispatchEvt{}
	}
}

func waitU64(t *testing.T, ch chan uint64) uint64 {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for event")
		return 0
	}
}

func waitString(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for event")
		return ""
	}
}

func clientAddr(t *testing.T, c *Core) string {
	t.Helper()
	mgr, ok := c.clientConn.(*transport.TCPConnectionManager)
	if !ok {
		t.Fatalf("client connection manager is not a TCPConnectionManager")
	}
	return mgr.Addr().String()
}
