package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/edgeorch/orchestrator/internal/cluster"
	"github.com/edgeorch/orchestrator/internal/dagmodel"
	"github.com/edgeorch/orchestrator/internal/devicemgr"
	"github.com/edgeorch/orchestrator/internal/resilience"
	"github.com/edgeorch/orchestrator/internal/strategy"
	"github.com/edgeorch/orchestrator/internal/transport"
	"github.com/edgeorch/orchestrator/internal/wire"
)

// Config enumerates the orchestrator's construction-time options. Port
// and Cluster and Scheduler are required; everything else has a usable
// default.
type Config struct {
	Port             int
	Cluster          *cluster.Cluster
	Scheduler        strategy.ClusterScheduler
	AdmissionPolicy  strategy.AdmissionPolicy // nil => always admit
	ScalingPolicy    strategy.ScalingPolicy   // nil => no scaling tick
	ClientConnMgr    transport.ConnectionManager
	BackendConnMgr   transport.ConnectionManager
	AdmissionTimeout time.Duration // 0 => no timeout
	Registry         *wire.Registry
	Observer         Observer

	// BackendDialAttempts and BackendDialDelay configure the retry
	// wrapper around each backend's initial connection in Start. Zero
	// values fall back to defaultBackendDialAttempts/Delay.
	BackendDialAttempts int
	BackendDialDelay    time.Duration
}

const (
	defaultBackendDialAttempts = 5
	defaultBackendDialDelay    = 500 * time.Millisecond
)

// Core is the orchestrator's single point of mutable state. Every
// exported method is safe for concurrent use; internally everything is
// serialized behind mu, per the single-mutex concurrency model used in
// place of a single-threaded event loop.
type Core struct {
	mu sync.Mutex

	cluster         *cluster.Cluster
	scheduler       strategy.ClusterScheduler
	admissionPolicy strategy.AdmissionPolicy
	scalingPolicy   strategy.ScalingPolicy
	registry        *wire.Registry
	observer        Observer

	clientConn  transport.ConnectionManager
	backendConn transport.ConnectionManager
	deviceMgr   *devicemgr.Manager

	port             int
	admissionTimeout time.Duration

	backendDialAttempts int
	backendDialDelay    time.Duration

	clusterState *cluster.State

	clientBuffers map[string][]byte
	clientAddrs   map[string]net.Addr
	pendingQueue  map[string][]*pendingAdmission

	backendBuffers  map[string][]byte
	backendAddrIdx  map[string]int
	backendPeerAddr []net.Addr

	workloads      map[uint64]*WorkloadState
	wireTaskType   map[uint64]uint8
	nextWorkloadID uint64

	stats Stats
}

// New constructs a Core from cfg. Call Start to bind/connect.
func New(cfg Config) *Core {
	if cfg.Registry == nil {
		cfg.Registry = wire.NewRegistry()
	}
	if cfg.ClientConnMgr == nil {
		cfg.ClientConnMgr = transport.NewTCPConnectionManager()
	}
	if cfg.BackendConnMgr == nil {
		cfg.BackendConnMgr = transport.NewTCPConnectionManager()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = noopObserver{}
	}
	dialAttempts := cfg.BackendDialAttempts
	if dialAttempts <= 0 {
		dialAttempts = defaultBackendDialAttempts
	}
	dialDelay := cfg.BackendDialDelay
	if dialDelay <= 0 {
		dialDelay = defaultBackendDialDelay
	}
	c := &Core{
		cluster:             cfg.Cluster,
		scheduler:           cfg.Scheduler,
		admissionPolicy:     cfg.AdmissionPolicy,
		scalingPolicy:       cfg.ScalingPolicy,
		registry:            cfg.Registry,
		observer:            obs,
		clientConn:          cfg.ClientConnMgr,
		backendConn:         cfg.BackendConnMgr,
		port:                cfg.Port,
		admissionTimeout:    cfg.AdmissionTimeout,
		backendDialAttempts: dialAttempts,
		backendDialDelay:    dialDelay,
		clientBuffers:       make(map[string][]byte),
		clientAddrs:         make(map[string]net.Addr),
		pendingQueue:        make(map[string][]*pendingAdmission),
		backendBuffers:      make(map[string][]byte),
		backendAddrIdx:      make(map[string]int),
		workloads:           make(map[uint64]*WorkloadState),
		wireTaskType:        make(map[uint64]uint8),
		nextWorkloadID:      1,
	}
	return c
}

// coreBackendSender adapts Core to devicemgr.Sender without requiring
// devicemgr to know about transport or cluster addressing.
type coreBackendSender struct{ c *Core }

func (s coreBackendSender) Send(backendIdx int, payload []byte) error {
	c := s.c
	if backendIdx < 0 || backendIdx >= len(c.backendPeerAddr) {
		return fmt.Errorf("devicemgr: backend index %d out of range", backendIdx)
	}
	return c.backendConn.Send(payload, c.backendPeerAddr[backendIdx])
}

// Start asserts a scheduler is configured, prepares the task-type
// registry and cluster state, opens one outbound connection per
// backend, and binds the client-facing listener. Mirrors §4.6.1.
func (c *Core) Start() error {
	if c.scheduler == nil {
		return fmt.Errorf("orchestrator: no scheduler configured")
	}
	c.registry.EnsureDefault()
	c.clusterState = cluster.NewState(c.cluster.GetN())
	c.backendPeerAddr = make([]net.Addr, c.cluster.GetN())

	c.backendConn.OnReceive(c.onBackendReceive)
	c.backendConn.OnClose(c.onBackendClose)
	c.clientConn.OnReceive(c.onClientReceive)
	c.clientConn.OnClose(c.onClientClose)

	for i, b := range c.cluster.All() {
		addr := b.Address.String()
		peer, err := resilience.Retry(context.Background(), c.backendDialAttempts, c.backendDialDelay, func() (net.Addr, error) {
			return c.backendConn.Connect(addr)
		})
		if err != nil {
			return fmt.Errorf("orchestrator: connect backend %d: %w", i, err)
		}
		c.backendPeerAddr[i] = peer
		c.backendAddrIdx[peer.String()] = i
	}

	if err := c.clientConn.Bind(c.port); err != nil {
		return fmt.Errorf("orchestrator: bind client listener: %w", err)
	}

	if c.deviceMgr == nil {
		// DeviceMgr is optional at Config level; callers that want DVFS
		// call WithDeviceManager with an operating-point table before
		// calling Start, and it builds the devicemgr.Manager.
	}
	slog.Info("orchestrator started", "port", c.port, "backends", c.cluster.GetN())
	return nil
}

// WithDeviceManager attaches a device manager built from the same
// cluster and a backend sender bound to this Core. Call before Start.
func (c *Core) WithDeviceManager(opps []strategy.OperatingPoint) *Core {
	c.deviceMgr = devicemgr.New(c.cluster, opps, coreBackendSender{c: c})
	return c
}

// Stats returns a point-in-time snapshot of the orchestrator's counters.
func (c *Core) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.ActiveWorkloads = len(c.workloads)
	pending := 0
	for _, q := range c.pendingQueue {
		pending += len(q)
	}
	s.PendingAdmissions = pending
	return s
}

// Shutdown cancels every pending admission timer and live workload, then
// closes both connection managers. Per §4.6.11, idempotent ordering is
// not required of callers but this method itself is safe to call once.
func (c *Core) Shutdown() {
	c.mu.Lock()
	for _, q := range c.pendingQueue {
		for _, p := range q {
			if p.timer != nil {
				p.timer.Stop()
			}
		}
	}
	c.pendingQueue = make(map[string][]*pendingAdmission)
	ids := make([]uint64, 0, len(c.workloads))
	for id := range c.workloads {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.cancelWorkload(id)
	}
	c.clientConn.CloseAll()
	c.backendConn.CloseAll()
	slog.Info("orchestrator shut down")
}

// maybeTick runs one scaling decision for backendIdx if both a device
// manager and a scaling policy are configured. Errors are logged, not
// propagated — a failed scaling command never fails the workload path
// that triggered it.
func (c *Core) maybeTick(backendIdx int) {
	if c.deviceMgr == nil || c.scalingPolicy == nil {
		return
	}
	freq, sent, err := c.deviceMgr.Tick(backendIdx, c.clusterState, c.scalingPolicy)
	if err != nil {
		slog.Warn("orchestrator: scaling tick failed", "backend", backendIdx, "error", err)
		return
	}
	if sent {
		if o, ok := c.observer.(interface {
			ScalingCommandIssued(int, float64)
		}); ok {
			o.ScalingCommandIssued(backendIdx, freq)
		}
	}
}

func taskFromRecord(rec wire.SimpleTaskRecord, taskType uint8) dagmodel.Task {
	return dagmodel.Task{
		TaskID:        rec.TaskID,
		TaskType:      taskType,
		ComputeDemand: rec.ComputeDemand,
		InputSize:     rec.InputSize,
		OutputSize:    rec.OutputSize,
		HasDeadline:   rec.HasDeadline,
		Deadline:      rec.Deadline,
		AccelType:     rec.AccelType,
	}
}

func recordFromTask(task dagmodel.Task, msgType uint8) wire.SimpleTaskRecord {
	return wire.SimpleTaskRecord{
		MsgType:       msgType,
		TaskID:        task.TaskID,
		ComputeDemand: task.ComputeDemand,
		InputSize:     task.InputSize,
		OutputSize:    task.OutputSize,
		HasDeadline:   task.HasDeadline,
		Deadline:      task.Deadline,
		HasAccel:      task.AccelType != "",
		AccelType:     task.AccelType,
	}
}

func buildDag(wd wire.WireDag) (*dagmodel.DAG, map[uint64][]byte) {
	dag := dagmodel.New()
	payloads := make(map[uint64][]byte)
	for _, t := range wd.Tasks {
		task := taskFromRecord(t.Record, t.TaskType)
		dag.AddTask(task)
		if t.Payload != nil {
			payloads[task.TaskID] = t.Payload
		}
	}
	for _, e := range wd.Edges {
		switch e.Kind {
		case wire.EdgeData:
			dag.AddDataEdge(int(e.From), int(e.To))
		default:
			dag.AddControlEdge(int(e.From), int(e.To))
		}
	}
	return dag, payloads
}
