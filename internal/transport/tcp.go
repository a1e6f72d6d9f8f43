package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TCPConnectionManager implements ConnectionManager over plain TCP.
// Bind accepts inbound peers (the client-facing listener); Connect
// dials an outbound peer (one per backend). Both use the same
// per-connection read-loop goroutine and the same callbacks, since the
// orchestrator runs one TCPConnectionManager for clients and a second,
// independent instance for backends.
type TCPConnectionManager struct {
	mu        sync.Mutex
	conns     map[string]net.Conn
	listener  net.Listener
	onReceive ReceiveFunc
	onClose   CloseFunc
	closed    map[string]bool

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTCPConnectionManager constructs an idle manager; call Bind and/or
// Connect to start accepting or dialing connections.
func NewTCPConnectionManager() *TCPConnectionManager {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	return &TCPConnectionManager{
		conns:  make(map[string]net.Conn),
		closed: make(map[string]bool),
		group:  group,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (m *TCPConnectionManager) OnReceive(fn ReceiveFunc) { m.onReceive = fn }
func (m *TCPConnectionManager) OnClose(fn CloseFunc)     { m.onClose = fn }

// Addr returns the listener's bound address. Only meaningful after a
// successful Bind; used by callers (tests in particular) that bound to
// port 0 and need the actual ephemeral port.
func (m *TCPConnectionManager) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Bind starts a listener on port and accepts connections in the
// background until CloseAll is called.
func (m *TCPConnectionManager) Bind(port int) error {
	ln, err := net.Listen("tcp", portAddr(port))
	if err != nil {
		return err
	}
	m.listener = ln
	m.group.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			m.registerConn(conn)
		}
	})
	return nil
}

// Connect dials addr and begins its read loop. Returns the established
// peer address (net.Conn.RemoteAddr).
func (m *TCPConnectionManager) Connect(addr string) (net.Addr, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	m.registerConn(conn)
	return conn.RemoteAddr(), nil
}

func (m *TCPConnectionManager) registerConn(conn net.Conn) {
	key := conn.RemoteAddr().String()
	m.mu.Lock()
	m.conns[key] = conn
	m.mu.Unlock()

	m.group.Go(func() error {
		m.readLoop(conn)
		return nil
	})
}

func (m *TCPConnectionManager) readLoop(conn net.Conn) {
	peer := conn.RemoteAddr()
	key := peer.String()
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 && m.onReceive != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			m.onReceive(peer, chunk)
		}
		if err != nil {
			m.closeOne(key, peer)
			return
		}
	}
}

func (m *TCPConnectionManager) closeOne(key string, peer net.Addr) {
	m.mu.Lock()
	if m.closed[key] {
		m.mu.Unlock()
		return
	}
	m.closed[key] = true
	conn := m.conns[key]
	delete(m.conns, key)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if m.onClose != nil {
		m.onClose(peer)
	}
}

// Send writes payload to peer. Returns an error if peer is unknown or
// the write fails.
func (m *TCPConnectionManager) Send(payload []byte, peer net.Addr) error {
	m.mu.Lock()
	conn, ok := m.conns[peer.String()]
	m.mu.Unlock()
	if !ok {
		return net.ErrClosed
	}
	_, err := conn.Write(payload)
	return err
}

// CloseAll idempotently closes the listener (if any) and every
// connection, firing OnClose for each peer not already closed.
func (m *TCPConnectionManager) CloseAll() {
	if m.listener != nil {
		_ = m.listener.Close()
	}
	m.mu.Lock()
	keys := make([]string, 0, len(m.conns))
	peers := make(map[string]net.Addr, len(m.conns))
	for k, c := range m.conns {
		keys = append(keys, k)
		peers[k] = c.RemoteAddr()
	}
	m.mu.Unlock()
	for _, k := range keys {
		m.closeOne(k, peers[k])
	}
	m.cancel()
	if err := m.group.Wait(); err != nil {
		slog.Warn("transport: shutdown goroutine error", "error", err)
	}
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
