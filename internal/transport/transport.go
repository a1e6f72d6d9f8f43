// Package transport implements the orchestrator's reliable, ordered,
// per-peer byte-stream connection layer: one listening endpoint for
// clients and one outbound connection per backend, each with its own
// close notification. Received bytes are handed to the callback as they
// arrive; per-peer buffering is left to the receiver.
package transport

import "net"

// ReceiveFunc is called with only the bytes that just arrived from
// peer; earlier bytes are not included. The caller owns buf;
// implementations must not retain it past the call.
type ReceiveFunc func(peer net.Addr, buf []byte)

// CloseFunc is called at most once per peer, after which no further
// ReceiveFunc calls occur for that peer.
type CloseFunc func(peer net.Addr)

// ConnectionManager is the orchestrator's only dependency on the
// network: Bind for the client-facing listener, Connect for backend
// dialing, Send for both directions, plus the two callbacks.
type ConnectionManager interface {
	Bind(port int) error
	Connect(addr string) (net.Addr, error)
	Send(payload []byte, peer net.Addr) error
	OnReceive(fn ReceiveFunc)
	OnClose(fn CloseFunc)
	CloseAll()
}
