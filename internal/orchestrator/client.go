package orchestrator

import (
	"log/slog"
	"net"
	"time"

	"github.com/edgeorch/orchestrator/internal/wire"
)

// onClientReceive implements §4.6.2: append to this peer's buffer, then
// drain complete frames one at a time. Holds c.mu for the whole call,
// matching the single-threaded event-handler model: nothing below this
// yields until the buffer is fully drained.
func (c *Core) onClientReceive(peer net.Addr, buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := peer.String()
	c.clientAddrs[key] = peer
	c.clientBuffers[key] = append(c.clientBuffers[key], buf...)

	for {
		b := c.clientBuffers[key]
		if len(b) == 0 {
			return
		}
		if b[0] >= 2 {
			if len(b) < wire.OrchHdrSize {
				return
			}
			hdr, err := wire.UnmarshalOrchHdr(b)
			if err != nil {
				slog.Warn("orchestrator: malformed admission header, dropping client buffer", "peer", key)
				c.clientBuffers[key] = nil
				return
			}
			total := wire.OrchHdrSize + int(hdr.PayloadSize)
			if len(b) < total {
				return
			}
			payload := append([]byte(nil), b[wire.OrchHdrSize:total]...)
			c.clientBuffers[key] = b[total:]
			if hdr.MsgType == wire.MsgAdmissionRequest {
				c.handleAdmissionRequestLocked(peer, hdr.TaskID, payload)
			} else {
				slog.Warn("orchestrator: unexpected message type from client", "peer", key, "msg_type", hdr.MsgType)
			}
			continue
		}

		queue := c.pendingQueue[key]
		if len(queue) == 0 {
			slog.Warn("orchestrator: phase-2 bytes with no pending admission, dropping client buffer", "peer", key)
			c.clientBuffers[key] = nil
			return
		}
		wd, n, err := wire.DagFullDeserialize(b, c.registry)
		if err != nil {
			c.popPendingLocked(key)
			c.clientBuffers[key] = nil
			c.rejectLocked(ReasonDeserializationFailed)
			return
		}
		if n == 0 {
			return
		}
		c.clientBuffers[key] = b[n:]
		c.popPendingLocked(key)
		c.createAndDispatchWorkloadLocked(wd, peer)
	}
}

// popPendingLocked removes and stops the timer of the front pending
// admission entry for key. Caller holds c.mu.
func (c *Core) popPendingLocked(key string) {
	q := c.pendingQueue[key]
	if len(q) == 0 {
		return
	}
	if q[0].timer != nil {
		q[0].timer.Stop()
	}
	c.pendingQueue[key] = q[1:]
}

// handleAdmissionRequestLocked implements §4.6.3. Caller holds c.mu.
func (c *Core) handleAdmissionRequestLocked(peer net.Addr, dagID uint64, payload []byte) {
	key := peer.String()
	wd, n, err := wire.DagMetaDeserialize(payload, c.registry)
	if err != nil || n == 0 {
		c.rejectAdmissionLocked(peer, dagID, ReasonDeserializationFailed)
		return
	}
	if len(wd.Tasks) == 0 {
		c.rejectAdmissionLocked(peer, dagID, ReasonEmptyDag)
		return
	}
	dag, _ := buildDag(wd)
	if !dag.Validate() {
		c.rejectAdmissionLocked(peer, dagID, ReasonInvalidDag)
		return
	}
	if c.admissionPolicy != nil && !c.admissionPolicy.ShouldAdmit(dag, c.cluster, c.clusterState) {
		c.rejectAdmissionLocked(peer, dagID, ReasonAdmissionRejected)
		return
	}
	for _, p := range c.pendingQueue[key] {
		if p.id == dagID {
			c.rejectAdmissionLocked(peer, dagID, ReasonDuplicateAdmission)
			return
		}
	}

	entry := &pendingAdmission{id: dagID}
	if c.admissionTimeout > 0 {
		entry.timer = time.AfterFunc(c.admissionTimeout, func() {
			c.handleAdmissionTimeout(peer)
		})
	}
	c.pendingQueue[key] = append(c.pendingQueue[key], entry)

	c.sendOrchRespLocked(peer, dagID, true)
}

// rejectAdmissionLocked records a rejection and sends a negative
// Phase-1 response echoing the client's dagID, matching
// original_source/model/edge-orchestrator.cc's SendAdmissionResponse
// calls, which always echo the real id even on rejection. Caller holds
// c.mu.
func (c *Core) rejectAdmissionLocked(peer net.Addr, dagID uint64, reason string) {
	c.stats.WorkloadsRejected++
	c.observer.WorkloadRejected(reason)
	c.sendOrchRespLocked(peer, dagID, false)
}

// rejectLocked records a rejection with no response to send (the
// Phase-2 path: Phase-1 already responded admitted=true). Caller holds
// c.mu.
func (c *Core) rejectLocked(reason string) {
	c.stats.WorkloadsRejected++
	c.observer.WorkloadRejected(reason)
}

func (c *Core) sendOrchRespLocked(peer net.Addr, dagID uint64, admitted bool) {
	hdr := wire.OrchHdr{MsgType: wire.MsgAdmissionResponse, TaskID: dagID, Admitted: admitted}
	if err := c.clientConn.Send(hdr.Marshal(), peer); err != nil {
		slog.Warn("orchestrator: failed to send admission response", "peer", peer, "error", err)
	}
}

// handleAdmissionTimeout implements §4.6.4: cancel every pending
// admission for this client, not just the one whose timer fired,
// because stream order ties Phase-2 bytes to queue-front.
func (c *Core) handleAdmissionTimeout(peer net.Addr) {
	c.mu.Lock()
	key := peer.String()
	q := c.pendingQueue[key]
	delete(c.pendingQueue, key)
	for _, p := range q {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	c.stats.WorkloadsRejected += uint64(len(q))
	c.mu.Unlock()

	for range q {
		c.observer.WorkloadRejected(ReasonAdmissionTimeout)
	}
}

// onClientClose implements the client half of §4.6.10.
func (c *Core) onClientClose(peer net.Addr) {
	c.mu.Lock()
	key := peer.String()
	delete(c.clientBuffers, key)
	delete(c.clientAddrs, key)
	q := c.pendingQueue[key]
	delete(c.pendingQueue, key)
	for _, p := range q {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	c.stats.WorkloadsRejected += uint64(len(q))
	var toCancel []uint64
	for id, w := range c.workloads {
		if w.ClientAddr != nil && w.ClientAddr.String() == key {
			toCancel = append(toCancel, id)
		}
	}
	c.mu.Unlock()

	for range q {
		c.observer.WorkloadRejected(ReasonClientDisconnect)
	}
	for _, id := range toCancel {
		c.cancelWorkload(id)
	}
}
