package orchestrator

import (
	"log/slog"
	"net"

	"github.com/edgeorch/orchestrator/internal/wire"
)

// completeWorkloadLocked implements §4.6.9. Caller holds c.mu.
func (c *Core) completeWorkloadLocked(workloadID uint64) {
	ws := c.workloads[workloadID]
	delete(c.workloads, workloadID)
	c.stats.WorkloadsCompleted++
	c.observer.WorkloadCompleted(workloadID)

	for _, idx := range ws.Dag.GetSinkTasks() {
		task := ws.Dag.GetTask(idx)
		rec := recordFromTask(task, wire.MsgTaskResponse)
		frame := rec.MarshalFull(ws.OutputPayload[task.TaskID])
		if err := c.clientConn.Send(frame, ws.ClientAddr); err != nil {
			slog.Warn("orchestrator: failed to send final result", "workload", workloadID, "task", task.TaskID, "error", err)
		}
	}
}

// cancelWorkload acquires c.mu and delegates to cancelWorkloadLocked.
func (c *Core) cancelWorkload(workloadID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelWorkloadLocked(workloadID)
}

// cancelWorkloadLocked implements §4.6.10's CancelWorkload. Caller
// holds c.mu.
func (c *Core) cancelWorkloadLocked(workloadID uint64) {
	ws, ok := c.workloads[workloadID]
	if !ok {
		return
	}
	for taskID, backendIdx := range ws.TaskToBackend {
		c.clusterState.NotifyTaskCancelled(backendIdx)
		if dagIdx, ok := ws.Dag.GetTaskIndex(taskID); ok {
			wireID := wire.EncodeWireTaskId(uint32(workloadID), uint32(dagIdx))
			delete(c.wireTaskType, wireID)
		}
	}
	delete(c.workloads, workloadID)
	c.stats.WorkloadsCancelled++
	c.observer.WorkloadCancelled(workloadID)
}

// onBackendClose implements the backend half of §4.6.10.
func (c *Core) onBackendClose(peer net.Addr) {
	c.mu.Lock()
	key := peer.String()
	delete(c.backendBuffers, key)
	idx, known := c.backendAddrIdx[key]
	var toCancel []uint64
	if known {
		for id, ws := range c.workloads {
			for _, b := range ws.TaskToBackend {
				if b == idx {
					toCancel = append(toCancel, id)
					break
				}
			}
		}
	}
	c.mu.Unlock()

	for _, id := range toCancel {
		c.cancelWorkload(id)
	}
}
