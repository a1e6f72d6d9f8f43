package orchestrator

import (
	"log/slog"
	"net"
	"time"

	"github.com/edgeorch/orchestrator/internal/dagmodel"
	"github.com/edgeorch/orchestrator/internal/wire"
)

// onBackendReceive implements §4.6.5.
func (c *Core) onBackendReceive(peer net.Addr, buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := peer.String()
	c.backendBuffers[key] = append(c.backendBuffers[key], buf...)

	for {
		b := c.backendBuffers[key]
		if len(b) < wire.TaskHdrPrefixSize {
			return
		}

		if b[0] == wire.MsgDeviceMetrics {
			if len(b) < wire.DeviceMetricsHdrSize {
				return
			}
			hdr, err := wire.UnmarshalDeviceMetricsHdr(b)
			if err != nil {
				slog.Warn("orchestrator: malformed device metrics, dropping backend buffer", "peer", key)
				c.backendBuffers[key] = nil
				return
			}
			c.backendBuffers[key] = b[wire.DeviceMetricsHdrSize:]
			if idx, ok := c.backendAddrIdx[key]; ok && c.deviceMgr != nil {
				c.deviceMgr.OnDeviceMetrics(idx, c.clusterState, hdr)
			}
			continue
		}

		prefix, _ := wire.PeekTaskHdrPrefix(b)
		taskType, ok := c.wireTaskType[prefix.TaskID]
		if !ok {
			slog.Warn("orchestrator: response for unknown wire task id, dropping backend buffer", "peer", key, "wire_id", prefix.TaskID)
			c.backendBuffers[key] = nil
			return
		}
		entry, err := c.registry.Lookup(taskType)
		if err != nil {
			slog.Warn("orchestrator: no deserializer for task type, dropping backend buffer", "peer", key, "task_type", taskType)
			c.backendBuffers[key] = nil
			return
		}
		rec, payload, n, err := entry.Full(b)
		if err != nil {
			slog.Warn("orchestrator: malformed task response, dropping backend buffer", "peer", key, "error", err)
			c.backendBuffers[key] = nil
			return
		}
		if n == 0 {
			return
		}
		c.backendBuffers[key] = b[n:]
		delete(c.wireTaskType, prefix.TaskID)

		workloadID, dagIdx := wire.DecodeWireTaskId(prefix.TaskID)
		ws, ok := c.workloads[uint64(workloadID)]
		if !ok {
			// Workload was cancelled; the response is an orphan.
			continue
		}
		backendIdx, ok := c.backendAddrIdx[key]
		if !ok {
			continue
		}
		orig := ws.Dag.GetTask(int(dagIdx))
		responseTask := taskFromRecord(rec, taskType)
		responseTask.TaskID = orig.TaskID
		c.onTaskCompletedLocked(uint64(workloadID), responseTask, backendIdx, payload)
	}
}

// createAndDispatchWorkloadLocked implements §4.6.6. Caller holds c.mu.
func (c *Core) createAndDispatchWorkloadLocked(wd wire.WireDag, clientAddr net.Addr) {
	dag, payloads := buildDag(wd)
	workloadID := c.nextWorkloadID
	c.nextWorkloadID++
	c.workloads[workloadID] = newWorkloadState(dag, clientAddr, payloads)

	if !c.processReadyTasksLocked(workloadID) {
		c.cancelWorkloadLocked(workloadID)
		return
	}
	c.stats.WorkloadsAdmitted++
	c.observer.WorkloadAdmitted(workloadID)
}

// processReadyTasksLocked implements §4.6.8. Caller holds c.mu. Returns
// false if any ready task failed to dispatch — the caller is
// responsible for cancelling the workload; already-dispatched tasks in
// this same call are deliberately NOT rolled back (they are abandoned;
// their eventual responses will be dropped as orphans once the
// workload is gone).
func (c *Core) processReadyTasksLocked(workloadID uint64) bool {
	ws := c.workloads[workloadID]
	dag := ws.Dag
	for _, idx := range dag.GetReadyTasks() {
		task := dag.GetTask(idx)
		if _, already := ws.TaskToBackend[task.TaskID]; already {
			continue
		}
		if !c.dispatchLocked(workloadID, ws, dag, idx, task) {
			return false
		}
	}
	return true
}

func (c *Core) dispatchLocked(workloadID uint64, ws *WorkloadState, dag *dagmodel.DAG, dagIdx int, task dagmodel.Task) bool {
	backendIdx, ok := c.scheduler.ScheduleTask(task, c.cluster, c.clusterState)
	if !ok {
		return false
	}
	wireID := wire.EncodeWireTaskId(uint32(workloadID), uint32(dagIdx))
	c.wireTaskType[wireID] = task.TaskType
	ws.TaskToBackend[task.TaskID] = backendIdx
	ws.Pending++

	wireTask := task
	wireTask.TaskID = wireID
	rec := recordFromTask(wireTask, wire.MsgTaskRequest)
	frame := rec.MarshalFull(ws.InputPayload[task.TaskID])

	if err := c.backendConn.Send(frame, c.backendPeerAddr[backendIdx]); err != nil {
		delete(c.wireTaskType, wireID)
		delete(ws.TaskToBackend, task.TaskID)
		ws.Pending--
		slog.Warn("orchestrator: dispatch send failed", "workload", workloadID, "backend", backendIdx, "error", err)
		return false
	}

	ws.dispatchedAt[task.TaskID] = time.Now()
	c.clusterState.NotifyTaskDispatched(backendIdx)
	c.observer.TaskDispatched(workloadID, task.TaskID, backendIdx)
	c.maybeTick(backendIdx)
	return true
}

// onTaskCompletedLocked implements §4.6.7. Caller holds c.mu.
func (c *Core) onTaskCompletedLocked(workloadID uint64, responseTask dagmodel.Task, backendIdx int, payload []byte) {
	c.scheduler.NotifyTaskCompleted(backendIdx, responseTask)
	c.clusterState.NotifyTaskCompleted(backendIdx)
	c.maybeTick(backendIdx)

	ws, ok := c.workloads[workloadID]
	if !ok {
		return
	}
	var turnaround time.Duration
	if started, ok := ws.dispatchedAt[responseTask.TaskID]; ok {
		turnaround = time.Since(started)
		delete(ws.dispatchedAt, responseTask.TaskID)
	}
	c.observer.TaskCompleted(workloadID, responseTask.TaskID, backendIdx, turnaround)

	delete(ws.TaskToBackend, responseTask.TaskID)
	if ws.Pending > 0 {
		ws.Pending--
	}

	dagIdx, ok := ws.Dag.GetTaskIndex(responseTask.TaskID)
	if !ok {
		slog.Warn("orchestrator: completion for unknown task id", "workload", workloadID, "task", responseTask.TaskID)
		return
	}
	ws.Dag.SetTask(dagIdx, responseTask)
	if payload != nil {
		ws.OutputPayload[responseTask.TaskID] = payload
	}
	ws.Dag.MarkCompleted(dagIdx)

	if ws.Dag.IsComplete() {
		c.completeWorkloadLocked(workloadID)
		return
	}
	if !c.processReadyTasksLocked(workloadID) {
		c.cancelWorkloadLocked(workloadID)
	}
}
