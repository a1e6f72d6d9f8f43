package wire

import (
	"encoding/binary"
	"fmt"
)

// EdgeKind distinguishes a pure ordering edge from one that also
// propagates output size into the successor's input size.
type EdgeKind uint8

const (
	EdgeControl EdgeKind = 0
	EdgeData    EdgeKind = 1
)

// WireEdge is one DAG edge as it appears on the wire: task indices plus
// its kind.
type WireEdge struct {
	From uint32
	To   uint32
	Kind EdgeKind
}

// WireTask is one task as parsed off the wire, before being handed to
// dagmodel to build a live DAG. Payload is nil for metadata-only parses.
type WireTask struct {
	TaskType uint8
	Record   SimpleTaskRecord
	Payload  []byte
}

// WireDag is the parsed form of an incoming DAG upload (Phase-1 metadata
// or Phase-2 full-data), before dagmodel construction.
type WireDag struct {
	Tasks []WireTask
	Edges []WireEdge
}

// EncodeWireTaskId packs a workload ID and DAG index into the 64-bit
// identifier the orchestrator hands to backends in place of the
// client-facing task ID: upper 32 bits workload ID, lower 32 bits DAG
// index.
func EncodeWireTaskId(workloadID uint32, dagIdx uint32) uint64 {
	return uint64(workloadID)<<32 | uint64(dagIdx)
}

// DecodeWireTaskId is the inverse of EncodeWireTaskId.
func DecodeWireTaskId(wireID uint64) (workloadID uint32, dagIdx uint32) {
	return uint32(wireID >> 32), uint32(wireID)
}

// DagMetaDeserialize parses a Phase-1 admission payload: taskCount,
// then per task a taskType byte followed by that type's metadata record,
// then the edge set. Returns consumed == 0 if buf does not yet hold a
// complete DAG.
func DagMetaDeserialize(buf []byte, reg *Registry) (WireDag, int, error) {
	if len(buf) < 4 {
		return WireDag{}, 0, nil
	}
	taskCount := binary.BigEndian.Uint32(buf)
	off := 4
	tasks := make([]WireTask, 0, taskCount)
	for i := uint32(0); i < taskCount; i++ {
		if len(buf) < off+1 {
			return WireDag{}, 0, nil
		}
		taskType := buf[off]
		entry, err := reg.Lookup(taskType)
		if err != nil {
			return WireDag{}, 0, fmt.Errorf("dag meta task %d: %w", i, err)
		}
		rec, n, err := entry.Meta(buf[off+1:])
		if err != nil {
			return WireDag{}, 0, fmt.Errorf("dag meta task %d: %w", i, err)
		}
		if n == 0 {
			return WireDag{}, 0, nil
		}
		tasks = append(tasks, WireTask{TaskType: taskType, Record: rec})
		off += 1 + n
	}
	edges, n, ok := decodeEdges(buf[off:])
	if !ok {
		return WireDag{}, 0, nil
	}
	off += n
	return WireDag{Tasks: tasks, Edges: edges}, off, nil
}

// DagFullDeserialize parses a Phase-2 upload: identical to
// DagMetaDeserialize but each task additionally carries payload bytes,
// sized by its task type's full deserializer (for SimpleTask: InputSize
// bytes on a TASK_REQ record, OutputSize bytes on a TASK_RESP record).
func DagFullDeserialize(buf []byte, reg *Registry) (WireDag, int, error) {
	if len(buf) < 4 {
		return WireDag{}, 0, nil
	}
	taskCount := binary.BigEndian.Uint32(buf)
	off := 4
	tasks := make([]WireTask, 0, taskCount)
	for i := uint32(0); i < taskCount; i++ {
		if len(buf) < off+1 {
			return WireDag{}, 0, nil
		}
		taskType := buf[off]
		entry, err := reg.Lookup(taskType)
		if err != nil {
			return WireDag{}, 0, fmt.Errorf("dag full task %d: %w", i, err)
		}
		rec, payload, n, err := entry.Full(buf[off+1:])
		if err != nil {
			return WireDag{}, 0, fmt.Errorf("dag full task %d: %w", i, err)
		}
		if n == 0 {
			return WireDag{}, 0, nil
		}
		tasks = append(tasks, WireTask{TaskType: taskType, Record: rec, Payload: payload})
		off += 1 + n
	}
	edges, n, ok := decodeEdges(buf[off:])
	if !ok {
		return WireDag{}, 0, nil
	}
	off += n
	return WireDag{Tasks: tasks, Edges: edges}, off, nil
}

func decodeEdges(buf []byte) ([]WireEdge, int, bool) {
	if len(buf) < 4 {
		return nil, 0, false
	}
	edgeCount := binary.BigEndian.Uint32(buf)
	off := 4
	need := off + int(edgeCount)*9
	if len(buf) < need {
		return nil, 0, false
	}
	edges := make([]WireEdge, edgeCount)
	for i := range edges {
		edges[i] = WireEdge{
			From: binary.BigEndian.Uint32(buf[off:]),
			To:   binary.BigEndian.Uint32(buf[off+4:]),
			Kind: EdgeKind(buf[off+8]),
		}
		off += 9
	}
	return edges, off, true
}

// MarshalDagMeta encodes a WireDag in the metadata wire format.
func MarshalDagMeta(d WireDag) []byte {
	return marshalDag(d, false)
}

// MarshalDagFull encodes a WireDag in the full-data wire format,
// including each task's payload bytes.
func MarshalDagFull(d WireDag) []byte {
	return marshalDag(d, true)
}

func marshalDag(d WireDag, withPayload bool) []byte {
	var out []byte
	head := make([]byte, 4)
	binary.BigEndian.PutUint32(head, uint32(len(d.Tasks)))
	out = append(out, head...)
	for _, t := range d.Tasks {
		out = append(out, t.TaskType)
		if withPayload {
			out = append(out, t.Record.MarshalFull(t.Payload)...)
		} else {
			out = append(out, t.Record.MarshalMeta()...)
		}
	}
	edgeHead := make([]byte, 4)
	binary.BigEndian.PutUint32(edgeHead, uint32(len(d.Edges)))
	out = append(out, edgeHead...)
	for _, e := range d.Edges {
		eb := make([]byte, 9)
		binary.BigEndian.PutUint32(eb[0:], e.From)
		binary.BigEndian.PutUint32(eb[4:], e.To)
		eb[8] = byte(e.Kind)
		out = append(out, eb...)
	}
	return out
}
