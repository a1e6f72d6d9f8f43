package wire

import (
	"encoding/binary"
	"fmt"
)

// SimpleTaskTypeID is the registry key for the default task type, used
// whenever the orchestrator is started with no task types registered.
const SimpleTaskTypeID uint8 = 0

// SimpleTaskRecord is the one concrete task-type wire record this
// orchestrator ships with. It carries the common TaskHdrPrefix plus the
// compute/size/deadline/accelerator fields every Task in the data model
// (spec §3) needs. Metadata and full deserializers share this record;
// FullDeserialize additionally reads a trailing payload.
type SimpleTaskRecord struct {
	MsgType       uint8
	TaskID        uint64
	ComputeDemand float64
	InputSize     uint64
	OutputSize    uint64
	HasDeadline   bool
	Deadline      float64
	HasAccel      bool
	AccelType     string
}

// headerLen returns the number of bytes this record occupies before any
// trailing payload, which varies with HasDeadline/HasAccel.
func (r SimpleTaskRecord) headerLen() int {
	n := 1 + 8 + 8 + 8 + 8 + 1 // msgType+taskId+compute+input+output+hasDeadline
	if r.HasDeadline {
		n += 8
	}
	n += 1 // hasAccel
	if r.HasAccel {
		n += 2 + len(r.AccelType)
	}
	return n
}

// MarshalMeta encodes the header-only portion (Phase-1 metadata use).
func (r SimpleTaskRecord) MarshalMeta() []byte {
	buf := make([]byte, r.headerLen())
	off := 0
	buf[off] = r.MsgType
	off++
	binary.BigEndian.PutUint64(buf[off:], r.TaskID)
	off += 8
	putFloat64(buf[off:], r.ComputeDemand)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], r.InputSize)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], r.OutputSize)
	off += 8
	if r.HasDeadline {
		buf[off] = 1
		off++
		putFloat64(buf[off:], r.Deadline)
		off += 8
	} else {
		buf[off] = 0
		off++
	}
	if r.HasAccel {
		buf[off] = 1
		off++
		binary.BigEndian.PutUint16(buf[off:], uint16(len(r.AccelType)))
		off += 2
		copy(buf[off:], r.AccelType)
		off += len(r.AccelType)
	} else {
		buf[off] = 0
		off++
	}
	return buf
}

// UnmarshalSimpleTaskMeta parses the header-only portion from buf,
// returning the record and the number of bytes consumed. A consumed
// value of 0 means "not enough data yet, try again after more arrives".
func UnmarshalSimpleTaskMeta(buf []byte) (SimpleTaskRecord, int, error) {
	const fixedPrefix = 1 + 8 + 8 + 8 + 8 + 1 // up to and including hasDeadline
	if len(buf) < fixedPrefix {
		return SimpleTaskRecord{}, 0, nil
	}
	var r SimpleTaskRecord
	off := 0
	r.MsgType = buf[off]
	off++
	r.TaskID = binary.BigEndian.Uint64(buf[off:])
	off += 8
	r.ComputeDemand = getFloat64(buf[off:])
	off += 8
	r.InputSize = binary.BigEndian.Uint64(buf[off:])
	off += 8
	r.OutputSize = binary.BigEndian.Uint64(buf[off:])
	off += 8
	r.HasDeadline = buf[off] != 0
	off++
	if r.HasDeadline {
		if len(buf) < off+8 {
			return SimpleTaskRecord{}, 0, nil
		}
		r.Deadline = getFloat64(buf[off:])
		off += 8
	}
	if len(buf) < off+1 {
		return SimpleTaskRecord{}, 0, nil
	}
	r.HasAccel = buf[off] != 0
	off++
	if r.HasAccel {
		if len(buf) < off+2 {
			return SimpleTaskRecord{}, 0, nil
		}
		accelLen := int(binary.BigEndian.Uint16(buf[off:]))
		off += 2
		if len(buf) < off+accelLen {
			return SimpleTaskRecord{}, 0, nil
		}
		r.AccelType = string(buf[off : off+accelLen])
		off += accelLen
	}
	return r, off, nil
}

// UnmarshalSimpleTaskFull parses the metadata record and, once the
// record itself is complete, the trailing payload (InputSize bytes on a
// request, OutputSize bytes on a response). Returns consumed == 0 if
// either the header or the payload is not yet fully buffered.
func UnmarshalSimpleTaskFull(buf []byte) (SimpleTaskRecord, []byte, int, error) {
	r, hdrConsumed, err := UnmarshalSimpleTaskMeta(buf)
	if err != nil {
		return SimpleTaskRecord{}, nil, 0, err
	}
	if hdrConsumed == 0 {
		return SimpleTaskRecord{}, nil, 0, nil
	}
	var payloadLen uint64
	switch r.MsgType {
	case MsgTaskRequest:
		payloadLen = r.InputSize
	case MsgTaskResponse:
		payloadLen = r.OutputSize
	default:
		return SimpleTaskRecord{}, nil, 0, fmt.Errorf("simple task record: unexpected msgType %d: %w", r.MsgType, ErrDeserializeFailed)
	}
	total := hdrConsumed + int(payloadLen)
	if len(buf) < total {
		return SimpleTaskRecord{}, nil, 0, nil
	}
	payload := buf[hdrConsumed:total]
	return r, payload, total, nil
}

// MarshalFull encodes the header followed by payload, sized per MsgType
// as described above. Caller is responsible for passing a payload of the
// correct length for the record's MsgType.
func (r SimpleTaskRecord) MarshalFull(payload []byte) []byte {
	hdr := r.MarshalMeta()
	buf := make([]byte, len(hdr)+len(payload))
	copy(buf, hdr)
	copy(buf[len(hdr):], payload)
	return buf
}
