// Package wire implements the fixed-size, big-endian wire headers the
// orchestrator exchanges with clients and backends, plus the first-byte
// stream-dispatch rule that multiplexes all four header types and raw DAG
// payload bytes onto the same TCP connections.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Message type values. These occupy disjoint ranges by design: 0x00-0x01
// are TaskHdr, 0x02-0x03 are OrchHdr, 0x04 is DeviceMetricsHdr, 0x05 is
// ScalingCmdHdr. Anything else on the client-facing stream is raw DAG
// payload bytes. Keeping these disjoint is load-bearing: DispatchByte
// relies on it to route an incoming buffer without knowing its shape.
const (
	MsgTaskRequest       uint8 = 0x00
	MsgTaskResponse      uint8 = 0x01
	MsgAdmissionRequest  uint8 = 0x02
	MsgAdmissionResponse uint8 = 0x03
	MsgDeviceMetrics     uint8 = 0x04
	MsgScalingCommand    uint8 = 0x05
)

// Kind identifies which header (if any) a buffer's first byte selects.
type Kind int

const (
	KindTaskHeader Kind = iota
	KindOrchHeader
	KindDeviceMetrics
	KindScalingCommand
	KindDagPayload
)

// DispatchByte classifies a stream's leading byte per the dispatch table.
func DispatchByte(b byte) Kind {
	switch {
	case b == MsgTaskRequest || b == MsgTaskResponse:
		return KindTaskHeader
	case b == MsgAdmissionRequest || b == MsgAdmissionResponse:
		return KindOrchHeader
	case b == MsgDeviceMetrics:
		return KindDeviceMetrics
	case b == MsgScalingCommand:
		return KindScalingCommand
	default:
		return KindDagPayload
	}
}

func putFloat64(buf []byte, v float64) {
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
}

func getFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(buf))
}

// OrchHdr is the Phase-1 admission protocol header. 18 bytes on the wire.
type OrchHdr struct {
	MsgType     uint8
	TaskID      uint64
	Admitted    bool
	PayloadSize uint64
}

const OrchHdrSize = 18

func (h OrchHdr) IsRequest() bool  { return h.MsgType == MsgAdmissionRequest }
func (h OrchHdr) IsResponse() bool { return h.MsgType == MsgAdmissionResponse }

// Marshal writes the 18-byte wire form of h.
func (h OrchHdr) Marshal() []byte {
	buf := make([]byte, OrchHdrSize)
	buf[0] = h.MsgType
	binary.BigEndian.PutUint64(buf[1:9], h.TaskID)
	if h.Admitted {
		buf[9] = 1
	}
	binary.BigEndian.PutUint64(buf[10:18], h.PayloadSize)
	return buf
}

// UnmarshalOrchHdr parses an OrchHdr from the front of buf. Returns
// ErrMalformedFrame if buf is shorter than OrchHdrSize.
func UnmarshalOrchHdr(buf []byte) (OrchHdr, error) {
	if len(buf) < OrchHdrSize {
		return OrchHdr{}, fmt.Errorf("orch header: %w", ErrMalformedFrame)
	}
	return OrchHdr{
		MsgType:     buf[0],
		TaskID:      binary.BigEndian.Uint64(buf[1:9]),
		Admitted:    buf[9] != 0,
		PayloadSize: binary.BigEndian.Uint64(buf[10:18]),
	}, nil
}

// TaskHdrPrefix is the 9-byte common prefix every concrete TaskHdr variant
// must lead with: msgType then taskId. It lets the backend-response path
// peek the wire task ID without knowing the concrete task type.
type TaskHdrPrefix struct {
	MsgType uint8
	TaskID  uint64
}

const TaskHdrPrefixSize = 9

// PeekTaskHdrPrefix reads the common 9-byte prefix without consuming buf.
func PeekTaskHdrPrefix(buf []byte) (TaskHdrPrefix, error) {
	if len(buf) < TaskHdrPrefixSize {
		return TaskHdrPrefix{}, fmt.Errorf("task header prefix: %w", ErrMalformedFrame)
	}
	return TaskHdrPrefix{
		MsgType: buf[0],
		TaskID:  binary.BigEndian.Uint64(buf[1:9]),
	}, nil
}

// DeviceMetricsHdr reports accelerator state from a backend. 30 bytes.
type DeviceMetricsHdr struct {
	Frequency    float64
	Voltage      float64
	Busy         bool
	QueueLength  uint32
	CurrentPower float64
}

const DeviceMetricsHdrSize = 30

func (h DeviceMetricsHdr) Marshal() []byte {
	buf := make([]byte, DeviceMetricsHdrSize)
	buf[0] = MsgDeviceMetrics
	putFloat64(buf[1:9], h.Frequency)
	putFloat64(buf[9:17], h.Voltage)
	if h.Busy {
		buf[17] = 1
	}
	binary.BigEndian.PutUint32(buf[18:22], h.QueueLength)
	putFloat64(buf[22:30], h.CurrentPower)
	return buf
}

func UnmarshalDeviceMetricsHdr(buf []byte) (DeviceMetricsHdr, error) {
	if len(buf) < DeviceMetricsHdrSize {
		return DeviceMetricsHdr{}, fmt.Errorf("device metrics header: %w", ErrMalformedFrame)
	}
	return DeviceMetricsHdr{
		Frequency:    getFloat64(buf[1:9]),
		Voltage:      getFloat64(buf[9:17]),
		Busy:         buf[17] != 0,
		QueueLength:  binary.BigEndian.Uint32(buf[18:22]),
		CurrentPower: getFloat64(buf[22:30]),
	}, nil
}

// ScalingCmdHdr carries a DVFS command from the orchestrator to a backend. 17 bytes.
type ScalingCmdHdr struct {
	TargetFrequency float64
	TargetVoltage   float64
}

const ScalingCmdHdrSize = 17

func (h ScalingCmdHdr) Marshal() []byte {
	buf := make([]byte, ScalingCmdHdrSize)
	buf[0] = MsgScalingCommand
	putFloat64(buf[1:9], h.TargetFrequency)
	putFloat64(buf[9:17], h.TargetVoltage)
	return buf
}

func UnmarshalScalingCmdHdr(buf []byte) (ScalingCmdHdr, error) {
	if len(buf) < ScalingCmdHdrSize {
		return ScalingCmdHdr{}, fmt.Errorf("scaling command header: %w", ErrMalformedFrame)
	}
	return ScalingCmdHdr{
		TargetFrequency: getFloat64(buf[1:9]),
		TargetVoltage:   getFloat64(buf[9:17]),
	}, nil
}
