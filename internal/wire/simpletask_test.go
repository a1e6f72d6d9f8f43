package wire

import "testing"

func TestSimpleTaskMetaRoundTrip(t *testing.T) {
	r := SimpleTaskRecord{
		MsgType:       MsgTaskRequest,
		TaskID:        99,
		ComputeDemand: 1.5e9,
		InputSize:     1024,
		OutputSize:    2048,
		HasDeadline:   true,
		Deadline:      12.5,
		HasAccel:      true,
		AccelType:     "GPU",
	}
	buf := r.MarshalMeta()
	got, n, err := UnmarshalSimpleTaskMeta(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestSimpleTaskMetaNoDeadlineNoAccel(t *testing.T) {
	r := SimpleTaskRecord{MsgType: MsgTaskResponse, TaskID: 1, ComputeDemand: 1, InputSize: 0, OutputSize: 5}
	buf := r.MarshalMeta()
	got, n, err := UnmarshalSimpleTaskMeta(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if got != r {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestSimpleTaskMetaShortBufferWaits(t *testing.T) {
	r := SimpleTaskRecord{MsgType: MsgTaskRequest, TaskID: 1, HasAccel: true, AccelType: "TPU"}
	buf := r.MarshalMeta()
	_, n, err := UnmarshalSimpleTaskMeta(buf[:len(buf)-1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("consumed = %d, want 0 (need more bytes)", n)
	}
}

func TestSimpleTaskFullRequestPayload(t *testing.T) {
	r := SimpleTaskRecord{MsgType: MsgTaskRequest, TaskID: 5, InputSize: 4, OutputSize: 0}
	payload := []byte{1, 2, 3, 4}
	buf := r.MarshalFull(payload)
	gotRec, gotPayload, n, err := UnmarshalSimpleTaskFull(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if gotRec != r {
		t.Fatalf("record mismatch: got %+v, want %+v", gotRec, r)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch: got %v, want %v", gotPayload, payload)
	}
}

func TestSimpleTaskFullResponsePayload(t *testing.T) {
	r := SimpleTaskRecord{MsgType: MsgTaskResponse, TaskID: 5, InputSize: 4, OutputSize: 3}
	payload := []byte{9, 8, 7}
	buf := r.MarshalFull(payload)
	_, gotPayload, n, err := UnmarshalSimpleTaskFull(buf)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch: got %v, want %v", gotPayload, payload)
	}
}

func TestSimpleTaskFullWaitsForPayload(t *testing.T) {
	r := SimpleTaskRecord{MsgType: MsgTaskRequest, TaskID: 5, InputSize: 10}
	buf := r.MarshalFull(make([]byte, 10))
	_, _, n, err := UnmarshalSimpleTaskFull(buf[:len(buf)-1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("consumed = %d, want 0", n)
	}
}
