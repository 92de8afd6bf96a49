package transport

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	original := publishFrame{
		Type:    frameTypePublish,
		From:    "node-a",
		Topic:   "/arc-x/1/chat/json",
		Payload: []byte("payload"),
	}

	encoded, err := encodeFrame(original)
	if err != nil {
		t.Fatalf("encodeFrame returned error: %v", err)
	}

	var buf bytes.Buffer
	if err := writeFrame(&buf, encoded); err != nil {
		t.Fatalf("writeFrame returned error: %v", err)
	}

	read, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame returned error: %v", err)
	}

	kind, err := frameType(read)
	if err != nil {
		t.Fatalf("frameType returned error: %v", err)
	}
	if kind != frameTypePublish {
		t.Errorf("frame type = %q, want %q", kind, frameTypePublish)
	}

	var decoded publishFrame
	if err := decodeFrame(read, &decoded); err != nil {
		t.Fatalf("decodeFrame returned error: %v", err)
	}
	if decoded.From != original.From || decoded.Topic != original.Topic {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
	if string(decoded.Payload) != string(original.Payload) {
		t.Errorf("payload = %q, want %q", decoded.Payload, original.Payload)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, maxFrameSize+1)

	if err := writeFrame(&buf, oversized); !errors.Is(err, errFrameTooLarge) {
		t.Errorf("writeFrame error = %v, want errFrameTooLarge", err)
	}
}

func TestReadFrameRejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	if _, err := readFrame(&buf); !errors.Is(err, errFrameTooLarge) {
		t.Errorf("readFrame error = %v, want errFrameTooLarge", err)
	}
}

func TestFrameTypeRequiresType(t *testing.T) {
	if _, err := frameType([]byte(`{"from":"a"}`)); err == nil {
		t.Error("frameType of typeless frame succeeded, want error")
	}
	if _, err := frameType([]byte("{bad")); err == nil {
		t.Error("frameType of malformed frame succeeded, want error")
	}
}
