package transport

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// gossipVersion is the LAN mesh wire protocol version.
	gossipVersion = 1
	// maxFrameSize bounds one frame payload (4 MB).
	maxFrameSize = 4 * 1024 * 1024
)

const (
	frameTypeHello   = "hello"
	frameTypePublish = "publish"
)

var (
	// errFrameTooLarge indicates a frame payload over maxFrameSize.
	errFrameTooLarge = errors.New("transport: frame exceeds max size")
	// errUnsupportedGossip indicates a mesh protocol version mismatch.
	errUnsupportedGossip = errors.New("transport: unsupported mesh protocol version")
)

// helloFrame introduces a peer right after the TCP connect.
type helloFrame struct {
	Type        string `json:"type"`
	Version     int    `json:"version"`
	PeerID      string `json:"peer_id"`
	DisplayName string `json:"display_name"`
}

// publishFrame carries one topic payload across the mesh.
type publishFrame struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

type frameEnvelope struct {
	Type string `json:"type"`
}

func encodeFrame(message any) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal mesh frame: %w", err)
	}
	return payload, nil
}

func decodeFrame(payload []byte, message any) error {
	if err := json.Unmarshal(payload, message); err != nil {
		return fmt.Errorf("decode mesh frame: %w", err)
	}
	return nil
}

func frameType(payload []byte) (string, error) {
	var envelope frameEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", fmt.Errorf("decode mesh frame envelope: %w", err)
	}
	if envelope.Type == "" {
		return "", errors.New("transport: mesh frame type missing")
	}
	return envelope.Type, nil
}

// writeFrame writes one length-prefixed frame.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return errFrameTooLarge
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > maxFrameSize {
		return nil, errFrameTooLarge
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, int(length))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}
