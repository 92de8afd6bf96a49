package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EnvelopeVersion is the current envelope record version.
const EnvelopeVersion = 1

var (
	// ErrUnsupportedVersion indicates an envelope version mismatch.
	ErrUnsupportedVersion = errors.New("wire: unsupported envelope version")
	// ErrEmptyPayload indicates a zero-length transport payload.
	ErrEmptyPayload = errors.New("wire: empty payload")
)

// Envelope is the versioned record published on a topic. Content is an
// opaque ciphertext blob and Condition an opaque serialized policy string;
// neither is interpreted at this layer.
type Envelope struct {
	Version int `json:"version"`
	// Timestamp is the authoring time in milliseconds.
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"`
	Nickname  string `json:"nickname"`
	Content   []byte `json:"content"`
	Condition string `json:"condition,omitempty"`
}

// Validate checks the fields required of every envelope.
func (e Envelope) Validate() error {
	if e.Version != EnvelopeVersion {
		return fmt.Errorf("%w: got %d want %d", ErrUnsupportedVersion, e.Version, EnvelopeVersion)
	}
	if e.Timestamp <= 0 {
		return errors.New("wire: envelope timestamp must be > 0")
	}
	if e.Sender == "" {
		return errors.New("wire: envelope sender is required")
	}
	return nil
}

// Encode marshals an envelope for publication, stamping the current version.
func Encode(e Envelope) ([]byte, error) {
	e.Version = EnvelopeVersion
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return payload, nil
}

// Decode unmarshals and validates a received envelope payload.
func Decode(payload []byte) (Envelope, error) {
	if len(payload) == 0 {
		return Envelope{}, ErrEmptyPayload
	}
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// LocationPayload is the inner record carried encrypted inside a location
// envelope's content field.
type LocationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	IsLive    bool    `json:"isLive"`
	Timestamp int64   `json:"timestamp"`
}

// EncodeLocationPayload marshals the plaintext location record.
func EncodeLocationPayload(p LocationPayload) ([]byte, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal location payload: %w", err)
	}
	return payload, nil
}

// DecodeLocationPayload unmarshals a decrypted location record.
func DecodeLocationPayload(payload []byte) (LocationPayload, error) {
	var p LocationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return LocationPayload{}, fmt.Errorf("decode location payload: %w", err)
	}
	return p, nil
}
