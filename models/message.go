package models

import "strconv"

// DecryptionState tracks the lifecycle of a message's access-gated content.
type DecryptionState uint8

const (
	// DecryptionPending means a decrypt attempt is queued or in flight.
	DecryptionPending DecryptionState = iota
	// DecryptionSuccess means Content holds the recovered plaintext.
	DecryptionSuccess
	// DecryptionFailed means the last decrypt attempt was rejected; the
	// retained kit allows retry once the condition is satisfied.
	DecryptionFailed
)

// String returns a human-readable state name for logs and the UI stream.
func (s DecryptionState) String() string {
	switch s {
	case DecryptionPending:
		return "pending"
	case DecryptionSuccess:
		return "success"
	case DecryptionFailed:
		return "failed"
	default:
		return "invalid DecryptionState: " + strconv.Itoa(int(s))
	}
}

// MessageKey uniquely identifies a timeline entry.
//
// The authoring timestamp alone is not unique: two senders can share a
// millisecond, so dedup and self-echo classification key on the pair.
type MessageKey struct {
	Sender string
	ID     int64
}

// Message is one chat timeline entry.
type Message struct {
	// ID is the authoring timestamp in milliseconds. It doubles as the
	// timeline sort key and, with Sender, as the dedup key.
	ID             int64  `json:"id"`
	Sender         string `json:"sender"`
	SenderNickname string `json:"senderNickname"`

	// Content is the plaintext once known (immediately for self-authored
	// messages, after decryption for foreign ones); empty while pending.
	Content string `json:"content"`

	// Kit is the retained ciphertext envelope. It is kept even after a
	// successful decrypt so the content can be re-verified later.
	Kit []byte `json:"-"`

	// Condition is the serialized access condition attached at encryption
	// time. Empty means the message was never encrypted.
	Condition string `json:"condition,omitempty"`

	State DecryptionState `json:"state"`

	// Delivered is only meaningful for self-authored messages: it flips to
	// true when the transport echoes the publication back.
	Delivered bool `json:"delivered"`

	// Mine marks messages authored by the local identity.
	Mine bool `json:"mine"`
}

// Key returns the dedup key for the message.
func (m Message) Key() MessageKey {
	return MessageKey{Sender: m.Sender, ID: m.ID}
}

// Encrypted reports whether the message carried an access condition.
func (m Message) Encrypted() bool {
	return m.Condition != ""
}
