package access

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	kitVersion    = 1
	ritualKeySize = 32
)

// kit is the serialized form of an encrypted payload plus its bound
// condition, the local analog of a threshold message kit.
type kit struct {
	Version    int    `json:"version"`
	RitualID   string `json:"ritualId"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Condition  string `json:"condition"`
}

// RitualCodec is a self-contained Codec standing in for the external
// threshold-decryption service. Key material derives deterministically from
// the (public) domain and ritual identifiers, so every client of the same
// ritual can decrypt; access control comes from the condition evaluation
// performed before any key is derived. It provides the service's contract,
// not its trust model.
type RitualCodec struct {
	domain   string
	ritualID string

	// now is injectable so tests can move time locks around.
	now func() time.Time
}

// NewRitualCodec creates a codec bound to one domain and ritual.
func NewRitualCodec(domain, ritualID string) (*RitualCodec, error) {
	if domain == "" {
		return nil, errors.New("access: ritual domain is required")
	}
	if ritualID == "" {
		return nil, errors.New("access: ritual ID is required")
	}
	return &RitualCodec{domain: domain, ritualID: ritualID, now: time.Now}, nil
}

// Encrypt seals plaintext under a key bound to the condition and returns the
// serialized kit. The caller must hold a connected identity.
func (rc *RitualCodec) Encrypt(_ context.Context, plaintext []byte, condition Condition, identity IdentityContext) ([]byte, error) {
	if identity.Address == "" {
		return nil, ErrNoIdentity
	}
	serialized, err := condition.Marshal()
	if err != nil {
		return nil, err
	}

	salt := make([]byte, ritualKeySize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate kit salt: %w", err)
	}

	aead, err := rc.openAEAD(salt, serialized)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate kit nonce: %w", err)
	}

	sealed := kit{
		Version:    kitVersion,
		RitualID:   rc.ritualID,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(serialized)),
		Condition:  serialized,
	}

	raw, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("marshal kit: %w", err)
	}
	return raw, nil
}

// Decrypt evaluates the kit's condition against the identity and, only if
// satisfied, recovers the plaintext.
func (rc *RitualCodec) Decrypt(ctx context.Context, kitBytes []byte, identity IdentityContext) ([]byte, error) {
	var sealed kit
	if err := json.Unmarshal(kitBytes, &sealed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKit, err)
	}
	if sealed.Version != kitVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformedKit, sealed.Version)
	}
	if sealed.RitualID != rc.ritualID {
		return nil, fmt.Errorf("%w: kit sealed for ritual %q", ErrMalformedKit, sealed.RitualID)
	}

	condition, err := ParseCondition(sealed.Condition)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKit, err)
	}
	if err := EvaluateCondition(ctx, condition, identity, rc.now()); err != nil {
		return nil, err
	}

	aead, err := rc.openAEAD(sealed.Salt, sealed.Condition)
	if err != nil {
		return nil, err
	}
	if len(sealed.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: invalid nonce length %d", ErrMalformedKit, len(sealed.Nonce))
	}

	plaintext, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, []byte(sealed.Condition))
	if err != nil {
		return nil, fmt.Errorf("%w: open ciphertext: %v", ErrMalformedKit, err)
	}
	return plaintext, nil
}

// openAEAD derives the AES-256-GCM key for one kit. The serialized condition
// participates in the derivation so a tampered condition yields a useless key.
func (rc *RitualCodec) openAEAD(salt []byte, serializedCondition string) (cipher.AEAD, error) {
	secret := []byte("arc-ritual:" + rc.domain + ":" + rc.ritualID)
	reader := hkdf.New(sha256.New, secret, salt, []byte(serializedCondition))

	key := make([]byte, ritualKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive ritual key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}
