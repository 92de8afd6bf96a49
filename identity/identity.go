// Package identity manages the local account: a persistent Ed25519 keypair
// and the wallet-address-shaped identifier derived from it.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const (
	privatePEMType = "ED25519 PRIVATE KEY"
	publicPEMType  = "ED25519 PUBLIC KEY"

	// addressBytes is the identifier length, matching the wallet-address
	// shape peers expect (20 bytes, 0x-prefixed hex).
	addressBytes = 20
)

// Identity is the loaded local account.
type Identity struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	// Address is the stable identifier published with every envelope.
	Address string
}

// Ensure loads the keypair from disk, generating it on first run, and
// derives the address.
func Ensure(privatePath, publicPath string) (*Identity, error) {
	privateKey, publicKey, err := ensureKeyPair(privatePath, publicPath)
	if err != nil {
		return nil, err
	}
	return &Identity{
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		Address:    DeriveAddress(publicKey),
	}, nil
}

// Sign signs a payload with the account key.
func (i *Identity) Sign(payload []byte) []byte {
	return ed25519.Sign(i.PrivateKey, payload)
}

// DeriveAddress maps a public key to its 0x-prefixed identifier: the last
// 20 bytes of the key's SHA-256 digest.
func DeriveAddress(publicKey ed25519.PublicKey) string {
	sum := sha256.Sum256(publicKey)
	return "0x" + hex.EncodeToString(sum[len(sum)-addressBytes:])
}

// ShortAddress truncates an address for display: "0x1234…abcd".
func ShortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func ensureKeyPair(privatePath, publicPath string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	privateKey, err := loadPrivateKey(privatePath)
	if err == nil {
		publicKey := privateKey.Public().(ed25519.PublicKey)

		storedPublic, pubErr := loadPublicKey(publicPath)
		if pubErr != nil || !bytes.Equal(storedPublic, publicKey) {
			if err := savePublicKey(publicPath, publicKey); err != nil {
				return nil, nil, err
			}
		}

		return privateKey, publicKey, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate account keypair: %w", err)
	}

	if err := savePrivateKey(privatePath, privateKey); err != nil {
		return nil, nil, err
	}
	if err := savePublicKey(publicPath, publicKey); err != nil {
		return nil, nil, err
	}

	return privateKey, publicKey, nil
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read account private key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode account private PEM: no PEM block")
	}
	if block.Type != privatePEMType {
		return nil, fmt.Errorf("decode account private PEM: unexpected type %q", block.Type)
	}
	if len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("decode account private PEM: invalid key size %d", len(block.Bytes))
	}

	return ed25519.PrivateKey(block.Bytes), nil
}

func loadPublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read account public key: %w", err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("decode account public PEM: no PEM block")
	}
	if block.Type != publicPEMType {
		return nil, fmt.Errorf("decode account public PEM: unexpected type %q", block.Type)
	}
	if len(block.Bytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("decode account public PEM: invalid key size %d", len(block.Bytes))
	}

	return ed25519.PublicKey(block.Bytes), nil
}

func savePrivateKey(path string, key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return fmt.Errorf("save account private key: invalid key size %d", len(key))
	}

	block := &pem.Block{
		Type:  privatePEMType,
		Bytes: key,
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write account private key: %w", err)
	}

	return nil
}

func savePublicKey(path string, key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("save account public key: invalid key size %d", len(key))
	}

	block := &pem.Block{
		Type:  publicPEMType,
		Bytes: key,
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o644); err != nil {
		return fmt.Errorf("write account public key: %w", err)
	}

	return nil
}
