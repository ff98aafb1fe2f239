// Package keyring signs kernel artifacts (audit export bundles, seal
// records) with Ed25519 keys.
package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

var ErrInvalidSignature = errors.New("invalid signature")

// KeyProvider performs signing. Swap the in-memory backend for an HSM or
// KMS by implementing it.
type KeyProvider interface {
	Sign(msg []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// MemoryKeyProvider keeps the private key in process memory.
type MemoryKeyProvider struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewMemoryKeyProvider generates a fresh key pair.
func NewMemoryKeyProvider() (*MemoryKeyProvider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &MemoryKeyProvider{pub: pub, priv: priv}, nil
}

// NewMemoryKeyProviderFromSeed builds a deterministic key pair from a 32-byte seed.
func NewMemoryKeyProviderFromSeed(seed []byte) (*MemoryKeyProvider, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &MemoryKeyProvider{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// NewMemoryKeyProviderFromBase64 decodes a standard-base64 seed.
func NewMemoryKeyProviderFromBase64(encoded string) (*MemoryKeyProvider, error) {
	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return NewMemoryKeyProviderFromSeed(seed)
}

func (m *MemoryKeyProvider) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(m.priv, msg), nil
}

func (m *MemoryKeyProvider) PublicKey() ed25519.PublicKey {
	return m.pub
}

// Keyring signs canonical JSON encodings through a KeyProvider.
type Keyring struct {
	provider KeyProvider
}

// New wraps p. A nil provider gets a fresh in-memory key.
func New(p KeyProvider) (*Keyring, error) {
	if p == nil {
		mp, err := NewMemoryKeyProvider()
		if err != nil {
			return nil, err
		}
		p = mp
	}
	return &Keyring{provider: p}, nil
}

// Sign signs the RFC 8785 encoding of data.
func (k *Keyring) Sign(data any) ([]byte, error) {
	msg, err := canonicalize.JCS(data)
	if err != nil {
		return nil, err
	}
	return k.provider.Sign(msg)
}

// PublicKey returns the verification key.
func (k *Keyring) PublicKey() ed25519.PublicKey {
	return k.provider.PublicKey()
}

// KeyID is a short, stable identifier for the public key.
func (k *Keyring) KeyID() string {
	return KeyID(k.PublicKey())
}

// KeyID is a short, stable identifier for pub.
func KeyID(pub ed25519.PublicKey) string {
	return canonicalize.ShortID(canonicalize.HashBytes(pub), 16)
}

// Verify checks sig over the RFC 8785 encoding of data.
func Verify(pub ed25519.PublicKey, data any, sig []byte) error {
	msg, err := canonicalize.JCS(data)
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Derive returns a purpose-bound Keyring using HKDF-SHA256 over the master
// seed, so one root key can serve several signing roles deterministically.
func (k *Keyring) Derive(purpose string) (*Keyring, error) {
	if purpose == "" {
		return nil, fmt.Errorf("purpose must not be empty")
	}
	master, ok := k.provider.(*MemoryKeyProvider)
	if !ok {
		return nil, fmt.Errorf("key derivation requires MemoryKeyProvider")
	}

	r := hkdf.New(sha256.New, master.priv.Seed(), []byte("continuum-kernel-kdf"), []byte(purpose))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}
	derived, err := NewMemoryKeyProviderFromSeed(seed)
	if err != nil {
		return nil, err
	}
	return &Keyring{provider: derived}, nil
}
