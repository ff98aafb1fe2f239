package audit

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surulere15/CONTINUUM-sub000/pkg/artifacts"
	"github.com/surulere15/CONTINUUM-sub000/pkg/keyring"
)

// BundleVersion is the export format version.
const BundleVersion = "1"

var ErrBundle = errors.New("invalid audit bundle")

// Bundle is a signed, self-contained export of the full chain.
type Bundle struct {
	BundleID   string    `json:"bundle_id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	EntryCount int       `json:"entry_count"`
	Head       string    `json:"head"`
	Entries    []Entry   `json:"entries"`
	KeyID      string    `json:"key_id"`
	Signature  string    `json:"signature,omitempty"`
}

// signable is everything in a Bundle except its signature.
func (b *Bundle) signable() Bundle {
	c := *b
	c.Signature = ""
	return c
}

// Export verifies the chain and returns a bundle signed by signer.
func (l *Log) Export(ctx context.Context, signer *keyring.Keyring) (*Bundle, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signing key", ErrBundle)
	}
	if err := l.VerifyChain(ctx); err != nil {
		return nil, err
	}
	entries := l.Entries()
	b := &Bundle{
		BundleID:   uuid.New().String(),
		Version:    BundleVersion,
		CreatedAt:  l.clock().UTC(),
		EntryCount: len(entries),
		Head:       GenesisHash,
		Entries:    entries,
		KeyID:      signer.KeyID(),
	}
	if n := len(entries); n > 0 {
		b.Head = entries[n-1].EntryHash
	}
	sig, err := signer.Sign(b.signable())
	if err != nil {
		return nil, fmt.Errorf("failed to sign bundle: %w", err)
	}
	b.Signature = base64.StdEncoding.EncodeToString(sig)
	l.logger.InfoContext(ctx, "audit bundle exported", "bundle_id", b.BundleID, "entries", b.EntryCount, "head", b.Head)
	return b, nil
}

// VerifyBundle checks the signature against trusted and recomputes the
// chain. It trusts nothing inside the bundle except what it verifies.
func VerifyBundle(b *Bundle, trusted ed25519.PublicKey) error {
	if b == nil {
		return fmt.Errorf("%w: nil bundle", ErrBundle)
	}
	if b.KeyID != keyring.KeyID(trusted) {
		return fmt.Errorf("%w: signed by key %s, expected %s", ErrBundle, b.KeyID, keyring.KeyID(trusted))
	}
	sig, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature encoding: %v", ErrBundle, err)
	}
	if err := keyring.Verify(trusted, b.signable(), sig); err != nil {
		return fmt.Errorf("%w: %w", ErrBundle, err)
	}
	if b.EntryCount != len(b.Entries) {
		return fmt.Errorf("%w: entry_count %d but %d entries", ErrBundle, b.EntryCount, len(b.Entries))
	}
	head, err := VerifyEntries(b.Entries)
	if err != nil {
		return err
	}
	if head != b.Head {
		return fmt.Errorf("%w: head %s does not match chain %s", ErrBundle, b.Head, head)
	}
	return nil
}

// Archive stores b in store and returns its content reference.
func Archive(ctx context.Context, store artifacts.Store, b *Bundle) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("failed to encode bundle: %w", err)
	}
	return store.Put(ctx, data)
}

// Retrieve loads an archived bundle. Callers must still VerifyBundle.
func Retrieve(ctx context.Context, store artifacts.Store, ref string) (*Bundle, error) {
	data, err := store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundle, err)
	}
	return &b, nil
}
