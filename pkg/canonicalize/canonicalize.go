// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and the digest helpers used for every content hash in the
// kernel: objective hashes, canon seals, intent ids and audit chain links.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// Separator joins fields in pipe-delimited digests.
const Separator = "|"

// JCS returns the RFC 8785 canonical JSON representation of v.
// Struct tags are honoured by the initial marshal; key order, number
// formatting and escaping are then fixed by the JCS transform.
func JCS(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return out, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON representation of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes SHA-256 hash of raw bytes and returns hex string
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString is HashBytes over a UTF-8 string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// FieldHash digests fields joined with Separator. Field order is significant.
func FieldHash(fields ...string) string {
	return HashString(strings.Join(fields, Separator))
}

// ShortID truncates a hex digest to n characters for use as a compact id.
func ShortID(digest string, n int) string {
	if len(digest) <= n {
		return digest
	}
	return digest[:n]
}
