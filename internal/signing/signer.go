// Package signing binds a score result to its exact field values with an
// HMAC-SHA256 tag so clients can detect tampering.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/Bursary/internal/canon"
)

// DevFallbackSecret is used when no signing secret is configured. Signatures
// made with it are forgeable by anyone and must not be trusted in production.
const DevFallbackSecret = "change-me"

// KeySource says where the signing key came from.
type KeySource string

const (
	KeyConfigured  KeySource = "configured"
	KeyDevFallback KeySource = "dev-fallback"
)

// Payload is the signed part of a result.
type Payload struct {
	Decision string
	Index    float64
	Version  string
}

// Canonical serialises p as compact JSON with keys in lexicographic order.
// The index is written in its shortest round-trip form with a mandatory
// fractional part, so 40 is always "40.0".
func Canonical(p Payload) []byte {
	var b strings.Builder
	b.WriteString(`{"decision":`)
	b.WriteString(canon.Quote(p.Decision))
	b.WriteString(`,"index":`)
	b.WriteString(formatIndex(p.Index))
	b.WriteString(`,"version":`)
	b.WriteString(canon.Quote(p.Version))
	b.WriteByte('}')
	return []byte(b.String())
}

func formatIndex(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return canon.Float(f)
}

// Signer computes and checks result signatures. It is immutable and safe
// for concurrent use.
type Signer struct {
	key    []byte
	source KeySource
}

// NewSigner builds a Signer from secret. An empty secret falls back to
// DevFallbackSecret and is reported by KeySource.
func NewSigner(secret string) *Signer {
	if secret == "" {
		return &Signer{key: []byte(DevFallbackSecret), source: KeyDevFallback}
	}
	return &Signer{key: []byte(secret), source: KeyConfigured}
}

// KeySource reports whether the signer runs on a configured secret.
func (s *Signer) KeySource() KeySource { return s.source }

// Sign returns the lowercase hex HMAC-SHA256 of the canonical payload.
func (s *Signer) Sign(p Payload) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(Canonical(p))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches p.
func (s *Signer) Verify(p Payload, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(Canonical(p))
	return hmac.Equal(got, mac.Sum(nil))
}
