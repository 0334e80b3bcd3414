// Package signer computes and verifies the keyed hashes that bind a tracking
// identifier to a destination tail path. The digest is embedded in every
// issued URL; as long as the key is unchanged, already-issued URLs validate
// indefinitely.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

type Signer struct {
	key []byte
}

func New(key []byte) *Signer {
	return &Signer{key: key}
}

// Sign returns the lowercase hex HMAC-SHA256 digest over the identifier
// concatenated with the tail path. Callers must pass the normalized tail
// path (leading slash present, trailing slash stripped) or signatures will
// never agree between issue and verify time.
func (s *Signer) Sign(uuid, tailpath string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(uuid + tailpath))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the digest and compares it in constant time. A
// malformed, truncated or missing digest is an ordinary mismatch, never an
// error.
func (s *Signer) Verify(uuid, tailpath, digest string) bool {
	expected := s.Sign(uuid, tailpath)
	return hmac.Equal([]byte(expected), []byte(digest))
}
