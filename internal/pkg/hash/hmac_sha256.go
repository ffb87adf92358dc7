package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptySecret is returned when an HMAC hasher is built without a key.
var ErrEmptySecret = errors.New("hash: hmac secret must not be empty")

// HMACSHA256 produces hex encoded HMAC-SHA256 digests.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 returns a hasher keyed by secret.
func NewHMACSHA256(secret []byte) (*HMACSHA256, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &HMACSHA256{secret: secret}, nil
}

func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return s.sum(str), nil
}

// Verify compares in constant time.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	return hmac.Equal([]byte(hashed), s.sum(str))
}

func (s *HMACSHA256) sum(str string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(str))
	return []byte(hex.EncodeToString(mac.Sum(nil)))
}
