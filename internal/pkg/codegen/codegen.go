// Package codegen produces fixed length numeric one-time codes.
package codegen

import (
	"crypto/rand"
	"errors"
	"math/big"
	mrand "math/rand/v2"
	"strings"
)

// ErrInvalidLength is returned for lengths outside [MinLength, MaxLength].
var ErrInvalidLength = errors.New("codegen: length out of range")

const (
	MinLength = 4
	MaxLength = 10
)

const (
	KindCrypto = "crypto"
	KindMath   = "math"
)

// Generator returns a string of exactly length decimal digits. Leading zeros are kept.
type Generator interface {
	Generate(length int) (string, error)
}

// New returns the generator for kind, defaulting to Crypto for unknown values.
func New(kind string) Generator {
	if strings.EqualFold(strings.TrimSpace(kind), KindMath) {
		return Math{}
	}
	return Crypto{}
}

// Crypto draws each digit from crypto/rand.
type Crypto struct{}

func (Crypto) Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrInvalidLength
	}

	ten := big.NewInt(10)
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

// Math is a fast, predictable generator for local development only.
type Math struct{}

func (Math) Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrInvalidLength
	}

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = byte('0' + mrand.IntN(10))
	}
	return string(buf), nil
}
