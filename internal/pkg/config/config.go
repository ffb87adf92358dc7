package config

import (
	"io"
	"time"
)

// Config is the read-only view of runtime configuration used across the service.
//
// Implementations return the zero value for missing keys or values that cannot be
// converted, so callers are expected to validate what they read at startup.
type Config interface {
	io.Closer

	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetFloat64(key string) float64
	GetBool(key string) bool
	GetString(key string) string

	// GetBinary decodes a base64 encoded value.
	GetBinary(key string) []byte

	// GetArray splits a value stored as <element1>,<element2>,... into trimmed,
	// non-empty elements.
	GetArray(key string) []string

	// GetMap parses a value stored as <key1>:<value1>,<key2>:<value2>,...
	GetMap(key string) map[string]string

	// GetSecond, GetMinute and GetHour read an integer and scale it into a duration.
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration

	// IsSet reports whether the key exists in any configuration source.
	IsSet(key string) bool
}
