// Package hash provides keyed digests for secrets that must be looked up by value.
//
// One-time codes are stored as an HMAC so a database read does not reveal the
// code, while equality lookups in SQL keep working because the digest is stable.
package hash
