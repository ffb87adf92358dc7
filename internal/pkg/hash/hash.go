package hash

// Hash produces a deterministic digest of a secret and verifies a candidate against it.
type Hash interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}
