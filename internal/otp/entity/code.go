package entity

import "time"

// Code is one issued one-time code.
//
// Value holds the stored form: the plaintext digits, or their HMAC digest when
// code hashing is enabled. OperationID is empty when the code is not bound to an
// operation. UsedAt is set exactly when Status is StatusUsed.
type Code struct {
	ID          int64
	Subject     string
	Value       string
	OperationID string
	Status      Status
	Channel     Channel
	Address     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
}

// ExpiredAt reports whether the code is past its expiry at now. A code is still
// valid at exactly ExpiresAt.
func (c Code) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
