package entity

import "time"

const (
	MinCodeLength = 4
	MaxCodeLength = 10
)

// Config is the global issuance policy. There is exactly one row.
type Config struct {
	CodeLength            int
	LifetimeMinutes       int
	MaxAttempts           int
	ResendEnabled         bool
	ResendIntervalSeconds int
	UpdatedAt             time.Time
}

func DefaultConfig() Config {
	return Config{
		CodeLength:            6,
		LifetimeMinutes:       15,
		MaxAttempts:           3,
		ResendEnabled:         true,
		ResendIntervalSeconds: 10,
	}
}

func (c Config) Lifetime() time.Duration {
	return time.Duration(c.LifetimeMinutes) * time.Minute
}

func (c Config) ResendInterval() time.Duration {
	return time.Duration(c.ResendIntervalSeconds) * time.Second
}

// ConfigUpdate carries optional changes. Nil fields are left alone.
type ConfigUpdate struct {
	CodeLength            *int
	LifetimeMinutes       *int
	MaxAttempts           *int
	ResendEnabled         *bool
	ResendIntervalSeconds *int
}

// Sanitize drops every field that is out of range, so applying the result can
// never produce an invalid Config.
func (u ConfigUpdate) Sanitize() ConfigUpdate {
	out := u
	if out.CodeLength != nil && (*out.CodeLength < MinCodeLength || *out.CodeLength > MaxCodeLength) {
		out.CodeLength = nil
	}
	if out.LifetimeMinutes != nil && *out.LifetimeMinutes <= 0 {
		out.LifetimeMinutes = nil
	}
	if out.MaxAttempts != nil && *out.MaxAttempts < 0 {
		out.MaxAttempts = nil
	}
	if out.ResendIntervalSeconds != nil && *out.ResendIntervalSeconds < 0 {
		out.ResendIntervalSeconds = nil
	}
	return out
}

func (u ConfigUpdate) IsEmpty() bool {
	return u.CodeLength == nil && u.LifetimeMinutes == nil && u.MaxAttempts == nil &&
		u.ResendEnabled == nil && u.ResendIntervalSeconds == nil
}

// Apply returns c with the non-nil fields of u. Callers sanitize u first.
func (u ConfigUpdate) Apply(c Config) Config {
	if u.CodeLength != nil {
		c.CodeLength = *u.CodeLength
	}
	if u.LifetimeMinutes != nil {
		c.LifetimeMinutes = *u.LifetimeMinutes
	}
	if u.MaxAttempts != nil {
		c.MaxAttempts = *u.MaxAttempts
	}
	if u.ResendEnabled != nil {
		c.ResendEnabled = *u.ResendEnabled
	}
	if u.ResendIntervalSeconds != nil {
		c.ResendIntervalSeconds = *u.ResendIntervalSeconds
	}
	return c
}
