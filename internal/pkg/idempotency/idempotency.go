// Package idempotency deduplicates retried requests with a Redis state machine.
//
// A key moves from in_progress to completed (with the stored response) or to
// failed. A completed key replays the stored response; a failed key lets the
// caller retry once the lock has been released.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("operation already in progress")
	ErrInvalidState      = errors.New("invalid idempotency state")
)

type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = 10 * time.Minute

	keyPrefix    = "idempotency:"
	resultSuffix = ":result"
)

// Idempotency runs fn at most once per key while the stored state lives.
type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) ([]byte, error), opts ...Option) ([]byte, error)
}

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration bounds how long an in-flight call blocks duplicates.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL controls how long a completed response is replayed.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// StateTracker implements Idempotency on Redis.
type StateTracker struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *StateTracker {
	return &StateTracker{client: client}
}

// Acquire claims key for lockDuration. StateNone means the caller owns the key.
// A failed key is claimed again so the operation can be retried.
func (s *StateTracker) Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error) {
	fk := keyPrefix + key

	ok, err := s.client.SetNX(ctx, fk, string(StateInProgress), lockDuration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return StateNone, nil
	}

	current, err := s.client.Get(ctx, fk).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET
		return s.Acquire(ctx, key, lockDuration)
	case err != nil:
		return "", err
	}

	switch State(current) {
	case StateInProgress, StateCompleted:
		return State(current), nil
	case StateFailed:
		swapped, err := s.client.SetXX(ctx, fk, string(StateInProgress), lockDuration).Result()
		if err != nil {
			return "", err
		}
		if swapped {
			return StateNone, nil
		}
		return StateInProgress, nil
	default:
		return "", ErrInvalidState
	}
}

// Exec runs fn under key. A replay of a completed key returns the stored
// response without calling fn. Once fn succeeds its result is returned even
// when storing it fails.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) ([]byte, error), opts ...Option) ([]byte, error) {
	o := &execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}

	state, err := s.Acquire(ctx, key, o.lockDuration)
	if err != nil {
		return nil, err
	}

	switch state {
	case StateInProgress:
		return nil, ErrAlreadyInProgress
	case StateCompleted:
		return s.client.Get(ctx, keyPrefix+key+resultSuffix).Bytes()
	}

	result, err := fn(ctx)
	if err != nil {
		if markErr := s.client.Set(ctx, keyPrefix+key, string(StateFailed), o.stateTTL).Err(); markErr != nil {
			return nil, errors.Join(err, markErr)
		}
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, keyPrefix+key+resultSuffix, result, o.stateTTL)
		p.Set(ctx, keyPrefix+key, string(StateCompleted), o.stateTTL)
		return nil
	})
	if err != nil {
		// fn already ran; the in_progress lock expires on its own and a retry
		// then runs fn again.
		slog.ErrorContext(ctx, "failed to store idempotent result", "key", key, "error", err)
	}

	return result, nil
}
