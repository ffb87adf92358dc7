package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefixAttempts = "otp:attempts:"

var releaseScript = redis.NewScript(`
local n = redis.call('GET', KEYS[1])
if n and tonumber(n) > 0 then
	return redis.call('DECR', KEYS[1])
end
return 0
`)

// Limiter keeps validation attempt counters in Redis so every instance sees the
// same lockout state. The window starts at the first reserved attempt.
type Limiter struct {
	client redis.UniversalClient
	ins    instrument.Instrumentation
}

func NewLimiter(client redis.UniversalClient, ins instrument.Instrumentation) *Limiter {
	return &Limiter{client: client, ins: ins}
}

func (l *Limiter) Attempts(ctx context.Context, subject string) (_ int, err error) {
	ctx, span := l.startSpan(ctx, "Attempts")
	defer func() { l.endSpan(span, err) }()

	n, err := l.client.Get(ctx, keyPrefixAttempts+subject).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return n, nil
}

// Reserve counts one attempt and returns the count including it. INCR makes the
// check and the increment one step for concurrent validations.
func (l *Limiter) Reserve(ctx context.Context, subject string, window time.Duration) (_ int, err error) {
	ctx, span := l.startSpan(ctx, "Reserve")
	defer func() { l.endSpan(span, err) }()

	key := keyPrefixAttempts + subject
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return int(incr.Val()), nil
}

// Release gives back one reserved attempt without going below zero.
func (l *Limiter) Release(ctx context.Context, subject string) (err error) {
	ctx, span := l.startSpan(ctx, "Release")
	defer func() { l.endSpan(span, err) }()

	return releaseScript.Run(ctx, l.client, []string{keyPrefixAttempts + subject}).Err()
}

func (l *Limiter) ResetFailures(ctx context.Context, subject string) (err error) {
	ctx, span := l.startSpan(ctx, "ResetFailures")
	defer func() { l.endSpan(span, err) }()

	return l.client.Del(ctx, keyPrefixAttempts+subject).Err()
}

func (l *Limiter) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return l.ins.Tracer("otp.outbound.cache").Start(ctx, name)
}

func (l *Limiter) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
