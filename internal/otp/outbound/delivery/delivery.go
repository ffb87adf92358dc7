// Package delivery sends plaintext codes to their destination through one
// transport per channel.
package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Transport delivers one code to one address. Errors are retried by the
// Dispatcher.
type Transport interface {
	Send(ctx context.Context, address, code string) error
}

type Config struct {
	Transports map[entity.Channel]Transport
	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint64
	// Backoff is the first delay, doubled on every retry.
	Backoff    time.Duration
	Instrument instrument.Instrumentation
}

type Dispatcher struct {
	transports map[entity.Channel]Transport
	maxRetries uint64
	backoff    time.Duration
	ins        instrument.Instrumentation
}

func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}

	d := &Dispatcher{
		transports: lo.PickBy(cfg.Transports, func(_ entity.Channel, t Transport) bool { return t != nil }),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		ins:        cfg.Instrument,
	}

	slog.Info("otp delivery channels ready", "channels", lo.Map(lo.Keys(d.transports), func(c entity.Channel, _ int) string {
		return c.String()
	}))

	return d
}

// Deliver reports whether the code reached the transport. It never returns an
// error: a failed delivery leaves the issued code untouched.
func (d *Dispatcher) Deliver(ctx context.Context, channel entity.Channel, address, code string) bool {
	ctx, span := d.ins.Tracer("otp.outbound.delivery").Start(ctx, "Deliver")
	defer span.End()

	masked := entity.MaskAddress(channel, address)
	span.SetAttributes(attribute.String("channel", channel.String()))

	transport, ok := d.transports[channel]
	if !ok {
		slog.WarnContext(ctx, "no transport for channel", "channel", channel.String(), "destination", masked)
		span.SetStatus(codes.Error, "no transport")
		return false
	}

	b := retry.NewExponential(d.backoff)
	b = retry.WithCappedDuration(5*time.Second, b)
	b = retry.WithMaxRetries(d.maxRetries, b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := transport.Send(ctx, address, code); err != nil {
			slog.WarnContext(ctx, "failed to send code", "channel", channel.String(), "destination", masked, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "failed to deliver code", "channel", channel.String(), "destination", masked, "attempts", attempt, "error", err)
		return false
	}

	slog.InfoContext(ctx, "code delivered", "channel", channel.String(), "destination", masked)
	return true
}
