package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/shandysiswandi/onetime/internal/pkg/stacktrace"
)

// ErrUnsupported is returned when the selected broker lacks a feature, such as delayed delivery.
var ErrUnsupported = errors.New("messaging: unsupported operation")

// Messaging is a broker client that can publish and consume.
type Messaging interface {
	io.Closer
	Publisher
	Consumer
}

type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

type Consumer interface {
	// Consume blocks, delivering messages from source to handler until ctx ends.
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes one message. With auto-ack enabled a nil error acks the
// message and a non-nil error nacks it.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to publish.
type OutgoingMessage struct {
	Body []byte
	// Key selects the Kafka partition.
	Key     []byte
	Headers []Header
	// Attributes are Pub/Sub string attributes.
	Attributes  map[string]string
	OrderingKey string
	// Delay defers delivery where the broker supports it (NSQ).
	Delay time.Duration
}

type Header struct {
	Key   string
	Value []byte
}

// PublishResult carries whatever the broker reports back.
type PublishResult struct {
	MessageID string
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Message is a received message.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	ID() string
	Topic() string
	Timestamp() time.Time
	Ack(ctx context.Context) error
	Nack(ctx context.Context) error
}

// HeaderValue returns the first value for key, falling back to attributes.
func HeaderValue(msg Message, key string) string {
	for _, h := range msg.Headers() {
		if h.Key == key {
			return string(h.Value)
		}
	}
	if a, ok := msg.(interface{ Attributes() map[string]string }); ok {
		return a.Attributes()[key]
	}
	return ""
}

// responder makes Ack and Nack idempotent: only the first response reaches the broker.
type responder struct {
	done atomic.Bool
}

func (r *responder) claim() bool     { return !r.done.Swap(true) }
func (r *responder) responded() bool { return r.done.Load() }

// handle runs handler with panic recovery and applies auto-ack.
func handle(ctx context.Context, kind string, msg Message, r *responder, handler Handler, autoAck bool) error {
	herr := recovered(ctx, kind, func() error { return handler(ctx, msg) })
	if !autoAck || r.responded() {
		return herr
	}
	if herr != nil {
		return errors.Join(herr, msg.Nack(ctx))
	}
	return msg.Ack(ctx)
}

func recovered(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		rvr := recover()
		if rvr == nil {
			return
		}

		stack := debug.Stack()
		if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
			slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
		} else {
			slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
		}
		err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
	}()

	return fn()
}
