package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

var (
	ErrPubSubProjectIDRequired    = errors.New("messaging: pubsub project id is required")
	ErrPubSubTopicRequired        = errors.New("messaging: pubsub topic is required")
	ErrPubSubSubscriptionRequired = errors.New("messaging: pubsub subscription is required")
	ErrPubSubHandlerRequired      = errors.New("messaging: pubsub handler is required")
)

type PubSubConfig struct {
	ProjectID string
	// Client, when set, is used as is and ProjectID is ignored.
	Client        *pubsub.Client
	ClientOptions []option.ClientOption
}

// PubSub publishes with one cached publisher per topic and receives through
// subscriptions. Header keys are sent as attributes.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
	closed     bool
}

func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	client := cfg.Client
	if client == nil {
		if cfg.ProjectID == "" {
			return nil, ErrPubSubProjectIDRequired
		}

		var err error
		client, err = pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
		if err != nil {
			return nil, fmt.Errorf("messaging: pubsub new client: %w", err)
		}
	}

	return &PubSub{client: client, publishers: make(map[string]*pubsub.Publisher)}, nil
}

func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pubs := p.publishers
	p.publishers = nil
	p.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}
	return p.client.Close()
}

func (p *PubSub) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if destination == "" {
		return PublishResult{}, ErrPubSubTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	pub, err := p.publisher(destination)
	if err != nil {
		return PublishResult{}, err
	}

	attrs := make(map[string]string, len(msg.Attributes)+len(msg.Headers))
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	for _, h := range msg.Headers {
		if h.Key != "" {
			attrs[h.Key] = string(h.Value)
		}
	}

	id, err := pub.Publish(ctx, &pubsub.Message{
		Data:        msg.Body,
		Attributes:  attrs,
		OrderingKey: msg.OrderingKey,
	}).Get(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: pubsub publish: %w", err)
	}

	return PublishResult{MessageID: id, Topic: destination, Timestamp: time.Now()}, nil
}

func (p *PubSub) publisher(topic string) (*pubsub.Publisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, io.ErrClosedPipe
	}
	if pub, ok := p.publishers[topic]; ok {
		return pub, nil
	}
	pub := p.client.Publisher(topic)
	p.publishers[topic] = pub
	return pub, nil
}

// Consume receives from the subscription named by WithSubscription, or from
// source itself when the option is absent.
func (p *PubSub) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if source == "" {
		return ErrPubSubSubscriptionRequired
	}
	if handler == nil {
		return ErrPubSubHandlerRequired
	}

	co := newConsumeOptions(opts...)
	subscription := source
	if co.subscription != "" {
		subscription = co.subscription
	}

	sub := p.client.Subscriber(subscription)
	sub.ReceiveSettings.NumGoroutines = co.concurrency
	if co.maxInFlight > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = co.maxInFlight
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		wrapped := &pubSubMessage{topic: source, msg: m}
		_ = handle(ctx, DriverGooglePubSub, wrapped, &wrapped.responder, handler, co.autoAck)
	})
}

type pubSubMessage struct {
	responder
	topic string
	msg   *pubsub.Message
}

func (m *pubSubMessage) Body() []byte                  { return m.msg.Data }
func (m *pubSubMessage) Key() []byte                   { return []byte(m.msg.OrderingKey) }
func (m *pubSubMessage) Headers() []Header             { return nil }
func (m *pubSubMessage) Attributes() map[string]string { return m.msg.Attributes }
func (m *pubSubMessage) ID() string                    { return m.msg.ID }
func (m *pubSubMessage) Topic() string                 { return m.topic }
func (m *pubSubMessage) Timestamp() time.Time          { return m.msg.PublishTime }

func (m *pubSubMessage) Ack(context.Context) error {
	if m.claim() {
		m.msg.Ack()
	}
	return nil
}

func (m *pubSubMessage) Nack(context.Context) error {
	if m.claim() {
		m.msg.Nack()
	}
	return nil
}
