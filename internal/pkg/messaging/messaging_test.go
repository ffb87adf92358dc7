package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessage struct {
	responder
	headers []Header
	attrs   map[string]string
	acks    int
	nacks   int
}

func (m *fakeMessage) Body() []byte                  { return nil }
func (m *fakeMessage) Key() []byte                   { return nil }
func (m *fakeMessage) Headers() []Header             { return m.headers }
func (m *fakeMessage) Attributes() map[string]string { return m.attrs }
func (m *fakeMessage) ID() string                    { return "1" }
func (m *fakeMessage) Topic() string                 { return "t" }
func (m *fakeMessage) Timestamp() time.Time          { return time.Time{} }

func (m *fakeMessage) Ack(context.Context) error {
	if m.claim() {
		m.acks++
	}
	return nil
}

func (m *fakeMessage) Nack(context.Context) error {
	if m.claim() {
		m.nacks++
	}
	return nil
}

func TestHandle_AutoAck(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name      string
		autoAck   bool
		handler   Handler
		wantErr   error
		wantAcks  int
		wantNacks int
	}{
		{"ack on success", true, func(context.Context, Message) error { return nil }, nil, 1, 0},
		{"nack on error", true, func(context.Context, Message) error { return boom }, boom, 0, 1},
		{"manual mode", false, func(context.Context, Message) error { return nil }, nil, 0, 0},
		{"handler already acked", true, func(ctx context.Context, m Message) error { return m.Ack(ctx) }, nil, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMessage{}
			err := handle(ctx, "fake", m, &m.responder, tt.handler, tt.autoAck)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantAcks, m.acks)
			assert.Equal(t, tt.wantNacks, m.nacks)
		})
	}
}

func TestHandle_RecoversPanic(t *testing.T) {
	m := &fakeMessage{}
	err := handle(context.Background(), "fake", m, &m.responder, func(context.Context, Message) error {
		panic("kaboom")
	}, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, 1, m.nacks)
}

func TestHeaderValue(t *testing.T) {
	m := &fakeMessage{
		headers: []Header{{Key: "cID", Value: []byte("abc")}},
		attrs:   map[string]string{"other": "x"},
	}
	assert.Equal(t, "abc", HeaderValue(m, "cID"))
	assert.Equal(t, "x", HeaderValue(m, "other"))
	assert.Empty(t, HeaderValue(m, "missing"))
}

func TestNewConsumeOptions(t *testing.T) {
	co := newConsumeOptions(WithConcurrency(0), WithChannel("otp"), nil, WithAutoAck(true))
	assert.Equal(t, 1, co.concurrency)
	assert.Equal(t, "otp", co.channel)
	assert.True(t, co.autoAck)
}

func TestNewFromDriver(t *testing.T) {
	_, err := NewFromDriver(context.Background(), "rabbit", FactoryOptions{})
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = NewFromDriver(context.Background(), "kafka", FactoryOptions{})
	assert.ErrorIs(t, err, ErrKafkaBrokersRequired)

	_, err = NewFromDriver(context.Background(), " NATS ", FactoryOptions{})
	assert.ErrorIs(t, err, ErrNATSURLRequired)
}
