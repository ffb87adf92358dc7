package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/messaging"
	"github.com/shandysiswandi/onetime/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	destination string
	msg         messaging.OutgoingMessage
}

type fakeBroker struct {
	out []published
	err error
}

func (f *fakeBroker) Close() error { return nil }

func (f *fakeBroker) Publish(_ context.Context, destination string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	f.out = append(f.out, published{destination: destination, msg: msg})
	return messaging.PublishResult{Topic: destination}, f.err
}

func (f *fakeBroker) Consume(context.Context, string, messaging.Handler, ...messaging.ConsumeOption) error {
	return nil
}

func TestMessaging_PublishIssued(t *testing.T) {
	broker := &fakeBroker{}
	m := NewMessaging(broker, instrument.NewNoop())
	ctx := instrument.SetCorrelationID(context.Background(), "cid-1")
	exp := time.Date(2026, 5, 4, 8, 15, 0, 0, time.UTC)

	require.NoError(t, m.PublishIssued(ctx, usecase.IssuedEvent{
		CodeID:      7,
		Subject:     "user1",
		Channel:     entity.ChannelEmail,
		OperationID: "op1",
		Delivered:   true,
		ExpiresAt:   exp,
	}))

	require.Len(t, broker.out, 1)
	got := broker.out[0]
	assert.Equal(t, event.OTPIssuedDestination, got.destination)
	assert.Equal(t, []byte("user1"), got.msg.Key)
	assert.Equal(t, []messaging.Header{{Key: "cID", Value: []byte("cid-1")}}, got.msg.Headers)

	var body map[string]any
	require.NoError(t, json.Unmarshal(got.msg.Body, &body))
	assert.Equal(t, "EMAIL", body["channel"])
	assert.Equal(t, "op1", body["operation_id"])
	assert.NotContains(t, body, "code")
	assert.NotContains(t, body, "value")
}

func TestMessaging_Destinations(t *testing.T) {
	broker := &fakeBroker{}
	m := NewMessaging(broker, instrument.NewNoop())
	ctx := context.Background()

	require.NoError(t, m.PublishValidated(ctx, usecase.ValidatedEvent{Subject: "user1", Reason: entity.ReasonExpired}))
	require.NoError(t, m.PublishResent(ctx, usecase.ResentEvent{Subject: "user1", PriorCodeID: 1, CodeID: 2}))
	require.NoError(t, m.PublishSwept(ctx, usecase.SweptEvent{Count: 4}))

	require.Len(t, broker.out, 3)
	assert.Equal(t, event.OTPValidatedDestination, broker.out[0].destination)
	assert.Equal(t, event.OTPResentDestination, broker.out[1].destination)
	assert.Equal(t, event.OTPSweptDestination, broker.out[2].destination)
	assert.Nil(t, broker.out[2].msg.Key)

	var validated event.OTPValidatedMessage
	require.NoError(t, json.Unmarshal(broker.out[0].msg.Body, &validated))
	assert.Equal(t, "expired", validated.Reason)
	assert.False(t, validated.Valid)
}

func TestMessaging_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	m := NewMessaging(&fakeBroker{err: boom}, instrument.NewNoop())

	assert.ErrorIs(t, m.PublishSwept(context.Background(), usecase.SweptEvent{Count: 1}), boom)
}
