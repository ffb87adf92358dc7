package mq

import (
	"context"
	"encoding/json"

	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/messaging"
	"github.com/shandysiswandi/onetime/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Messaging
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Messaging, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishIssued(ctx context.Context, msg usecase.IssuedEvent) error {
	return m.publish(ctx, "PublishIssued", event.OTPIssuedDestination, msg.Subject, event.OTPIssuedMessage{
		CodeID:      msg.CodeID,
		Subject:     msg.Subject,
		Channel:     msg.Channel.String(),
		OperationID: msg.OperationID,
		Delivered:   msg.Delivered,
		ExpiresAt:   msg.ExpiresAt,
	})
}

func (m *Messaging) PublishValidated(ctx context.Context, msg usecase.ValidatedEvent) error {
	return m.publish(ctx, "PublishValidated", event.OTPValidatedDestination, msg.Subject, event.OTPValidatedMessage{
		Subject:     msg.Subject,
		OperationID: msg.OperationID,
		Valid:       msg.Valid,
		Reason:      string(msg.Reason),
	})
}

func (m *Messaging) PublishResent(ctx context.Context, msg usecase.ResentEvent) error {
	return m.publish(ctx, "PublishResent", event.OTPResentDestination, msg.Subject, event.OTPResentMessage{
		PriorCodeID: msg.PriorCodeID,
		CodeID:      msg.CodeID,
		Subject:     msg.Subject,
		OperationID: msg.OperationID,
		Delivered:   msg.Delivered,
	})
}

func (m *Messaging) PublishSwept(ctx context.Context, msg usecase.SweptEvent) error {
	return m.publish(ctx, "PublishSwept", event.OTPSweptDestination, "", event.OTPSweptMessage{
		Count: msg.Count,
		At:    msg.At,
	})
}

// publish keys messages by subject so brokers that partition keep one
// subject's events in order.
func (m *Messaging) publish(ctx context.Context, op, destination, key string, payload any) error {
	ctx, span := m.ins.Tracer("otp.outbound.mq").Start(ctx, op)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	out := messaging.OutgoingMessage{
		Body:    body,
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}
	if key != "" {
		out.Key = []byte(key)
	}

	if _, err := m.client.Publish(ctx, destination, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
