package inbound

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/messaging"
	"github.com/shandysiswandi/onetime/internal/pkg/uid"
	"github.com/shandysiswandi/onetime/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	for i := range headers {
		if headers[i].Key == keyOfCorrelationID && len(headers[i].Value) > 0 {
			return instrument.SetCorrelationID(ctx, string(headers[i].Value))
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// AccountDeleted drops every code of the deleted subject. Malformed messages are
// acknowledged and logged since redelivery cannot fix them.
func (h *MQHandler) AccountDeleted(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("otp.inbound.mq").Start(ctx, "AccountDeleted")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: account deleted", "msg_body", string(body))

	var payload event.AccountDeletedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of account deleted", "msg_body", string(body), "error", err)
		return nil
	}

	if strings.TrimSpace(payload.Subject) == "" {
		slog.WarnContext(ctx, "account deleted message without subject", "msg_body", string(body))
		return nil
	}

	if _, err := h.uc.DeleteAllFor(ctx, usecase.DeleteAllForInput{Subject: payload.Subject}); err != nil {
		slog.ErrorContext(ctx, "failed to delete codes of deleted account", "msg_body", string(body), "error", err)
		return err
	}

	return nil
}
