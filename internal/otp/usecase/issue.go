package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type IssueInput struct {
	Subject     string `validate:"required,max=255"`
	Channel     string `validate:"required,channel"`
	Address     string `validate:"required,max=320"`
	OperationID string `validate:"max=255"`
}

type IssueOutput struct {
	// Code is the plaintext code. Callers decide whether it may leave the process.
	Code        string
	Delivered   bool
	Channel     entity.Channel
	Destination string
	OperationID string
	ExpiresAt   time.Time
}

func (s *Usecase) Issue(ctx context.Context, in IssueInput) (*IssueOutput, error) {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Subject = strings.TrimSpace(in.Subject)
	in.Address = strings.TrimSpace(in.Address)
	in.OperationID = strings.TrimSpace(in.OperationID)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	channel := entity.ChannelFromString(in.Channel)
	if !entity.ValidAddress(channel, in.Address) {
		return nil, goerror.NewInvalidInput(nil, "address", "address is not valid for channel "+channel.String())
	}

	cfg, err := s.repoConfig.GetConfig(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get config", "error", err)
		return nil, goerror.NewServer(err)
	}

	out, _, err := s.issue(ctx, cfg, in.Subject, channel, in.Address, in.OperationID)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// issue persists a new ACTIVE code and hands the plaintext to the dispatcher.
// The record is kept even when delivery fails.
func (s *Usecase) issue(
	ctx context.Context,
	cfg entity.Config,
	subject string,
	channel entity.Channel,
	address, operationID string,
) (*IssueOutput, int64, error) {
	plain, err := s.codegen.Generate(cfg.CodeLength)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate code", "length", cfg.CodeLength, "error", err)
		return nil, 0, goerror.NewServer(err)
	}

	stored, err := s.storedValue(subject, plain)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash code", "subject", subject, "error", err)
		return nil, 0, goerror.NewServer(err)
	}

	now := s.clock.Now()
	code, err := s.repoCode.Save(ctx, entity.Code{
		ID:          s.uid.Generate(),
		Subject:     subject,
		Value:       stored,
		OperationID: operationID,
		Status:      entity.StatusActive,
		Channel:     channel,
		Address:     address,
		CreatedAt:   now,
		ExpiresAt:   now.Add(cfg.Lifetime()),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo save code", "subject", subject, "error", err)
		return nil, 0, goerror.NewServer(err)
	}

	delivered := s.dispatcher.Deliver(ctx, channel, address, plain)
	if !delivered {
		slog.WarnContext(ctx, "code issued but not delivered", "subject", subject, "code_id", code.ID, "channel", channel.String())
	}

	if s.issuedCounter != nil {
		s.issuedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("channel", channel.String()),
			attribute.Bool("delivered", delivered),
		))
	}

	if err := s.repoMessaging.PublishIssued(ctx, IssuedEvent{
		CodeID:      code.ID,
		Subject:     subject,
		Channel:     channel,
		OperationID: operationID,
		Delivered:   delivered,
		ExpiresAt:   code.ExpiresAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish code issued", "subject", subject, "code_id", code.ID, "error", err)
	}

	return &IssueOutput{
		Code:        plain,
		Delivered:   delivered,
		Channel:     channel,
		Destination: entity.MaskAddress(channel, address),
		OperationID: operationID,
		ExpiresAt:   code.ExpiresAt,
	}, code.ID, nil
}
