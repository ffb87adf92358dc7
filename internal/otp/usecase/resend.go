package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
)

type ResendInput struct {
	Subject     string `validate:"required,max=255"`
	OperationID string `validate:"max=255"`
}

type ResendOutput = IssueOutput

// Resend expires the subject's latest ACTIVE code and issues a new one to the same
// destination. Without an operation ID a fresh one is generated.
func (s *Usecase) Resend(ctx context.Context, in ResendInput) (*ResendOutput, error) {
	ctx, span := s.startSpan(ctx, "Resend")
	defer span.End()

	in.Subject = strings.TrimSpace(in.Subject)
	in.OperationID = strings.TrimSpace(in.OperationID)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	cfg, err := s.repoConfig.GetConfig(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get config", "error", err)
		return nil, goerror.NewServer(err)
	}

	if !cfg.ResendEnabled {
		slog.WarnContext(ctx, "resend requested while disabled", "subject", in.Subject)
		return nil, ErrResendDisabled
	}

	prior, err := s.repoCode.FindLatestActive(ctx, in.Subject)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "no active code to resend", "subject", in.Subject)
		return nil, ErrNoActiveCode
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo find latest active code", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	if elapsed := s.clock.Now().Sub(prior.CreatedAt); elapsed < cfg.ResendInterval() {
		slog.WarnContext(ctx, "resend requested too soon", "subject", in.Subject, "elapsed", elapsed.String())
		return nil, ErrResendTooSoon
	}

	expired, err := s.repoCode.MarkExpired(ctx, prior.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mark code expired", "code_id", prior.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !expired {
		slog.WarnContext(ctx, "prior code left ACTIVE before resend", "subject", in.Subject, "code_id", prior.ID)
		return nil, ErrNoActiveCode
	}

	operationID := in.OperationID
	if operationID == "" {
		operationID = s.uuid.Generate()
	}

	out, codeID, err := s.issue(ctx, cfg, in.Subject, prior.Channel, prior.Address, operationID)
	if err != nil {
		return nil, err
	}

	if err := s.repoMessaging.PublishResent(ctx, ResentEvent{
		PriorCodeID: prior.ID,
		CodeID:      codeID,
		Subject:     in.Subject,
		OperationID: operationID,
		Delivered:   out.Delivered,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish code resent", "subject", in.Subject, "error", err)
	}

	return out, nil
}
