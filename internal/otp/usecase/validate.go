package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ValidateInput struct {
	Subject     string `validate:"required,max=255"`
	Code        string `validate:"required"`
	OperationID string `validate:"max=255"`
}

// codeShape describes a code that could have been issued at all.
type codeShape struct {
	Code string `validate:"digits,min=4,max=10"`
}

type ValidateOutput struct {
	Valid bool
}

// Validate consumes a matching ACTIVE code. Every miss, a malformed code
// included, yields the same invalid verdict; the reason is only logged.
//
// When a lockout is configured an attempt is reserved before the lookup, so
// concurrent guesses cannot all pass the limit check. Outcomes that are not a
// wrong guess give the reservation back.
func (s *Usecase) Validate(ctx context.Context, in ValidateInput) (*ValidateOutput, error) {
	ctx, span := s.startSpan(ctx, "Validate")
	defer span.End()

	in.Subject = strings.TrimSpace(in.Subject)
	in.Code = strings.TrimSpace(in.Code)
	in.OperationID = strings.TrimSpace(in.OperationID)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	cfg, err := s.repoConfig.GetConfig(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get config", "error", err)
		return nil, goerror.NewServer(err)
	}

	limited := cfg.MaxAttempts > 0
	if limited {
		attempts, err := s.limiter.Reserve(ctx, in.Subject, cfg.Lifetime())
		if err != nil {
			slog.ErrorContext(ctx, "failed to limiter reserve attempt", "subject", in.Subject, "error", err)
			return nil, goerror.NewServer(err)
		}
		if attempts > cfg.MaxAttempts {
			return s.verdict(ctx, in, entity.ReasonLocked), nil
		}
	}

	// refund gives back the reserved attempt for outcomes that are not a wrong guess.
	refund := func() {
		if !limited {
			return
		}
		if err := s.limiter.Release(ctx, in.Subject); err != nil {
			slog.ErrorContext(ctx, "failed to limiter release attempt", "subject", in.Subject, "error", err)
		}
	}

	if err := s.validator.Validate(codeShape{Code: in.Code}); err != nil {
		return s.verdict(ctx, in, entity.ReasonNoMatch), nil
	}

	stored, err := s.storedValue(in.Subject, in.Code)
	if err != nil {
		refund()
		slog.ErrorContext(ctx, "failed to hash code", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	code, err := s.repoCode.FindActive(ctx, in.Subject, stored, in.OperationID)
	if errors.Is(err, goerror.ErrNotFound) {
		return s.verdict(ctx, in, entity.ReasonNoMatch), nil
	}
	if err != nil {
		refund()
		slog.ErrorContext(ctx, "failed to repo find active code", "subject", in.Subject, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	if code.ExpiredAt(now) {
		refund()
		if _, err := s.repoCode.MarkExpired(ctx, code.ID); err != nil {
			slog.ErrorContext(ctx, "failed to repo mark code expired", "code_id", code.ID, "error", err)
			return nil, goerror.NewServer(err)
		}
		return s.verdict(ctx, in, entity.ReasonExpired), nil
	}

	used, err := s.repoCode.MarkUsed(ctx, code.ID, now)
	if err != nil {
		refund()
		slog.ErrorContext(ctx, "failed to repo mark code used", "code_id", code.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if !used {
		refund()
		return s.verdict(ctx, in, entity.ReasonConsumed), nil
	}

	if err := s.limiter.ResetFailures(ctx, in.Subject); err != nil {
		slog.ErrorContext(ctx, "failed to limiter reset failures", "subject", in.Subject, "error", err)
	}

	return s.verdict(ctx, in, entity.ReasonNone), nil
}

func (s *Usecase) verdict(ctx context.Context, in ValidateInput, reason entity.Reason) *ValidateOutput {
	valid := reason == entity.ReasonNone
	result := "valid"
	if !valid {
		result = "invalid"
		slog.InfoContext(ctx, "code rejected", "subject", in.Subject, "operation_id", in.OperationID, "reason", string(reason))
	}

	if s.validatedCounter != nil {
		s.validatedCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("result", result),
			attribute.String("reason", string(reason)),
		))
	}

	if err := s.repoMessaging.PublishValidated(ctx, ValidatedEvent{
		Subject:     in.Subject,
		OperationID: in.OperationID,
		Valid:       valid,
		Reason:      reason,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish code validated", "subject", in.Subject, "error", err)
	}

	return &ValidateOutput{Valid: valid}
}
