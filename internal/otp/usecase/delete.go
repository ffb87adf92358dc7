package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
)

type DeleteAllForInput struct {
	Subject string `validate:"required,max=255"`
}

// DeleteAllFor removes every code of a subject, whatever its status.
func (s *Usecase) DeleteAllFor(ctx context.Context, in DeleteAllForInput) (int64, error) {
	ctx, span := s.startSpan(ctx, "DeleteAllFor")
	defer span.End()

	in.Subject = strings.TrimSpace(in.Subject)
	if err := s.validator.Validate(in); err != nil {
		return 0, goerror.NewInvalidInput(err)
	}

	n, err := s.repoCode.DeleteAllFor(ctx, in.Subject)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete codes", "subject", in.Subject, "error", err)
		return 0, goerror.NewServer(err)
	}

	if err := s.limiter.ResetFailures(ctx, in.Subject); err != nil {
		slog.ErrorContext(ctx, "failed to limiter reset failures", "subject", in.Subject, "error", err)
	}

	slog.InfoContext(ctx, "codes deleted for subject", "subject", in.Subject, "count", n)
	return n, nil
}
