package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
)

func (s *Usecase) GetConfig(ctx context.Context) (*entity.Config, error) {
	ctx, span := s.startSpan(ctx, "GetConfig")
	defer span.End()

	if _, err := s.authenticatedAndAuthorized(ctx, objectConfig, actRead); err != nil {
		return nil, err
	}

	cfg, err := s.repoConfig.GetConfig(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get config", "error", err)
		return nil, goerror.NewServer(err)
	}

	return &cfg, nil
}

// UpdateConfigInput fields are optional. Out of range values are dropped rather
// than rejected.
type UpdateConfigInput struct {
	CodeLength            *int
	LifetimeMinutes       *int
	MaxAttempts           *int
	ResendEnabled         *bool
	ResendIntervalSeconds *int
}

func (s *Usecase) UpdateConfig(ctx context.Context, in UpdateConfigInput) (*entity.Config, error) {
	ctx, span := s.startSpan(ctx, "UpdateConfig")
	defer span.End()

	clm, err := s.authenticatedAndAuthorized(ctx, objectConfig, actUpdate)
	if err != nil {
		return nil, err
	}

	upd := entity.ConfigUpdate{
		CodeLength:            in.CodeLength,
		LifetimeMinutes:       in.LifetimeMinutes,
		MaxAttempts:           in.MaxAttempts,
		ResendEnabled:         in.ResendEnabled,
		ResendIntervalSeconds: in.ResendIntervalSeconds,
	}.Sanitize()

	if upd.IsEmpty() {
		cfg, err := s.repoConfig.GetConfig(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo get config", "error", err)
			return nil, goerror.NewServer(err)
		}
		return &cfg, nil
	}

	cfg, err := s.repoConfig.UpdateConfig(ctx, upd)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update config", "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "otp config updated",
		"by", clm.Subject,
		"code_length", cfg.CodeLength,
		"lifetime_minutes", cfg.LifetimeMinutes,
		"max_attempts", cfg.MaxAttempts,
		"resend_enabled", cfg.ResendEnabled,
		"resend_interval_seconds", cfg.ResendIntervalSeconds,
	)

	return &cfg, nil
}
