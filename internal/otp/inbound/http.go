package inbound

import (
	"context"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/idempotency"
	"github.com/shandysiswandi/onetime/internal/pkg/router"
)

type uc interface {
	Issue(ctx context.Context, in usecase.IssueInput) (*usecase.IssueOutput, error)
	Validate(ctx context.Context, in usecase.ValidateInput) (*usecase.ValidateOutput, error)
	Resend(ctx context.Context, in usecase.ResendInput) (*usecase.ResendOutput, error)

	GetConfig(ctx context.Context) (*entity.Config, error)
	UpdateConfig(ctx context.Context, in usecase.UpdateConfigInput) (*entity.Config, error)

	DeleteAllFor(ctx context.Context, in usecase.DeleteAllForInput) (int64, error)
	SweepExpired(ctx context.Context) (int64, error)
}

// RegisterHTTPEndpoint mounts the OTP routes. idem may be nil, in which case
// Idempotency-Key headers are ignored.
func RegisterHTTPEndpoint(r *router.Router, uc uc, idem idempotency.Idempotency, cfg config.Config) {
	end := &HTTPEndpoint{uc: uc, idem: idem, cfg: cfg}

	// Codes (need authenticated, subject is the token subject)
	r.POST("/api/v1/otp/generate", end.Generate)
	r.POST("/api/v1/otp/validate", end.Validate)
	r.POST("/api/v1/otp/resend", end.Resend)

	// Configuration (need authenticated & authorization)
	r.GET("/api/v1/admin/otp-config", end.GetConfig)
	r.PUT("/api/v1/admin/otp-config", end.UpdateConfig)
}
