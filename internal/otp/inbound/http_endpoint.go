package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
	"github.com/shandysiswandi/onetime/internal/pkg/idempotency"
	"github.com/shandysiswandi/onetime/internal/pkg/jwt"
	"github.com/shandysiswandi/onetime/internal/pkg/router"
)

const headerIdempotencyKey = "Idempotency-Key"

var errAuthRequired = goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)

// HTTPEndpoint exposes HTTP handlers for issuing and checking one-time codes.
type HTTPEndpoint struct {
	uc   uc
	idem idempotency.Idempotency
	cfg  config.Config
}

func subjectOf(ctx context.Context) (string, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil || clm.Subject == "" {
		return "", errAuthRequired
	}
	return clm.Subject, nil
}

// Generate issues a code for the caller and sends it over the requested channel.
// @Summary Generate OTP code
// @Description Issues a one-time code for the token subject and delivers it. A repeated Idempotency-Key replays the first response.
// @Tags OTP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Deduplicates retried requests"
// @Param request body GenerateRequest true "Generate payload"
// @Success 200 {object} router.successResponse{data=GenerateResponse} "Issue result"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 409 {object} router.errorResponse "Request still in progress"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/generate [post]
func (h *HTTPEndpoint) Generate(r *router.Request) (any, error) {
	subject, err := subjectOf(r.Context())
	if err != nil {
		return nil, err
	}

	var req GenerateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	key := r.GetHeader(headerIdempotencyKey)
	if key == "" || h.idem == nil {
		return h.generate(r.Context(), subject, req)
	}

	var fresh *GenerateResponse
	raw, err := h.idem.Exec(r.Context(), "otp:generate:"+subject+":"+key, func(ctx context.Context) ([]byte, error) {
		resp, err := h.generate(ctx, subject, req)
		if err != nil {
			return nil, err
		}
		fresh = &resp

		stored := resp
		stored.Code = ""
		return json.Marshal(stored)
	})
	if errors.Is(err, idempotency.ErrAlreadyInProgress) {
		return nil, goerror.NewBusiness("A request with this Idempotency-Key is still being processed", goerror.CodeConflict)
	}
	if err != nil {
		return nil, err
	}

	if fresh != nil {
		return *fresh, nil
	}

	var replay GenerateResponse
	if err := json.Unmarshal(raw, &replay); err != nil {
		slog.ErrorContext(r.Context(), "failed to decode idempotent response", "error", err)
		return nil, goerror.NewServer(err)
	}

	return replay, nil
}

func (h *HTTPEndpoint) generate(ctx context.Context, subject string, req GenerateRequest) (GenerateResponse, error) {
	resp, err := h.uc.Issue(ctx, usecase.IssueInput{
		Subject:     subject,
		Channel:     req.Channel,
		Address:     req.Address,
		OperationID: req.OperationID,
	})
	if err != nil {
		return GenerateResponse{}, err
	}

	return h.toGenerateResponse(resp), nil
}

func (h *HTTPEndpoint) toGenerateResponse(resp *usecase.IssueOutput) GenerateResponse {
	out := GenerateResponse{
		Delivered:   resp.Delivered,
		Channel:     resp.Channel.String(),
		Destination: resp.Destination,
		OperationID: resp.OperationID,
		ExpiresAt:   resp.ExpiresAt,
	}
	if h.cfg.GetBool("modules.otp.expose_code") {
		out.Code = resp.Code
	}
	return out
}

// Validate checks a code for the caller and consumes it when it matches.
// @Summary Validate OTP code
// @Description Consumes a matching active code of the token subject. Any mismatch, expiry or reuse yields the same invalid result.
// @Tags OTP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ValidateRequest true "Validate payload"
// @Success 200 {object} router.successResponse{data=ValidateResponse} "Validation result"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/validate [post]
func (h *HTTPEndpoint) Validate(r *router.Request) (any, error) {
	subject, err := subjectOf(r.Context())
	if err != nil {
		return nil, err
	}

	var req ValidateRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Validate(r.Context(), usecase.ValidateInput{
		Subject:     subject,
		Code:        req.Code,
		OperationID: req.OperationID,
	})
	if err != nil {
		return nil, err
	}

	return ValidateResponse{Valid: resp.Valid}, nil
}

// Resend replaces the caller's latest active code with a new one.
// @Summary Resend OTP code
// @Description Expires the latest active code of the token subject and sends a new one to the same destination. Without operation_id a new one is generated.
// @Tags OTP
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ResendRequest true "Resend payload"
// @Success 200 {object} router.successResponse{data=ResendResponse} "Resend result"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 403 {object} router.errorResponse "Resend disabled"
// @Failure 404 {object} router.errorResponse "No active code"
// @Failure 429 {object} router.errorResponse "Resend requested too soon"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/otp/resend [post]
func (h *HTTPEndpoint) Resend(r *router.Request) (any, error) {
	subject, err := subjectOf(r.Context())
	if err != nil {
		return nil, err
	}

	var req ResendRequest
	if r.ContentLength != 0 {
		if err := r.DecodeBody(&req); err != nil {
			return nil, err
		}
	}

	resp, err := h.uc.Resend(r.Context(), usecase.ResendInput{
		Subject:     subject,
		OperationID: req.OperationID,
	})
	if err != nil {
		return nil, err
	}

	return ResendResponse{GenerateResponse: h.toGenerateResponse(resp)}, nil
}

// GetConfig returns the code policy.
// @Summary Get OTP configuration
// @Tags OTP, Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} router.successResponse{data=ConfigResponse} "Current configuration"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 403 {object} router.errorResponse "Account not allowed"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/admin/otp-config [get]
func (h *HTTPEndpoint) GetConfig(r *router.Request) (any, error) {
	resp, err := h.uc.GetConfig(r.Context())
	if err != nil {
		return nil, err
	}

	return toConfigResponse(resp), nil
}

// UpdateConfig changes the code policy.
// @Summary Update OTP configuration
// @Description Applies the given fields. Out of range values are ignored and the resulting configuration is returned.
// @Tags OTP, Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateConfigRequest true "Fields to change"
// @Success 200 {object} router.successResponse{data=ConfigResponse} "Updated configuration"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 401 {object} router.errorResponse "Authentication required"
// @Failure 403 {object} router.errorResponse "Account not allowed"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/admin/otp-config [put]
func (h *HTTPEndpoint) UpdateConfig(r *router.Request) (any, error) {
	var req UpdateConfigRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.UpdateConfig(r.Context(), usecase.UpdateConfigInput{
		CodeLength:            req.CodeLength,
		LifetimeMinutes:       req.LifetimeMinutes,
		MaxAttempts:           req.MaxAttempts,
		ResendEnabled:         req.ResendEnabled,
		ResendIntervalSeconds: req.ResendIntervalSeconds,
	})
	if err != nil {
		return nil, err
	}

	return UpdateConfigResponse{ConfigResponse: toConfigResponse(resp)}, nil
}
