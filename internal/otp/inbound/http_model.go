package inbound

import (
	"time"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
)

type GenerateRequest struct {
	Channel     string `json:"channel" example:"EMAIL"`
	Address     string `json:"address" example:"user@example.com"`
	OperationID string `json:"operation_id,omitempty" example:"login-42"`
}

type GenerateResponse struct {
	Delivered   bool      `json:"delivered"`
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	OperationID string    `json:"operation_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	// Code is only filled when modules.otp.expose_code is on.
	Code string `json:"code,omitempty"`
}

func (r GenerateResponse) Message() string {
	if r.Delivered {
		return "OTP code has been sent successfully"
	}
	return "Failed to deliver OTP code"
}

type ValidateRequest struct {
	Code        string `json:"code" example:"123456"`
	OperationID string `json:"operation_id,omitempty" example:"login-42"`
}

type ValidateResponse struct {
	Valid bool `json:"valid"`
}

func (r ValidateResponse) Message() string {
	if r.Valid {
		return "OTP code is valid"
	}
	return "Invalid or expired OTP code"
}

type ResendRequest struct {
	OperationID string `json:"operation_id,omitempty"`
}

type ResendResponse struct {
	GenerateResponse
}

func (r ResendResponse) Message() string {
	if r.Delivered {
		return "OTP code has been resent successfully"
	}
	return "Failed to deliver OTP code"
}

type ConfigResponse struct {
	CodeLength            int       `json:"code_length"`
	LifetimeMinutes       int       `json:"lifetime_minutes"`
	MaxAttempts           int       `json:"max_attempts"`
	ResendEnabled         bool      `json:"resend_enabled"`
	ResendIntervalSeconds int       `json:"resend_interval_seconds"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (ConfigResponse) Message() string {
	return "OTP configuration"
}

type UpdateConfigRequest struct {
	CodeLength            *int  `json:"code_length,omitempty"`
	LifetimeMinutes       *int  `json:"lifetime_minutes,omitempty"`
	MaxAttempts           *int  `json:"max_attempts,omitempty"`
	ResendEnabled         *bool `json:"resend_enabled,omitempty"`
	ResendIntervalSeconds *int  `json:"resend_interval_seconds,omitempty"`
}

type UpdateConfigResponse struct {
	ConfigResponse
}

func (UpdateConfigResponse) Message() string {
	return "OTP configuration updated"
}

func toConfigResponse(c *entity.Config) ConfigResponse {
	return ConfigResponse{
		CodeLength:            c.CodeLength,
		LifetimeMinutes:       c.LifetimeMinutes,
		MaxAttempts:           c.MaxAttempts,
		ResendEnabled:         c.ResendEnabled,
		ResendIntervalSeconds: c.ResendIntervalSeconds,
		UpdatedAt:             c.UpdatedAt,
	}
}
