package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/onetime/internal/otp/entity"
	"github.com/shandysiswandi/onetime/internal/otp/usecase"
	"github.com/shandysiswandi/onetime/internal/pkg/clock"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/idempotency"
	"github.com/shandysiswandi/onetime/internal/pkg/jwt"
	"github.com/shandysiswandi/onetime/internal/pkg/router"
	"github.com/shandysiswandi/onetime/internal/pkg/uid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memIdempotency mimics the Redis state tracker without the in-progress state.
type memIdempotency struct {
	mu   sync.Mutex
	done map[string][]byte
	busy bool
}

func (m *memIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) ([]byte, error), _ ...idempotency.Option) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return nil, idempotency.ErrAlreadyInProgress
	}
	if out, ok := m.done[key]; ok {
		return out, nil
	}
	out, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	m.done[key] = out
	return out, nil
}

type harness struct {
	handler http.Handler
	uc      *fakeUsecase
	idem    *memIdempotency
	token   string
}

func newHarness(t *testing.T, exposeCode bool) *harness {
	t.Helper()

	signer, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("k", 64)),
		Issuer:    "idp.test",
		Audiences: []string{"onetime"},
		TTL:       time.Hour,
		Clock:     clock.New(),
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	yaml := "modules:\n  otp:\n    expose_code: false\n"
	if exposeCode {
		yaml = "modules:\n  otp:\n    expose_code: true\n"
	}
	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	r := router.NewRouter(router.Config{
		Config:     cfg,
		UUID:       uid.NewUUID(),
		JWT:        signer,
		Instrument: noop,
	})

	h := &harness{
		handler: r,
		uc: &fakeUsecase{issueOut: &usecase.IssueOutput{
			Code:        "123456",
			Delivered:   true,
			Channel:     entity.ChannelEmail,
			Destination: "a***e@example.com",
			OperationID: "op1",
			ExpiresAt:   expiresAt,
		}},
		idem: &memIdempotency{done: map[string][]byte{}},
	}
	RegisterHTTPEndpoint(r, h.uc, h.idem, cfg)

	h.token, err = signer.Generate("user-1", []string{"user"})
	require.NoError(t, err)
	return h
}

type envelope struct {
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   map[string]string `json:"error"`
}

func (h *harness) do(t *testing.T, method, path, body string, headers ...string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHTTP_Generate(t *testing.T) {
	h := newHarness(t, false)

	code, env := h.do(t, http.MethodPost, "/api/v1/otp/generate", `{"channel":"EMAIL","address":"alice@example.com","operation_id":"op1"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OTP code has been sent successfully", env.Message)

	var data GenerateResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Delivered)
	assert.Equal(t, "EMAIL", data.Channel)
	assert.Equal(t, "a***e@example.com", data.Destination)
	assert.Empty(t, data.Code, "code is not exposed by default")
	assert.NotContains(t, string(env.Data), "123456")

	require.Len(t, h.uc.issueIn, 1)
	assert.Equal(t, usecase.IssueInput{
		Subject:     "user-1",
		Channel:     "EMAIL",
		Address:     "alice@example.com",
		OperationID: "op1",
	}, h.uc.issueIn[0])
}

func TestHTTP_GenerateNotDelivered(t *testing.T) {
	h := newHarness(t, true)
	h.uc.issueOut.Delivered = false

	code, env := h.do(t, http.MethodPost, "/api/v1/otp/generate", `{"channel":"SMS","address":"+15551234567"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Failed to deliver OTP code", env.Message)

	var data GenerateResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "123456", data.Code, "dev mode exposes the code")
}

func TestHTTP_GenerateIdempotent(t *testing.T) {
	h := newHarness(t, true)
	body := `{"channel":"EMAIL","address":"alice@example.com"}`

	_, first := h.do(t, http.MethodPost, "/api/v1/otp/generate", body, "Idempotency-Key", "k1")
	_, second := h.do(t, http.MethodPost, "/api/v1/otp/generate", body, "Idempotency-Key", "k1")

	assert.Len(t, h.uc.issueIn, 1)

	var a, b GenerateResponse
	require.NoError(t, json.Unmarshal(first.Data, &a))
	require.NoError(t, json.Unmarshal(second.Data, &b))
	assert.Equal(t, "123456", a.Code)
	assert.Empty(t, b.Code, "replays never carry the code")
	assert.Equal(t, a.ExpiresAt, b.ExpiresAt)

	for _, raw := range h.idem.done {
		assert.NotContains(t, string(raw), "123456")
	}

	h.idem.busy = true
	code, env := h.do(t, http.MethodPost, "/api/v1/otp/generate", body, "Idempotency-Key", "k2")
	assert.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, env.Message)
}

func TestHTTP_GenerateErrors(t *testing.T) {
	h := newHarness(t, false)

	code, _ := h.do(t, http.MethodPost, "/api/v1/otp/generate", `{"channel":"EMAIL","unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	h.uc.err = errors.New("db down")
	code, _ = h.do(t, http.MethodPost, "/api/v1/otp/generate", `{"channel":"EMAIL","address":"alice@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, code)

	h.token = ""
	code, _ = h.do(t, http.MethodPost, "/api/v1/otp/generate", `{}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHTTP_Validate(t *testing.T) {
	h := newHarness(t, false)

	h.uc.valid = true
	code, env := h.do(t, http.MethodPost, "/api/v1/otp/validate", `{"code":"123456","operation_id":"op1"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OTP code is valid", env.Message)
	assert.JSONEq(t, `{"valid":true}`, string(env.Data))

	h.uc.valid = false
	code, env = h.do(t, http.MethodPost, "/api/v1/otp/validate", `{"code":"123456"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Invalid or expired OTP code", env.Message)

	require.Len(t, h.uc.validateIn, 2)
	assert.Equal(t, usecase.ValidateInput{Subject: "user-1", Code: "123456", OperationID: "op1"}, h.uc.validateIn[0])
}

func TestHTTP_Resend(t *testing.T) {
	h := newHarness(t, false)

	code, env := h.do(t, http.MethodPost, "/api/v1/otp/resend", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OTP code has been resent successfully", env.Message)
	assert.Equal(t, []usecase.ResendInput{{Subject: "user-1"}}, h.uc.resendIn)

	var data ResendResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "op1", data.OperationID)

	h.uc.err = usecase.ErrResendTooSoon
	code, _ = h.do(t, http.MethodPost, "/api/v1/otp/resend", `{"operation_id":"op9"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)

	h.uc.err = usecase.ErrNoActiveCode
	code, _ = h.do(t, http.MethodPost, "/api/v1/otp/resend", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHTTP_Config(t *testing.T) {
	h := newHarness(t, false)

	code, env := h.do(t, http.MethodGet, "/api/v1/admin/otp-config", "")
	require.Equal(t, http.StatusOK, code)
	var cfg ConfigResponse
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, 6, cfg.CodeLength)
	assert.Equal(t, 15, cfg.LifetimeMinutes)

	code, env = h.do(t, http.MethodPut, "/api/v1/admin/otp-config", `{"code_length":3,"lifetime_minutes":10}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OTP configuration updated", env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, 10, cfg.LifetimeMinutes)

	require.Len(t, h.uc.updateIn, 1)
	require.NotNil(t, h.uc.updateIn[0].CodeLength)
	assert.Equal(t, 3, *h.uc.updateIn[0].CodeLength)
	assert.Nil(t, h.uc.updateIn[0].MaxAttempts)
}
