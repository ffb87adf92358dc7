package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/onetime/internal/pkg/clock"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/goerror"
	"github.com/shandysiswandi/onetime/internal/pkg/instrument"
	"github.com/shandysiswandi/onetime/internal/pkg/jwt"
	"github.com/shandysiswandi/onetime/internal/pkg/uid"
	"github.com/shandysiswandi/onetime/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okResp struct {
	Value string `json:"value"`
}

func (okResp) Message() string { return "done" }

func newTestRouter(t *testing.T, checks map[string]HealthCheck) (*Router, *jwt.Symmetric) {
	t.Helper()

	signer, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("s", 64)),
		Issuer:    "test",
		Audiences: []string{"test"},
		TTL:       time.Hour,
		Clock:     clock.New(),
		UUID:      uid.NewUUID(),
	})
	require.NoError(t, err)

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  maintenance:\n    endpoints: \"/blocked\"\n"))
	require.NoError(t, err)

	return NewRouter(Config{
		Config:       cfg,
		UUID:         uid.NewUUID(),
		JWT:          signer,
		Instrument:   instrument.NewNoop(),
		HealthChecks: checks,
	}), signer
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]HealthCheck
		code   int
		status string
	}{
		{name: "no checks", code: http.StatusOK, status: "ok"},
		{
			name:   "all up",
			checks: map[string]HealthCheck{"database": func(context.Context) error { return nil }},
			code:   http.StatusOK,
			status: "ok",
		},
		{
			name: "one down",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("refused") },
			},
			code:   http.StatusServiceUnavailable,
			status: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ro, _ := newTestRouter(t, tt.checks)

			rec := httptest.NewRecorder()
			ro.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			body := decode(t, rec)
			data, ok := body["data"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.status, data["status"])
			assert.NotEmpty(t, rec.Header().Get(instrument.CorrelationHeader))
		})
	}
}

func TestRouter_Authentication(t *testing.T) {
	ro, signer := newTestRouter(t, nil)
	ro.GET("/private", func(r *Request) (any, error) {
		return okResp{Value: jwt.GetAuth(r.Context()).Subject}, nil
	})

	rec := httptest.NewRecorder()
	ro.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer nope")
	ro.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := signer.Generate("user-1", nil)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(instrument.CorrelationHeader, "cid-1")
	ro.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cid-1", rec.Header().Get(instrument.CorrelationHeader))
	body := decode(t, rec)
	assert.Equal(t, "done", body["message"])
	assert.Equal(t, map[string]any{"value": "user-1"}, body["data"])
}

func TestRouter_Errors(t *testing.T) {
	ro, signer := newTestRouter(t, nil)
	token, err := signer.Generate("user-1", nil)
	require.NoError(t, err)

	ro.POST("/business", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("too soon", goerror.CodeTooManyRequest)
	})
	ro.POST("/invalid", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(validator.V10ValidationError{"code": "code is required"})
	})
	ro.POST("/plain", func(*Request) (any, error) {
		return nil, errors.New("boom")
	})
	ro.POST("/panic", func(*Request) (any, error) {
		panic("boom")
	})
	ro.POST("/decode", func(r *Request) (any, error) {
		var in struct {
			Code string `json:"code"`
		}
		if err := r.DecodeBody(&in); err != nil {
			return nil, err
		}
		return okResp{Value: in.Code}, nil
	})
	ro.POST("/blocked", func(*Request) (any, error) { return okResp{}, nil })

	tests := []struct {
		path string
		body string
		code int
		msg  string
	}{
		{path: "/business", code: http.StatusTooManyRequests, msg: "too soon"},
		{path: "/invalid", code: http.StatusUnprocessableEntity, msg: "Validation error"},
		{path: "/plain", code: http.StatusInternalServerError, msg: "Internal server error"},
		{path: "/panic", code: http.StatusInternalServerError, msg: "Internal server error"},
		{path: "/decode", body: `{"code":"1","extra":true}`, code: http.StatusBadRequest, msg: "Invalid request body"},
		{path: "/decode", body: `{"code":"123456"}`, code: http.StatusOK, msg: "done"},
		{path: "/blocked", code: http.StatusServiceUnavailable, msg: "Service is under maintenance"},
	}

	for _, tt := range tests {
		t.Run(tt.path+tt.body, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer "+token)
			ro.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.msg, decode(t, rec)["message"])
		})
	}
}

func TestRouter_InvalidInputFields(t *testing.T) {
	ro, signer := newTestRouter(t, nil)
	token, err := signer.Generate("user-1", nil)
	require.NoError(t, err)

	ro.PUT("/fields", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(validator.V10ValidationError{"code": "code is required"})
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/fields", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	ro.ServeHTTP(rec, req)

	assert.Equal(t, map[string]any{"code": "code is required"}, decode(t, rec)["error"])
}

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", realIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", realIP(req))

	req.Header.Set("X-Real-IP", "not-an-ip")
	assert.Equal(t, "10.0.0.1", realIP(req))
}

func TestNormalizeCID(t *testing.T) {
	assert.Empty(t, normalizeCID("a\r\nb"))
	assert.Equal(t, "abc", normalizeCID("  abc "))
	assert.Len(t, normalizeCID(strings.Repeat("x", 200)), 128)
}

func TestChain_Order(t *testing.T) {
	var got []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = append(got, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { got = append(got, "handler") }), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "handler"}, got)
}
