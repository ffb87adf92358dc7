package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(newHandler(buf, &Config{
		ServiceName: "onetime",
		MaskFields:  []string{"code", " Token "},
		LogLevel:    "debug",
	}, nil))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLogging_MaskAndContext(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf)

	ctx := SetCorrelationID(context.Background(), "cid-1")
	log.InfoContext(ctx, "issued",
		"subject", "user1",
		"code", "123456",
		"payload", `{"code":"654321","channel":"EMAIL"}`,
		"headers", map[string]string{"token": "abc"},
	)

	line := decodeLine(t, &buf)
	assert.Equal(t, "issued", line["msg"])
	assert.Equal(t, "INFO", line["severity"])
	assert.Equal(t, "cid-1", line["_cID"])
	assert.Equal(t, "onetime", line["service"])
	assert.Equal(t, "user1", line["subject"])
	assert.Equal(t, masked, line["code"])
	assert.JSONEq(t, `{"code":"***","channel":"EMAIL"}`, line["payload"].(string))
	assert.Equal(t, map[string]any{"token": masked}, line["headers"])
	assert.Contains(t, line, "ts")
}

func TestLogging_WithAttrsMasked(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf).With("code", "111111")

	log.Debug("debug line")

	line := decodeLine(t, &buf)
	assert.Equal(t, masked, line["code"])
	assert.NotContains(t, line, "_cID")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestCorrelationID(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))
	assert.Equal(t, "x", GetCorrelationID(SetCorrelationID(context.Background(), "x")))
}
