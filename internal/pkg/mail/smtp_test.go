package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTP_Validation(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{})
	assert.ErrorIs(t, err, ErrSMTPHostPortRequired)
}

func TestSMTP_SendPrecheck(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, s.Send(context.Background(), Message{From: "a@b.test"}), ErrSMTPNoRecipients)
	assert.ErrorIs(t, s.Send(context.Background(), Message{To: []string{"x@y.test"}}), ErrSMTPNoSender)
}

func TestSMTP_Compose(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "smtp.test", Port: 25, From: "noreply@onetime.test"})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	raw := string(s.compose("noreply@onetime.test", Message{
		To:       []string{"a@b.test"},
		Cc:       []string{"c@d.test"},
		Subject:  "Your verification code",
		TextBody: "Your OTP code is: 123456",
	}))

	assert.Contains(t, raw, "From: noreply@onetime.test\r\n")
	assert.Contains(t, raw, "To: a@b.test\r\n")
	assert.Contains(t, raw, "Cc: c@d.test\r\n")
	assert.Contains(t, raw, "Subject: Your verification code\r\n")
	assert.Contains(t, raw, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nYour OTP code is: 123456"))
}

func TestBuildBody_Multipart(t *testing.T) {
	body, ct := buildBody(Message{TextBody: "plain", HTMLBody: "<b>html</b>"})

	require.True(t, strings.HasPrefix(ct, "multipart/alternative; boundary=onetime-"))
	b := strings.TrimPrefix(ct, "multipart/alternative; boundary=")
	assert.Contains(t, body, "--"+b+"\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\nplain\r\n")
	assert.Contains(t, body, "Content-Type: text/html; charset=UTF-8\r\n\r\n<b>html</b>\r\n")
	assert.True(t, strings.HasSuffix(body, "--"+b+"--"))

	body, ct = buildBody(Message{HTMLBody: "<i>x</i>"})
	assert.Equal(t, "<i>x</i>", body)
	assert.Equal(t, "text/html; charset=UTF-8", ct)
}
