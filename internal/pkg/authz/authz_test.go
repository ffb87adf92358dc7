package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizer_Allowed(t *testing.T) {
	a, err := New(
		[]string{"admin|otp_config|*", "auditor|otp_config|read"},
		[]string{"user-admin:admin", "user-audit:auditor"},
	)
	require.NoError(t, err)

	tests := []struct {
		name    string
		subject string
		roles   []string
		act     string
		want    bool
	}{
		{name: "granted admin reads", subject: "user-admin", act: "read", want: true},
		{name: "granted admin updates", subject: "user-admin", act: "update", want: true},
		{name: "auditor reads", subject: "user-audit", act: "read", want: true},
		{name: "auditor cannot update", subject: "user-audit", act: "update", want: false},
		{name: "token role admin", subject: "someone", roles: []string{"admin"}, act: "update", want: true},
		{name: "unknown subject", subject: "someone", act: "read", want: false},
		{name: "empty subject", act: "read", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Allowed(tt.subject, tt.roles, "otp_config", tt.act)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAdapter_Malformed(t *testing.T) {
	_, err := NewAdapter([]string{"admin|otp_config"}, nil)
	assert.ErrorIs(t, err, ErrMalformedRule)

	_, err = NewAdapter(nil, []string{"no-role"})
	assert.ErrorIs(t, err, ErrMalformedRule)

	_, err = NewAdapter([]string{"admin| |read"}, nil)
	assert.ErrorIs(t, err, ErrMalformedRule)
}

func TestAdapter_ReadOnly(t *testing.T) {
	a, err := NewAdapter(nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, a.SavePolicy(nil), ErrReadOnly)
	assert.ErrorIs(t, a.AddPolicy("p", "p", []string{"x"}), ErrReadOnly)
	assert.ErrorIs(t, a.RemovePolicy("p", "p", []string{"x"}), ErrReadOnly)
	assert.ErrorIs(t, a.RemoveFilteredPolicy("p", "p", 0, "x"), ErrReadOnly)
}
