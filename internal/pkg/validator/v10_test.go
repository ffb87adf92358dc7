package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Subject     string `validate:"required"`
	Code        string `validate:"required,digits,min=4,max=10"`
	Channel     string `validate:"required,channel"`
	OperationID string `validate:"omitempty,max=10"`
}

func newTestValidator(t *testing.T) *V10Validator {
	t.Helper()

	v, err := NewV10Validator(Rule{
		Tag:     "channel",
		Message: "{0} must be a supported delivery channel",
		Check:   func(s string) bool { return s == "EMAIL" || s == "SMS" },
	})
	require.NoError(t, err)
	return v
}

func TestV10Validator_Validate(t *testing.T) {
	v := newTestValidator(t)

	assert.NoError(t, v.Validate(sample{Subject: "u1", Code: "123456", Channel: "EMAIL"}))

	err := v.Validate(sample{Code: "12a456", Channel: "FAX", OperationID: strings.Repeat("x", 11)})
	require.Error(t, err)

	var verr V10ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Subject is a required field", verr.Values()["subject"])
	assert.Equal(t, "Code must contain only digits", verr.Values()["code"])
	assert.Equal(t, "Channel must be a supported delivery channel", verr.Values()["channel"])
	assert.Contains(t, verr.Values(), "operation_id")
}

func TestV10Validator_NonStruct(t *testing.T) {
	v := newTestValidator(t)
	assert.Error(t, v.Validate("not a struct"))
}

func TestV10ValidationError_Error(t *testing.T) {
	assert.Equal(t, "validation error", V10ValidationError{}.Error())
	assert.Equal(t, `{"code":"bad"}`, V10ValidationError{"code": "bad"}.Error())
}
