package strcase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToLowerSnake(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"Code":         "code",
		"OperationID":  "operation_id",
		"HTTPServer":   "http_server",
		"CodeLength":   "code_length",
		"Address2Line": "address2_line",
	}

	for in, want := range tests {
		assert.Equal(t, want, ToLowerSnake(in), in)
	}
}
