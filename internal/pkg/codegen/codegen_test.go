package codegen

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerators_LengthAndDigits(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]+$`)

	for _, kind := range []string{KindCrypto, KindMath} {
		gen := New(kind)
		for length := MinLength; length <= MaxLength; length++ {
			t.Run(kind+"/"+strconv.Itoa(length), func(t *testing.T) {
				for range 50 {
					code, err := gen.Generate(length)
					require.NoError(t, err)
					assert.Len(t, code, length)
					assert.Regexp(t, digits, code)
				}
			})
		}
	}
}

func TestGenerators_OutOfRange(t *testing.T) {
	for _, gen := range []Generator{Crypto{}, Math{}} {
		for _, length := range []int{0, 3, 11} {
			_, err := gen.Generate(length)
			assert.ErrorIs(t, err, ErrInvalidLength)
		}
	}
}

func TestNew(t *testing.T) {
	assert.IsType(t, Crypto{}, New(""))
	assert.IsType(t, Crypto{}, New("whatever"))
	assert.IsType(t, Math{}, New(" MATH "))
}

func TestCrypto_Distribution(t *testing.T) {
	seen := make(map[byte]int)
	for range 200 {
		code, err := Crypto{}.Generate(MaxLength)
		require.NoError(t, err)
		for i := 0; i < len(code); i++ {
			seen[code[i]]++
		}
	}
	assert.Len(t, seen, 10)
}
