package crypto

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePickupCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GeneratePickupCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestGenerateNumericCodeRejectsBadLength(t *testing.T) {
	_, err := GenerateNumericCode(0)
	assert.Error(t, err)
	_, err = GenerateNumericCode(19)
	assert.Error(t, err)

	code, err := GenerateNumericCode(1)
	require.NoError(t, err)
	assert.Regexp(t, `^[1-9]$`, code)
}
