package common

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandIntInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n, err := RandIntInRange(100, 999)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100)
		assert.LessOrEqual(t, n, 999)
	}
}

func TestRandIntInRange_SingleValue(t *testing.T) {
	n, err := RandIntInRange(7, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestRandIntInRange_InvalidRange(t *testing.T) {
	_, err := RandIntInRange(10, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMakeRandHexString(t *testing.T) {
	s, err := MakeRandHexString(16)
	require.NoError(t, err)
	assert.Len(t, s, 32)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]+$`), s)
}

func TestWipeByteArray(t *testing.T) {
	b := []byte("secret")
	WipeByteArray(b)
	for _, c := range b {
		assert.Zero(t, c)
	}
	WipeByteArray(nil) // must not panic
}
