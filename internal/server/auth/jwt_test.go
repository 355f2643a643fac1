package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	i := NewIssuer("secret", time.Hour)

	token, err := i.Generate("acc-1", "ten-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := i.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "ten-1", claims.TenantID)
	assert.Len(t, claims.ID, 32)
}

func TestIssuer_UniqueTokenIDs(t *testing.T) {
	i := NewIssuer("secret", time.Hour)

	t1, err := i.Generate("acc-1", "ten-1")
	require.NoError(t, err)
	t2, err := i.Generate("acc-1", "ten-1")
	require.NoError(t, err)

	c1, err := i.Parse(t1)
	require.NoError(t, err)
	c2, err := i.Parse(t2)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestIssuer_WrongSecret(t *testing.T) {
	token, err := NewIssuer("secret", time.Hour).Generate("acc-1", "ten-1")
	require.NoError(t, err)

	_, err = NewIssuer("other", time.Hour).Parse(token)
	assert.Error(t, err)
}

func TestIssuer_Expired(t *testing.T) {
	token, err := NewIssuer("secret", -time.Minute).Generate("acc-1", "ten-1")
	require.NoError(t, err)

	_, err = NewIssuer("secret", -time.Minute).Parse(token)
	assert.Error(t, err)
}

func TestIssuer_Garbage(t *testing.T) {
	_, err := NewIssuer("secret", time.Hour).Parse("not.a.token")
	assert.Error(t, err)
}
