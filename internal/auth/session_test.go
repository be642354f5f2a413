package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	Init()

	token, err := CreateJWT(42)
	require.NoError(t, err)

	userID, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestJWTRejectsGarbage(t *testing.T) {
	Init()

	_, err := AuthenticateJWT("not-a-token")
	assert.Error(t, err)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := CreateHash("hunter2", Params)
	require.NoError(t, err)

	ok, err := ComparePasswordAndHash("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeHashRejectsMalformed(t *testing.T) {
	_, _, _, err := DecodeHash("$argon2id$bogus")
	assert.ErrorIs(t, err, ErrInvalidHash)
}
