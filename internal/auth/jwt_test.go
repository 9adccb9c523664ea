package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	tok, err := SignJWT("ops", "s3cret", time.Minute)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	_, err = ParseJWT(tok, "other")
	assert.Error(t, err)
}

func TestParseJWT_Expired(t *testing.T) {
	tok, err := SignJWT("ops", "s3cret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(tok, "s3cret")
	assert.Error(t, err)
}

func TestSignJWT_EmptySecret(t *testing.T) {
	_, err := SignJWT("ops", "", time.Minute)
	assert.Error(t, err)
}
