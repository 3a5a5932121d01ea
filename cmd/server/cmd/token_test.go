package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whitecross/gateway/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func withTokenOpts(t *testing.T, mutate func()) {
	t.Helper()
	orig := tokenOpts
	t.Cleanup(func() { tokenOpts = orig })
	tokenOpts.secret = testSecret
	tokenOpts.subject = "7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0d"
	tokenOpts.role = "nurse"
	tokenOpts.ttl = time.Hour
	tokenOpts.issuer = "white-cross"
	if mutate != nil {
		mutate()
	}
}

func TestMintToken_ValidatesWithGatewaySecret(t *testing.T) {
	withTokenOpts(t, func() { tokenOpts.schoolID = "school-1" })

	token, err := mintToken()
	require.NoError(t, err)

	claims, err := auth.NewJWTManager(testSecret, time.Hour, "white-cross").Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0d", claims.Subject)
	assert.Equal(t, auth.RoleNurse, claims.Role)
	assert.Equal(t, "school-1", claims.SchoolID)
}

func TestMintToken_SecretFromEnv(t *testing.T) {
	withTokenOpts(t, func() { tokenOpts.secret = "" })
	t.Setenv("JWT_SECRET", testSecret)

	_, err := mintToken()
	require.NoError(t, err)
}

func TestMintToken_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	withTokenOpts(t, func() { tokenOpts.secret = "" })
	_, err := mintToken()
	require.ErrorContains(t, err, "signing secret required")

	withTokenOpts(t, func() { tokenOpts.subject = "" })
	_, err = mintToken()
	require.ErrorContains(t, err, "--sub")

	withTokenOpts(t, func() { tokenOpts.role = "janitor" })
	_, err = mintToken()
	require.ErrorContains(t, err, "unknown role")
}
