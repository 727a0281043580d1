package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func TestPeekClaims(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	iat := time.Now().Truncate(time.Second)

	raw := signedToken(t, jwt.MapClaims{
		"sub":    "u-1",
		"email":  "analyst@aequitas.ai",
		"org_id": "org-1",
		"role":   "analyst",
		"tier":   "professional",
		"type":   "access",
		"exp":    exp.Unix(),
		"iat":    iat.Unix(),
	})

	claims, err := PeekClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "analyst@aequitas.ai", claims.Email)
	assert.Equal(t, "org-1", claims.OrgID)
	assert.Equal(t, "analyst", claims.Role)
	assert.Equal(t, "professional", claims.Tier)
	assert.Equal(t, "access", claims.TokenType)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.True(t, claims.IssuedAt.Equal(iat))
}

func TestPeekClaims_MissingOptionalClaims(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "u-1"})

	claims, err := PeekClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Empty(t, claims.Email)
	assert.True(t, claims.ExpiresAt.IsZero())
}

func TestPeekClaims_IgnoresSignature(t *testing.T) {
	// The platform verifies signatures; the client only peeks. A token
	// signed with an unknown key still yields its claims.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-2"})
	raw, err := token.SignedString([]byte("a key the client has never seen"))
	require.NoError(t, err)

	claims, err := PeekClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-2", claims.Subject)
}

func TestPeekClaims_Malformed(t *testing.T) {
	_, err := PeekClaims("not-a-jwt")
	assert.Error(t, err)

	_, err = PeekClaims("")
	assert.Error(t, err)
}
