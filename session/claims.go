package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of LV-COP access token claims useful on the
// client: identity for display, expiry for proactive refresh.
type TokenClaims struct {
	Subject   string
	Email     string
	OrgID     string
	Role      string
	Tier      string
	TokenType string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// PeekClaims decodes a JWT without verifying its signature. Verification is
// the platform's job; the client only reads claims for display and to learn
// the token's expiry when the login response does not carry one.
func PeekClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("session: parse token: %w", err)
	}

	tc := &TokenClaims{
		Subject:   getStringClaim(claims, "sub"),
		Email:     getStringClaim(claims, "email"),
		OrgID:     getStringClaim(claims, "org_id"),
		Role:      getStringClaim(claims, "role"),
		Tier:      getStringClaim(claims, "tier"),
		TokenType: getStringClaim(claims, "type"),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tc.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tc.IssuedAt = iat.Time
	}
	return tc, nil
}

func getStringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}
