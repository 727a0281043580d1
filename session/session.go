// Package session manages the LV-COP credential pair and authenticated
// principal. The Store owns the only mutable copy; everything else works
// with immutable snapshots taken at the moment of use. Sessions survive
// process restarts through a pluggable Storage backend.
package session

import (
	"time"
)

// Credentials is the access/refresh token pair identifying a session.
// The pair is replaced wholesale on login and refresh, never field by field.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// HasAccess reports whether an access token is present.
func (c Credentials) HasAccess() bool { return c.AccessToken != "" }

// HasRefresh reports whether a refresh token is present.
func (c Credentials) HasRefresh() bool { return c.RefreshToken != "" }

// Principal is the authenticated user's identity and entitlement data.
// Its lifetime is tied to the credential pair: set together, cleared together.
type Principal struct {
	UserID      string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Role        string   `json:"role,omitempty"`
	OrgID       string   `json:"org_id,omitempty"`
	Tier        string   `json:"tier,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func (p *Principal) clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Permissions != nil {
		cp.Permissions = append([]string(nil), p.Permissions...)
	}
	return &cp
}

// Session is one authenticated session: the credential pair, the token
// metadata the platform reported, and the principal it belongs to.
type Session struct {
	Credentials
	TokenType string     `json:"token_type,omitempty"`
	ExpiresAt time.Time  `json:"expires_at,omitempty"`
	Principal *Principal `json:"principal,omitempty"`
}

// ExpiresWithin reports whether the access token is known to expire within d.
// It returns false when no expiry is known.
func (s Session) ExpiresWithin(d time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(s.ExpiresAt) <= d
}

// Snapshot is an immutable view of the store taken at a single point in
// time. Generation identifies the store state the snapshot was taken from;
// conditional writes use it to detect that the session was replaced or
// cleared in the meantime.
type Snapshot struct {
	Credentials
	TokenType  string
	ExpiresAt  time.Time
	Principal  *Principal
	Generation uint64
}

// ExpiresWithin reports whether the snapshot's access token is known to
// expire within d.
func (s Snapshot) ExpiresWithin(d time.Duration) bool {
	return Session{ExpiresAt: s.ExpiresAt}.ExpiresWithin(d)
}
