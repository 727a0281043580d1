package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aequitas-ai/lvcop-go/session"
)

// User is the account profile the platform attaches to token grants.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	OrgID     string `json:"org_id"`
	Tier      string `json:"tier"`
}

func (u *User) principal() *session.Principal {
	if u == nil {
		return nil
	}
	return &session.Principal{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		OrgID:     u.OrgID,
		Tier:      u.Tier,
	}
}

// SessionInfo describes the current authenticated session as the platform
// sees it, entitlements and gamification counters included.
type SessionInfo struct {
	SessionID   string   `json:"session_id"`
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	OrgID       string   `json:"org_id"`
	Tier        string   `json:"tier"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	ExpiresAt   Time     `json:"expires_at"`
	XPTotal     int      `json:"xp_total"`
	Level       int      `json:"level"`
	StreakDays  int      `json:"streak_days"`
}

// tokenGrant is the wire shape of login, register and refresh responses.
// The refresh endpoint omits user and may omit refresh_token.
type tokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	User         *User  `json:"user"`
}

// sessionFromGrant builds a Session from a token grant. The principal falls
// back to the given one when the grant carries no user, which is how a
// refresh preserves identity across token rotation.
func sessionFromGrant(grant tokenGrant, fallback *session.Principal) (session.Session, error) {
	if grant.AccessToken == "" {
		return session.Session{}, fmt.Errorf("lvcop: token grant carried no access token")
	}

	principal := grant.User.principal()
	if principal == nil {
		principal = fallback
	}

	tokenType := grant.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	var expiresAt time.Time
	if grant.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(grant.ExpiresIn) * time.Second)
	} else if claims, err := session.PeekClaims(grant.AccessToken); err == nil {
		expiresAt = claims.ExpiresAt
	}

	return session.Session{
		Credentials: session.Credentials{
			AccessToken:  grant.AccessToken,
			RefreshToken: grant.RefreshToken,
		},
		TokenType: tokenType,
		ExpiresAt: expiresAt,
		Principal: principal,
	}, nil
}

// performRefresh is the coordinator's network step: exchange the refresh
// credential for a rotated pair. It bypasses Do so the refresh call itself
// can never recurse into another refresh.
func (c *Client) performRefresh(ctx context.Context, snap session.Snapshot) (session.Session, error) {
	env, f := c.dispatch(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/refresh",
		Operation: "auth.refresh",
		Body:      map[string]string{"refresh_token": snap.RefreshToken},
		NoAuth:    true,
	}, true)
	if f != nil {
		return session.Session{}, f
	}

	var grant tokenGrant
	if err := env.Decode(&grant); err != nil {
		return session.Session{}, err
	}
	sess, err := sessionFromGrant(grant, snap.Principal)
	if err != nil {
		return session.Session{}, err
	}
	if !sess.HasRefresh() {
		sess.RefreshToken = snap.RefreshToken
	}
	return sess, nil
}

// AuthService groups the authentication endpoints.
type AuthService struct {
	c *Client
}

// Login authenticates with email and password and seeds the session store
// with the returned credential pair and principal.
func (s *AuthService) Login(ctx context.Context, email, password string) (*session.Session, error) {
	env, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/login/json",
		Operation: "auth.login",
		Body:      map[string]string{"email": email, "password": password},
		NoAuth:    true,
	})
	if err != nil {
		return nil, err
	}

	var grant tokenGrant
	if err := env.Decode(&grant); err != nil {
		return nil, err
	}
	sess, err := sessionFromGrant(grant, nil)
	if err != nil {
		return nil, err
	}
	if err := s.c.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	s.c.log.WithField("email", email).Info("Logged in")
	return &sess, nil
}

// RegisterParams describes a new account. OrganizationName is optional;
// when set, a new organization is created and the user becomes its admin.
type RegisterParams struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	OrganizationName string
}

// Register creates an account and seeds the session store with the
// credential pair the platform grants on signup.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*session.Session, error) {
	q := url.Values{}
	q.Set("email", p.Email)
	q.Set("password", p.Password)
	if p.FirstName != "" {
		q.Set("first_name", p.FirstName)
	}
	if p.LastName != "" {
		q.Set("last_name", p.LastName)
	}
	if p.OrganizationName != "" {
		q.Set("organization_name", p.OrganizationName)
	}

	env, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/register",
		Operation: "auth.register",
		Query:     q,
		NoAuth:    true,
	})
	if err != nil {
		return nil, err
	}

	var grant tokenGrant
	if err := env.Decode(&grant); err != nil {
		return nil, err
	}
	sess, err := sessionFromGrant(grant, nil)
	if err != nil {
		return nil, err
	}
	if err := s.c.sessions.Set(ctx, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Logout tears the session down. The local clear is the primary outcome;
// the server-side invalidation is best effort, and its failure neither
// stops nor undoes the clear.
func (s *AuthService) Logout(ctx context.Context) error {
	if _, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/logout",
		Operation: "auth.logout",
	}); err != nil {
		s.c.log.WithError(err).Debug("Server logout failed, clearing local session anyway")
	}
	return s.c.sessions.Clear(ctx)
}

// Me returns the platform's view of the current session, including the
// permission set that is not part of the token grant.
func (s *AuthService) Me(ctx context.Context) (*SessionInfo, error) {
	env, err := s.c.Do(ctx, Request{
		Path:      "/auth/me",
		Operation: "auth.me",
	})
	if err != nil {
		return nil, err
	}
	var info SessionInfo
	if err := env.Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ChangePassword changes the authenticated user's password.
func (s *AuthService) ChangePassword(ctx context.Context, current, newPassword string) error {
	_, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/password/change",
		Operation: "auth.password_change",
		Body: map[string]string{
			"current_password": current,
			"new_password":     newPassword,
			"confirm_password": newPassword,
		},
	})
	return err
}

// RequestPasswordReset asks the platform to send a reset link. The platform
// answers identically whether or not the email exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/password/reset",
		Operation: "auth.password_reset",
		Body:      map[string]string{"email": email},
		NoAuth:    true,
	})
	return err
}

// ConfirmPasswordReset redeems a reset token for a new password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	_, err := s.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/password/reset/confirm",
		Operation: "auth.password_reset_confirm",
		Body: map[string]string{
			"token":            token,
			"new_password":     newPassword,
			"confirm_password": newPassword,
		},
		NoAuth: true,
	})
	return err
}
