package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// APIStub is an in-process fake of the LV-COP platform API. It serves the
// auth endpoints with rotating bearer tokens plus the root health probes,
// and lets tests script additional routes and failure modes.
//
// Token model: the stub accepts exactly one access token and one refresh
// token at a time. Tokens are deterministic ("access-1", "refresh-1", ...)
// and rotate together on login, register, and refresh. ExpireAccess
// invalidates the outstanding access token without telling the client,
// which makes the next authenticated call fail with 401.
type APIStub struct {
	Server *httptest.Server
	// Router handles root-level paths such as /health.
	Router *mux.Router
	// API is the /api/v1 subrouter that scripted domain routes attach to.
	API *mux.Router

	// User is the principal payload embedded in token grants.
	User map[string]any
	// APIVersion is emitted as X-Api-Version on every response when set.
	APIVersion string

	// LoginStatus forces login to fail with the given status when non-zero.
	LoginStatus int
	// RefreshStatus forces refresh to fail with the given status when non-zero.
	RefreshStatus int
	// RefreshDelay is latency injected into refresh handling.
	RefreshDelay time.Duration
	// KeepRefreshToken makes refresh rotate only the access token and omit
	// refresh_token from the response.
	KeepRefreshToken bool

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	rotation     int

	refreshCalls atomic.Int64
	loginCalls   atomic.Int64
}

// NewAPIStub starts a stub server and registers the standard routes.
// The server is shut down via t.Cleanup.
func NewAPIStub(t *testing.T) *APIStub {
	t.Helper()

	s := &APIStub{
		Router: mux.NewRouter(),
		User: map[string]any{
			"id":         "u-1",
			"email":      "analyst@aequitas.ai",
			"first_name": "Avery",
			"last_name":  "Chen",
			"role":       "analyst",
			"org_id":     "org-1",
			"tier":       "professional",
		},
	}
	s.API = s.Router.PathPrefix("/api/v1").Subrouter()
	s.rotateLocked()

	s.Router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/health/ready", s.handleReady).Methods(http.MethodGet)
	s.API.HandleFunc("/auth/login/json", s.handleLogin).Methods(http.MethodPost)
	s.API.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	s.API.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.API.HandleFunc("/auth/logout", s.Protected(s.handleLogout)).Methods(http.MethodPost)
	s.API.HandleFunc("/auth/me", s.Protected(s.handleMe)).Methods(http.MethodGet)

	s.Server = httptest.NewServer(s.Router)
	t.Cleanup(s.Server.Close)
	return s
}

// URL returns the stub server's base URL.
func (s *APIStub) URL() string {
	return s.Server.URL
}

// Tokens returns the currently accepted access and refresh tokens.
func (s *APIStub) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// ExpireAccess invalidates the outstanding access token while keeping the
// refresh token valid.
func (s *APIStub) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation++
	s.accessToken = fmt.Sprintf("access-%d", s.rotation)
}

// RefreshCalls reports how many times the refresh endpoint was hit.
func (s *APIStub) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// LoginCalls reports how many times the login endpoint was hit.
func (s *APIStub) LoginCalls() int64 {
	return s.loginCalls.Load()
}

// Handle registers a scripted route under /api/v1.
func (s *APIStub) Handle(method, path string, h http.HandlerFunc) {
	s.API.HandleFunc(path, h).Methods(method)
}

// HandleRoot registers a scripted route at the server root.
func (s *APIStub) HandleRoot(method, path string, h http.HandlerFunc) {
	s.Router.HandleFunc(path, h).Methods(method)
}

// Protected wraps a handler with bearer-token validation against the
// current access token.
func (s *APIStub) Protected(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			s.WriteDetail(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h(w, r)
	}
}

func (s *APIStub) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return token == s.accessToken
}

func (s *APIStub) rotateLocked() {
	s.rotation++
	s.accessToken = fmt.Sprintf("access-%d", s.rotation)
	s.refreshToken = fmt.Sprintf("refresh-%d", s.rotation)
}

func (s *APIStub) grant(includeRefresh bool) map[string]any {
	g := map[string]any{
		"access_token": s.accessToken,
		"token_type":   "bearer",
		"expires_in":   1800,
		"user":         s.User,
	}
	if includeRefresh {
		g["refresh_token"] = s.refreshToken
	}
	return g
}

func (s *APIStub) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)
	if s.LoginStatus != 0 {
		s.WriteDetail(w, r, s.LoginStatus, "Incorrect email or password")
		return
	}
	s.mu.Lock()
	s.rotateLocked()
	g := s.grant(true)
	s.mu.Unlock()
	s.WriteWrapped(w, r, http.StatusOK, g, "Login successful")
}

func (s *APIStub) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("email") == "" || r.URL.Query().Get("password") == "" {
		s.WriteDetail(w, r, http.StatusUnprocessableEntity, []map[string]any{
			{"loc": []any{"query", "email"}, "msg": "field required", "type": "value_error.missing"},
		})
		return
	}
	s.mu.Lock()
	s.rotateLocked()
	g := s.grant(true)
	s.mu.Unlock()
	s.WriteWrapped(w, r, http.StatusCreated, g, "Registration successful")
}

func (s *APIStub) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	if s.RefreshDelay > 0 {
		time.Sleep(s.RefreshDelay)
	}
	if s.RefreshStatus != 0 {
		s.WriteDetail(w, r, s.RefreshStatus, "Invalid or expired token")
		return
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.WriteDetail(w, r, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	s.mu.Lock()
	if body.RefreshToken != s.refreshToken {
		s.mu.Unlock()
		s.WriteDetail(w, r, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	if s.KeepRefreshToken {
		s.rotation++
		s.accessToken = fmt.Sprintf("access-%d", s.rotation)
	} else {
		s.rotateLocked()
	}
	g := s.grant(!s.KeepRefreshToken)
	s.mu.Unlock()

	s.WriteBare(w, r, http.StatusOK, g)
}

func (s *APIStub) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.WriteWrapped(w, r, http.StatusOK, map[string]any{}, "Logged out successfully")
}

func (s *APIStub) handleMe(w http.ResponseWriter, r *http.Request) {
	s.WriteBare(w, r, http.StatusOK, map[string]any{
		"session_id":  GenerateID(),
		"user_id":     s.User["id"],
		"email":       s.User["email"],
		"org_id":      s.User["org_id"],
		"tier":        s.User["tier"],
		"role":        s.User["role"],
		"permissions": []string{"forecasts:read", "positions:read"},
		"expires_at":  Now().Add(30 * time.Minute).Format(time.RFC3339),
		"xp_total":    1250,
		"level":       5,
		"streak_days": 3,
	})
}

func (s *APIStub) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.WriteBare(w, r, http.StatusOK, map[string]any{
		"status":      "healthy",
		"app":         "LV-COP API",
		"version":     "1.0.0",
		"environment": "test",
	})
}

func (s *APIStub) handleReady(w http.ResponseWriter, r *http.Request) {
	s.WriteBare(w, r, http.StatusOK, map[string]any{
		"status": "ready",
		"checks": map[string]bool{"database": true, "redis": true},
	})
}

func (s *APIStub) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = GenerateID()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Process-Time", "0.0010")
	if s.APIVersion != "" {
		w.Header().Set("X-Api-Version", s.APIVersion)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteWrapped writes a platform success envelope around data.
func (s *APIStub) WriteWrapped(w http.ResponseWriter, r *http.Request, status int, data any, message string) {
	s.writeJSON(w, r, status, map[string]any{
		"success": true,
		"data":    data,
		"message": message,
	})
}

// WriteList writes a platform success envelope with pagination metadata.
func (s *APIStub) WriteList(w http.ResponseWriter, r *http.Request, items any, page, pageSize, totalItems int) {
	totalPages := (totalItems + pageSize - 1) / pageSize
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"success": true,
		"data":    items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": totalItems,
			"total_pages": totalPages,
			"has_next":    page < totalPages,
			"has_prev":    page > 1,
		},
	})
}

// WriteBare writes v as the whole response body, the shape used by the
// token and health endpoints.
func (s *APIStub) WriteBare(w http.ResponseWriter, r *http.Request, status int, v any) {
	s.writeJSON(w, r, status, v)
}

// WriteError writes a platform error envelope.
func (s *APIStub) WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.writeJSON(w, r, status, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// WriteDetail writes a framework-level error body, the shape emitted by
// validation and auth dependencies.
func (s *APIStub) WriteDetail(w http.ResponseWriter, r *http.Request, status int, detail any) {
	s.writeJSON(w, r, status, map[string]any{"detail": detail})
}

// WriteRateLimited writes a 429 with throttling headers.
func (s *APIStub) WriteRateLimited(w http.ResponseWriter, r *http.Request, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", "100")
	w.Header().Set("X-RateLimit-Remaining", "0")
	s.WriteDetail(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
}

// Sequence returns a handler that serves each handler in turn, repeating
// the last one once the script is exhausted.
func Sequence(handlers ...http.HandlerFunc) http.HandlerFunc {
	var n atomic.Int64
	return func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(handlers) {
			i = len(handlers) - 1
		}
		handlers[i](w, r)
	}
}
