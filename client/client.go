// Package client implements the Go client for the Aequitas LV-COP platform
// API. Every call rides a session-aware pipeline: the current credential
// snapshot is attached before dispatch, expired credentials are rotated
// through a single-flight refresh coordinator with exactly one retry, and
// every failure converges to the normalized Failure shape. Typed service
// groups (Auth, Forecasts, Positions, Gamification) sit on top of the
// pipeline; Do remains available for endpoints they do not cover.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/aequitas-ai/lvcop-go/pkg/logger"
	"github.com/aequitas-ai/lvcop-go/session"
)

const (
	defaultAPIPrefix      = "/api/v1"
	defaultTimeout        = 15 * time.Second
	defaultRefreshTimeout = 10 * time.Second
	defaultMaxBodySize    = 1 << 20 // 1MiB
)

// Notifier receives every normalized failure the pipeline produces, after
// the failure is fully built and immediately before it is returned to the
// caller. Implementations must be non-blocking; the pipeline shields itself
// from panics but not from slow sinks.
type Notifier interface {
	Publish(Failure)
}

// Config holds client configuration. BaseURL is the only required field.
type Config struct {
	// BaseURL is the platform origin, e.g. "https://api.aequitas.ai".
	BaseURL string

	// APIPrefix is the versioned API mount point. Defaults to "/api/v1".
	APIPrefix string

	// HTTPClient dispatches requests. Defaults to a plain http.Client;
	// deadlines come from the pipeline, not from http.Client.Timeout.
	HTTPClient *http.Client

	// Sessions holds the credential pair. Defaults to a process-local
	// in-memory store.
	Sessions *session.Store

	// Timeout bounds each call, connection to fully read body. Per-call
	// Request.Timeout overrides it. Defaults to 15s.
	Timeout time.Duration

	// RefreshTimeout bounds the shared token refresh, which runs detached
	// from any caller's context. Defaults to 10s.
	RefreshTimeout time.Duration

	// RefreshEarly rotates credentials before dispatch when the access
	// token expires within this window. Zero disables proactive rotation;
	// expired tokens are then handled reactively on 401.
	RefreshEarly time.Duration

	// MaxBodyBytes caps response bodies to prevent memory exhaustion.
	// Defaults to 1MiB.
	MaxBodyBytes int64

	// RateLimit paces outgoing requests (requests per second) on the
	// client side. Zero disables pacing.
	RateLimit float64

	// RateBurst is the pacing burst size. Defaults to 1 when RateLimit is
	// set.
	RateBurst int

	// Notifier receives normalized failures. Nil disables notification.
	Notifier Notifier

	// Metrics receives pipeline observations. Nil disables them.
	Metrics *Metrics

	// Logger receives pipeline diagnostics. Defaults to a no-op logger.
	Logger *logger.Logger
}

// Client is the LV-COP API client. It is safe for concurrent use; all
// methods may be called from any goroutine.
type Client struct {
	baseURL      string
	apiPrefix    string
	sessions     *session.Store
	transport    *transport
	refresher    *refresher
	notifier     Notifier
	metrics      *Metrics
	log          *logger.Logger
	refreshEarly time.Duration
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lvcop: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("lvcop: BaseURL must be an absolute URL")
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = defaultAPIPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodySize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions, err = session.NewStore(context.Background(), session.StoreConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("lvcop: create session store: %w", err)
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiPrefix:    cfg.APIPrefix,
		sessions:     sessions,
		notifier:     cfg.Notifier,
		metrics:      cfg.Metrics,
		log:          cfg.Logger,
		refreshEarly: cfg.RefreshEarly,
	}
	c.transport = &transport{
		client:  cfg.HTTPClient,
		limiter: limiter,
		timeout: cfg.Timeout,
		maxBody: cfg.MaxBodyBytes,
	}
	c.refresher = newRefresher(sessions, c.performRefresh, cfg.RefreshTimeout, cfg.Logger, cfg.Metrics.observeRefresh)
	return c, nil
}

// Sessions returns the session store backing this client.
func (c *Client) Sessions() *session.Store { return c.sessions }

// Auth returns the authentication service group.
func (c *Client) Auth() *AuthService { return &AuthService{c: c} }

// Forecasts returns the liquidity forecast service group.
func (c *Client) Forecasts() *ForecastService { return &ForecastService{c: c} }

// Positions returns the portfolio position service group.
func (c *Client) Positions() *PositionService { return &PositionService{c: c} }

// Gamification returns the gamification service group.
func (c *Client) Gamification() *GamificationService { return &GamificationService{c: c} }

// HealthStatus is the platform liveness report.
type HealthStatus struct {
	Status      string `json:"status"`
	App         string `json:"app"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// Health checks platform liveness. It requires no session.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	env, err := c.Do(ctx, Request{
		Path:      "/health",
		Operation: "health",
		NoAuth:    true,
		NoPrefix:  true,
	})
	if err != nil {
		return nil, err
	}
	var hs HealthStatus
	if err := env.Decode(&hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

// ReadinessStatus is the platform readiness report with per-dependency
// checks.
type ReadinessStatus struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks"`
}

// Ready checks platform readiness. The platform answers 503 while any
// dependency check fails, which surfaces here as a server_error failure.
func (c *Client) Ready(ctx context.Context) (*ReadinessStatus, error) {
	env, err := c.Do(ctx, Request{
		Path:      "/health/ready",
		Operation: "health.ready",
		NoAuth:    true,
		NoPrefix:  true,
	})
	if err != nil {
		return nil, err
	}
	var rs ReadinessStatus
	if err := env.Decode(&rs); err != nil {
		return nil, err
	}
	return &rs, nil
}
