package client

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aequitas-ai/lvcop-go/pkg/logger"
	"github.com/aequitas-ai/lvcop-go/pkg/testutil"
	"github.com/aequitas-ai/lvcop-go/session"
)

// recordingNotifier captures published failures for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	failures []Failure
}

func (r *recordingNotifier) Publish(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func (r *recordingNotifier) all() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Failure(nil), r.failures...)
}

type panickyNotifier struct{}

func (panickyNotifier) Publish(Failure) { panic("sink exploded") }

func newTestClient(t *testing.T, baseURL string, mutate ...func(*Config)) *Client {
	t.Helper()
	store, err := session.NewStore(context.Background(), session.StoreConfig{})
	require.NoError(t, err)

	cfg := Config{
		BaseURL:  baseURL,
		Sessions: store,
		Logger:   logger.Nop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func login(t *testing.T, ctx context.Context, c *Client) {
	t.Helper()
	_, err := c.Auth().Login(ctx, "analyst@aequitas.ai", "password")
	require.NoError(t, err)
}

func TestDo_SuccessEnvelope(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.APIVersion = "1.4.0"
	stub.Handle(http.MethodGet, "/forecasts", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteList(w, r, []map[string]any{{"id": "f-1"}, {"id": "f-2"}}, 1, 20, 2)
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	env, err := c.Do(ctx, Request{Path: "/forecasts", Operation: "forecasts.list"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, env.Status)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, "1.4.0", env.ServerVersion)
	assert.Greater(t, env.ProcessTime, time.Duration(0))
	assert.Greater(t, env.Duration, time.Duration(0))
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.TotalItems)

	var items []struct {
		ID string `json:"id"`
	}
	require.NoError(t, env.Decode(&items))
	assert.Len(t, items, 2)
}

// The subsystem's key invariant: N concurrent calls hitting an expired
// credential produce exactly one refresh call, and all N succeed on the
// rotated pair.
func TestDo_ConcurrentUnauthorizedSingleRefresh(t *testing.T) {
	const workers = 8

	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.RefreshDelay = 100 * time.Millisecond

	// Hold every stale-credential request at a barrier so all workers
	// observe their 401 at the same instant.
	var arrived sync.WaitGroup
	arrived.Add(workers)
	stub.Handle(http.MethodGet, "/ping", func(w http.ResponseWriter, r *http.Request) {
		access, _ := stub.Tokens()
		if r.Header.Get("Authorization") != "Bearer "+access {
			arrived.Done()
			arrived.Wait()
			stub.WriteDetail(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"pong": true}, "")
	})

	notifier := &recordingNotifier{}
	c := newTestClient(t, stub.URL(), func(cfg *Config) { cfg.Notifier = notifier })
	login(t, ctx, c)
	require.EqualValues(t, 0, stub.RefreshCalls())

	stub.ExpireAccess()

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Do(ctx, Request{Path: "/ping", Operation: "ping"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}
	assert.EqualValues(t, 1, stub.RefreshCalls())
	assert.Empty(t, notifier.all())

	// The store holds the rotated pair.
	snap, ok := c.Sessions().Snapshot()
	require.True(t, ok)
	access, refresh := stub.Tokens()
	assert.Equal(t, access, snap.AccessToken)
	assert.Equal(t, refresh, snap.RefreshToken)
}

// A request that keeps failing with 401 after its one refresh-and-retry
// terminates; it must not trigger a second refresh.
func TestDo_RepeatedUnauthorizedIsTerminal(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.Handle(http.MethodGet, "/always-401", func(w http.ResponseWriter, r *http.Request) {
		stub.WriteDetail(w, r, http.StatusUnauthorized, "Invalid or expired token")
	})

	notifier := &recordingNotifier{}
	c := newTestClient(t, stub.URL(), func(cfg *Config) { cfg.Notifier = notifier })
	login(t, ctx, c)

	_, err := c.Do(ctx, Request{Path: "/always-401", Operation: "broken.call"})
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.EqualValues(t, 1, stub.RefreshCalls())

	published := notifier.all()
	require.Len(t, published, 1)
	assert.Equal(t, CodeUnauthorized, published[0].Code)
	assert.Equal(t, "broken.call", published[0].Operation)

	// The refresh succeeded, so the session survives with rotated tokens.
	snap, ok := c.Sessions().Snapshot()
	require.True(t, ok)
	access, _ := stub.Tokens()
	assert.Equal(t, access, snap.AccessToken)
}

func TestDo_RefreshFailureClearsSession(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.Handle(http.MethodGet, "/ping", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"pong": true}, "")
	}))

	notifier := &recordingNotifier{}
	c := newTestClient(t, stub.URL(), func(cfg *Config) { cfg.Notifier = notifier })
	login(t, ctx, c)

	stub.RefreshStatus = http.StatusUnauthorized
	stub.ExpireAccess()

	_, err := c.Do(ctx, Request{Path: "/ping", Operation: "ping"})
	require.Error(t, err)
	assert.True(t, IsRefreshFailed(err))
	assert.EqualValues(t, 1, stub.RefreshCalls())

	// A failed refresh means the session is gone, not just one call.
	_, ok := c.Sessions().Snapshot()
	assert.False(t, ok)

	published := notifier.all()
	require.Len(t, published, 1)
	assert.Equal(t, CodeRefreshFailed, published[0].Code)
	assert.Equal(t, "ping", published[0].Operation)

	// With no credentials left, later calls fail fast without touching
	// the refresh endpoint again.
	_, err = c.Do(ctx, Request{Path: "/ping", Operation: "ping"})
	require.Error(t, err)
	assert.True(t, IsRefreshFailed(err))
	assert.EqualValues(t, 1, stub.RefreshCalls())
}

// A logout that lands while a refresh is in flight wins: the rotated pair
// is discarded and the session stays cleared.
func TestDo_LogoutDuringRefreshWins(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.RefreshDelay = 150 * time.Millisecond
	stub.Handle(http.MethodGet, "/ping", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"pong": true}, "")
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)
	stub.ExpireAccess()

	done := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, Request{Path: "/ping", Operation: "ping"})
		done <- err
	}()

	// Let the request hit its 401 and start the refresh, then sign out.
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, c.Sessions().Clear(ctx))

	err := <-done
	require.Error(t, err)
	assert.True(t, IsRefreshFailed(err))

	_, ok := c.Sessions().Snapshot()
	assert.False(t, ok, "the discarded refresh must not resurrect the session")
	assert.EqualValues(t, 1, stub.RefreshCalls())
}

func TestDo_Timeout(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.HandleRoot(http.MethodGet, "/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
			stub.WriteBare(w, r, http.StatusOK, map[string]any{"ok": true})
		}
	})

	notifier := &recordingNotifier{}
	c := newTestClient(t, stub.URL(), func(cfg *Config) { cfg.Notifier = notifier })

	start := time.Now()
	_, err := c.Do(ctx, Request{
		Path:     "/slow",
		NoAuth:   true,
		NoPrefix: true,
		Timeout:  50 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, 250*time.Millisecond, "deadline must cancel the underlying call")

	published := notifier.all()
	require.Len(t, published, 1)
	assert.Equal(t, CodeTimeout, published[0].Code)
}

func TestDo_CallerCancellation(t *testing.T) {
	stub := testutil.NewAPIStub(t)
	stub.HandleRoot(http.MethodGet, "/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(300 * time.Millisecond):
			stub.WriteBare(w, r, http.StatusOK, map[string]any{"ok": true})
		}
	})

	c := newTestClient(t, stub.URL())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := c.Do(ctx, Request{Path: "/slow", NoAuth: true, NoPrefix: true})
	require.Error(t, err)
	assert.True(t, IsCanceled(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_RateLimited(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.Handle(http.MethodGet, "/throttled", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteRateLimited(w, r, 30)
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	_, err := c.Do(ctx, Request{Path: "/throttled", Operation: "throttled.call"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, f.RetryAfter)
	assert.True(t, IsRetryable(f))
	// Rate limiting is terminal for the pipeline, no refresh happens.
	assert.EqualValues(t, 0, stub.RefreshCalls())
}

func TestDo_NetworkError(t *testing.T) {
	// Nothing listens on this port.
	c := newTestClient(t, "http://127.0.0.1:1")

	_, err := c.Do(context.Background(), Request{Path: "/ping", NoAuth: true})
	require.Error(t, err)
	assert.Equal(t, CodeNetworkError, CodeOf(err))

	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.NotNil(t, f.Unwrap())
}

func TestDo_ProactiveRefresh(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.Handle(http.MethodGet, "/ping", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"pong": true}, "")
	}))

	c := newTestClient(t, stub.URL(), func(cfg *Config) { cfg.RefreshEarly = time.Minute })

	// Seed a session whose access token is already useless but whose
	// refresh token is valid, expiring inside the proactive window.
	_, refresh := stub.Tokens()
	require.NoError(t, c.Sessions().Set(ctx, session.Session{
		Credentials: session.Credentials{AccessToken: "long-stale", RefreshToken: refresh},
		TokenType:   "bearer",
		ExpiresAt:   time.Now().Add(5 * time.Second),
	}))

	_, err := c.Do(ctx, Request{Path: "/ping", Operation: "ping"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, stub.RefreshCalls())

	snap, ok := c.Sessions().Snapshot()
	require.True(t, ok)
	access, _ := stub.Tokens()
	assert.Equal(t, access, snap.AccessToken)
	assert.False(t, snap.ExpiresWithin(10*time.Minute), "rotated pair carries the new expiry")
}

func TestDo_RefreshKeepsOldRefreshTokenWhenOmitted(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.KeepRefreshToken = true
	stub.Handle(http.MethodGet, "/ping", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"pong": true}, "")
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)

	before, ok := c.Sessions().Snapshot()
	require.True(t, ok)

	stub.ExpireAccess()
	_, err := c.Do(ctx, Request{Path: "/ping", Operation: "ping"})
	require.NoError(t, err)

	after, ok := c.Sessions().Snapshot()
	require.True(t, ok)
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
	assert.Equal(t, before.RefreshToken, after.RefreshToken,
		"a refresh response without a new refresh token keeps the old one")
}

func TestDo_NotifierPanicDoesNotChangeOutcome(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.Handle(http.MethodGet, "/broken", func(w http.ResponseWriter, r *http.Request) {
		stub.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "boom")
	})

	c := newTestClient(t, stub.URL(), func(cfg *Config) { cfg.Notifier = panickyNotifier{} })

	_, err := c.Do(ctx, Request{Path: "/broken", NoAuth: true, Operation: "broken.call"})
	require.Error(t, err)
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, CodeServerError, f.Code)
	assert.Equal(t, "INTERNAL_ERROR", f.ServerCode)
	assert.Equal(t, "boom", f.Message)
}

func TestDo_PrincipalSurvivesRefresh(t *testing.T) {
	ctx := context.Background()
	stub := testutil.NewAPIStub(t)
	stub.Handle(http.MethodGet, "/ping", stub.Protected(func(w http.ResponseWriter, r *http.Request) {
		stub.WriteWrapped(w, r, http.StatusOK, map[string]any{"pong": true}, "")
	}))

	c := newTestClient(t, stub.URL())
	login(t, ctx, c)
	stub.ExpireAccess()

	_, err := c.Do(ctx, Request{Path: "/ping", Operation: "ping"})
	require.NoError(t, err)

	snap, ok := c.Sessions().Snapshot()
	require.True(t, ok)
	require.NotNil(t, snap.Principal)
	assert.Equal(t, "analyst@aequitas.ai", snap.Principal.Email)
	assert.Equal(t, "org-1", snap.Principal.OrgID)
}
