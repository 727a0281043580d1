package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aequitas-ai/lvcop-go/pkg/logger"
	"github.com/aequitas-ai/lvcop-go/session"
)

// refreshCall is one in-flight token refresh. Waiters block on done; err is
// written before done closes and never touched afterwards.
type refreshCall struct {
	done chan struct{}
	err  *Failure
}

// refresher serializes token refreshes behind a single slot: while one
// refresh is in flight, every caller that observes an expired credential
// joins it instead of starting another. The slot is emptied before the
// outcome is propagated, so a credential that expires later can start a
// fresh refresh.
//
// The refresh itself runs on a detached context with its own timeout. A
// waiter whose context settles first abandons the wait with its own
// failure; the shared refresh keeps running for the others.
type refresher struct {
	mu       sync.Mutex
	inflight *refreshCall

	store   *session.Store
	perform func(ctx context.Context, snap session.Snapshot) (session.Session, error)
	timeout time.Duration
	log     *logger.Logger
	observe func(outcome string)
}

func newRefresher(store *session.Store, perform func(context.Context, session.Snapshot) (session.Session, error), timeout time.Duration, log *logger.Logger, observe func(string)) *refresher {
	return &refresher{
		store:   store,
		perform: perform,
		timeout: timeout,
		log:     log,
		observe: observe,
	}
}

// refresh joins or starts the in-flight refresh and blocks until it
// settles. nil means the store now holds a rotated credential pair; any
// other outcome is a failure with no session left behind.
func (r *refresher) refresh(ctx context.Context) *Failure {
	r.mu.Lock()
	call := r.inflight
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		r.inflight = call
		go r.run(call)
	}
	r.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return transportFailure("", "", ctx.Err())
	}
}

func (r *refresher) run(call *refreshCall) {
	err := r.execute()

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()

	call.err = err
	close(call.done)
}

func (r *refresher) execute() *Failure {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	snap, ok := r.store.Snapshot()
	if !ok || !snap.HasRefresh() {
		if ok {
			r.clearIfCurrent(ctx, snap.Generation)
		}
		r.outcome("no_credential")
		return &Failure{Code: CodeRefreshFailed, Message: "no refresh credential"}
	}

	r.log.Debug("Refreshing access token")
	sess, err := r.perform(ctx, snap)
	if err != nil {
		r.clearIfCurrent(ctx, snap.Generation)
		r.outcome("failure")
		return &Failure{Code: CodeRefreshFailed, Message: "token refresh failed", cause: err}
	}

	switch err := r.store.SetIfCurrent(ctx, snap.Generation, sess); {
	case errors.Is(err, session.ErrStale):
		// A logout or newer login landed mid-refresh and wins; the
		// rotated pair must not resurrect the replaced session.
		r.outcome("discarded")
		r.log.Info("Discarding refresh result, session changed during refresh")
		return &Failure{Code: CodeRefreshFailed, Message: "session changed during refresh"}
	case err != nil:
		r.clearIfCurrent(ctx, snap.Generation)
		r.outcome("failure")
		return &Failure{Code: CodeRefreshFailed, Message: "refresh produced an unusable session", cause: err}
	}

	r.outcome("success")
	r.log.Debug("Access token refreshed")
	return nil
}

func (r *refresher) clearIfCurrent(ctx context.Context, gen uint64) {
	err := r.store.ClearIfCurrent(ctx, gen)
	if err != nil && !errors.Is(err, session.ErrStale) {
		r.log.WithError(err).Warn("Failed to clear session after refresh failure")
	}
}

func (r *refresher) outcome(name string) {
	if r.observe != nil {
		r.observe(name)
	}
}
