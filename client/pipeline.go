package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aequitas-ai/lvcop-go/internal/version"
	"github.com/aequitas-ai/lvcop-go/session"
)

// Do executes one logical API call through the session-aware pipeline:
// attach the current credential snapshot, dispatch, classify, and on a 401
// refresh the credential pair once and retry once. Every failure is
// published to the notifier before it is returned, and is always a
// *Failure.
func (c *Client) Do(ctx context.Context, req Request) (*Envelope, error) {
	start := time.Now()
	op := req.operation()

	env, f := c.dispatch(ctx, req, false)
	if f != nil {
		if f.Operation == "" {
			f.Operation = op
		}
		c.metrics.observeRequest(op, string(f.Code), time.Since(start))
		c.publish(f)
		return nil, f
	}
	c.metrics.observeRequest(op, "ok", time.Since(start))
	return env, nil
}

// dispatch runs the attempt/classify/refresh-retry state machine. The
// returned failure is owned by this call; shared outcomes from the refresh
// coordinator are cloned before they are decorated.
func (c *Client) dispatch(ctx context.Context, req Request, isRefresh bool) (*Envelope, *Failure) {
	op := req.operation()

	var snap session.Snapshot
	var authed bool
	if !req.NoAuth {
		snap, authed = c.sessions.Snapshot()

		// Proactive rotation: when the access token is about to expire
		// anyway, refresh before dispatch instead of paying for a 401.
		if authed && !isRefresh && c.refreshEarly > 0 &&
			snap.HasRefresh() && snap.ExpiresWithin(c.refreshEarly) {
			if rf := c.refresher.refresh(ctx); rf != nil {
				f := rf.clone()
				f.Operation = op
				return nil, f
			}
			snap, authed = c.sessions.Snapshot()
		}
	}

	token := ""
	if authed {
		token = snap.AccessToken
	}
	raw, requestID, f := c.attempt(ctx, req, op, token)
	if f != nil {
		return nil, f
	}

	if raw.Status >= 200 && raw.Status < 300 {
		return newEnvelope(raw, requestID), nil
	}

	// A 401 on an authenticated call is the one recoverable failure:
	// rotate the credential pair and retry exactly once. Unauthenticated
	// calls and the refresh call itself terminate here, which is what
	// keeps a structurally invalid request from looping forever.
	if raw.Status == http.StatusUnauthorized && !req.NoAuth && !isRefresh {
		c.log.WithField("operation", op).Debug("Received 401, refreshing session")
		if rf := c.refresher.refresh(ctx); rf != nil {
			f := rf.clone()
			f.Operation = op
			f.RequestID = requestID
			return nil, f
		}

		snap, ok := c.sessions.Snapshot()
		if !ok {
			// Session vanished between refresh and retry; the original
			// rejection stands.
			return nil, failureFromResponse(op, requestID, raw)
		}

		raw2, retryID, f2 := c.attempt(ctx, req, op, snap.AccessToken)
		if f2 != nil {
			return nil, f2
		}
		if raw2.Status >= 200 && raw2.Status < 300 {
			return newEnvelope(raw2, retryID), nil
		}
		return nil, failureFromResponse(op, retryID, raw2)
	}

	return nil, failureFromResponse(op, requestID, raw)
}

// attempt sends one HTTP attempt with its own request ID.
func (c *Client) attempt(ctx context.Context, req Request, op, token string) (*rawResponse, string, *Failure) {
	requestID := uuid.NewString()

	hreq, err := c.buildHTTPRequest(req, requestID, token)
	if err != nil {
		return nil, requestID, &Failure{
			Code:      CodeNetworkError,
			Message:   "failed to build request",
			Operation: op,
			RequestID: requestID,
			cause:     err,
		}
	}

	raw, err := c.transport.send(ctx, hreq, req.Timeout)
	if err != nil {
		return nil, requestID, transportFailure(op, requestID, err)
	}
	return raw, requestID, nil
}

func (c *Client) buildHTTPRequest(req Request, requestID, token string) (*http.Request, error) {
	u := c.baseURL + c.apiPrefix + req.path()
	if req.NoPrefix {
		u = c.baseURL + req.path()
	}
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case json.RawMessage:
		body = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	hreq, err := http.NewRequest(req.method(), u, body)
	if err != nil {
		return nil, err
	}

	hreq.Header.Set("Accept", "application/json")
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	hreq.Header.Set("User-Agent", version.UserAgent())
	hreq.Header.Set(headerRequestID, requestID)
	for k, vals := range req.Header {
		for _, v := range vals {
			hreq.Header.Add(k, v)
		}
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}
	return hreq, nil
}

// publish hands a failure to the notifier. Notification is best effort: a
// panicking or slow sink must not change the pipeline's outcome.
func (c *Client) publish(f *Failure) {
	if c.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Warn("Failure notifier panicked")
		}
	}()
	c.notifier.Publish(*f)
}
