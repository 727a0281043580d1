package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// rawResponse is a fully read HTTP response plus its observed round trip.
type rawResponse struct {
	Status   int
	Body     []byte
	Header   http.Header
	Duration time.Duration
}

// transport dispatches prepared requests. It owns the per-call deadline,
// optional client-side pacing and the response body cap; classification of
// statuses and errors belongs to the pipeline.
type transport struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	maxBody int64
}

// send dispatches req and reads its body. timeout overrides the transport
// default when positive. The returned error is the raw transport error;
// callers map it to a failure code with transportFailure.
func (t *transport) send(ctx context.Context, req *http.Request, timeout time.Duration) (*rawResponse, error) {
	if timeout <= 0 {
		timeout = t.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			// Wait fails either because ctx settled or because pacing
			// cannot yield a slot before the deadline.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("rate limit wait: %w", ctxErr)
			}
			return nil, fmt.Errorf("rate limit wait: %w", context.DeadlineExceeded)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > t.maxBody {
		return nil, fmt.Errorf("response body exceeds %d bytes", t.maxBody)
	}

	return &rawResponse{
		Status:   resp.StatusCode,
		Body:     body,
		Header:   resp.Header,
		Duration: time.Since(start),
	}, nil
}

// transportFailure maps a transport-level error to a normalized failure.
// Deadline expiry becomes timeout regardless of whose deadline fired; an
// explicit caller cancellation becomes canceled; everything else is a
// network error. The raw error stays reachable through Unwrap.
func transportFailure(op, requestID string, err error) *Failure {
	f := &Failure{Operation: op, RequestID: requestID, cause: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		f.Code = CodeTimeout
		f.Message = "request deadline exceeded"
	case errors.Is(err, context.Canceled):
		f.Code = CodeCanceled
		f.Message = "request canceled"
	default:
		f.Code = CodeNetworkError
		f.Message = "network error"
	}
	return f
}
