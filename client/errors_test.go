package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailure_Error(t *testing.T) {
	tests := []struct {
		name string
		f    *Failure
		want string
	}{
		{
			name: "code only",
			f:    &Failure{Code: CodeNetworkError},
			want: "lvcop: network_error",
		},
		{
			name: "code and message",
			f:    &Failure{Code: CodeTimeout, Message: "request deadline exceeded"},
			want: "lvcop: timeout: request deadline exceeded",
		},
		{
			name: "code message and status",
			f:    &Failure{Code: CodeServerError, Message: "boom", Status: 503},
			want: "lvcop: server_error: boom (status 503)",
		},
		{
			name: "falls back to cause",
			f:    &Failure{Code: CodeNetworkError, cause: errors.New("connection refused")},
			want: "lvcop: network_error: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Error())
		})
	}
}

func TestAsFailure(t *testing.T) {
	f := &Failure{Code: CodeRateLimited, Status: 429}

	got, ok := AsFailure(f)
	require.True(t, ok)
	assert.Same(t, f, got)

	// Through a wrap chain.
	wrapped := fmt.Errorf("calling forecasts: %w", f)
	got, ok = AsFailure(wrapped)
	require.True(t, ok)
	assert.Same(t, f, got)

	_, ok = AsFailure(errors.New("plain"))
	assert.False(t, ok)
	_, ok = AsFailure(nil)
	assert.False(t, ok)
}

func TestFailure_Unwrap(t *testing.T) {
	f := &Failure{Code: CodeTimeout, cause: context.DeadlineExceeded}
	assert.ErrorIs(t, f, context.DeadlineExceeded)

	bare := &Failure{Code: CodeServerError}
	assert.Nil(t, bare.Unwrap())
}

func TestCodePredicates(t *testing.T) {
	assert.True(t, IsTimeout(&Failure{Code: CodeTimeout}))
	assert.True(t, IsCanceled(&Failure{Code: CodeCanceled}))
	assert.True(t, IsUnauthorized(&Failure{Code: CodeUnauthorized}))
	assert.True(t, IsRefreshFailed(&Failure{Code: CodeRefreshFailed}))
	assert.True(t, IsRateLimited(&Failure{Code: CodeRateLimited}))

	assert.False(t, IsTimeout(&Failure{Code: CodeCanceled}))
	assert.False(t, IsUnauthorized(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&Failure{Code: CodeTimeout}))
	assert.True(t, IsRetryable(&Failure{Code: CodeNetworkError}))
	assert.True(t, IsRetryable(&Failure{Code: CodeRateLimited, Status: 429}))
	assert.True(t, IsRetryable(&Failure{Code: CodeServerError, Status: 503}))

	assert.False(t, IsRetryable(&Failure{Code: CodeServerError, Status: 403}))
	assert.False(t, IsRetryable(&Failure{Code: CodeUnauthorized, Status: 401}))
	assert.False(t, IsRetryable(&Failure{Code: CodeRefreshFailed}))
	assert.False(t, IsRetryable(&Failure{Code: CodeCanceled}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestFailure_CloneIsIndependent(t *testing.T) {
	orig := &Failure{Code: CodeRefreshFailed, Message: "token refresh failed"}
	cp := orig.clone()
	cp.Operation = "forecasts.daily"
	cp.RequestID = "req-1"

	assert.Empty(t, orig.Operation)
	assert.Empty(t, orig.RequestID)
	assert.Equal(t, orig.Code, cp.Code)
}
