package client

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawWith(status int, body string, header http.Header) *rawResponse {
	if header == nil {
		header = http.Header{}
	}
	return &rawResponse{
		Status:   status,
		Body:     []byte(body),
		Header:   header,
		Duration: 5 * time.Millisecond,
	}
}

func TestNewEnvelope_WrappedResponse(t *testing.T) {
	header := http.Header{}
	header.Set("X-Request-ID", "req-echo")
	header.Set("X-Process-Time", "0.0421")
	header.Set("X-Api-Version", "1.4.0")

	raw := rawWith(200, `{
		"success": true,
		"data": {"id": "f-1", "regime": "steady_state"},
		"message": "Forecast generated",
		"pagination": {"page": 2, "page_size": 20, "total_items": 57, "total_pages": 3, "has_next": true, "has_prev": true}
	}`, header)

	env := newEnvelope(raw, "req-client")

	assert.Equal(t, 200, env.Status)
	assert.Equal(t, "req-echo", env.RequestID, "server echo wins over the client id")
	assert.Equal(t, "1.4.0", env.ServerVersion)
	assert.InDelta(t, 0.0421, env.ProcessTime.Seconds(), 0.0001)
	assert.Equal(t, "Forecast generated", env.Message)

	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.Equal(t, 57, env.Pagination.TotalItems)
	assert.True(t, env.Pagination.HasNext)

	var payload struct {
		ID     string `json:"id"`
		Regime string `json:"regime"`
	}
	require.NoError(t, env.Decode(&payload))
	assert.Equal(t, "f-1", payload.ID)
	assert.Equal(t, "steady_state", payload.Regime)
}

func TestNewEnvelope_BareResponse(t *testing.T) {
	raw := rawWith(200, `{"access_token": "a", "token_type": "bearer"}`, nil)
	env := newEnvelope(raw, "req-client")

	assert.Equal(t, "req-client", env.RequestID, "client id stands when the server does not echo")
	assert.Empty(t, env.ServerVersion)

	var grant struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, env.Decode(&grant))
	assert.Equal(t, "a", grant.AccessToken)
}

func TestNewEnvelope_EmptyBody(t *testing.T) {
	raw := rawWith(204, "", nil)
	env := newEnvelope(raw, "req-client")

	var ignored map[string]any
	assert.NoError(t, env.Decode(&ignored))
	assert.Nil(t, ignored)
}

func TestFailureFromResponse_ErrorEnvelope(t *testing.T) {
	raw := rawWith(409, `{
		"success": false,
		"error": {"code": "ALREADY_EXISTS", "message": "Position already exists", "details": {"resource": "position"}}
	}`, nil)

	f := failureFromResponse("positions.create", "req-1", raw)

	assert.Equal(t, CodeServerError, f.Code)
	assert.Equal(t, 409, f.Status)
	assert.Equal(t, "ALREADY_EXISTS", f.ServerCode)
	assert.Equal(t, "Position already exists", f.Message)
	assert.Equal(t, "positions.create", f.Operation)
	assert.Equal(t, "position", f.Details["resource"])
}

func TestFailureFromResponse_DetailString(t *testing.T) {
	raw := rawWith(401, `{"detail": "Invalid or expired token"}`, nil)
	f := failureFromResponse("auth.me", "req-1", raw)

	assert.Equal(t, CodeUnauthorized, f.Code)
	assert.Equal(t, "Invalid or expired token", f.Message)
}

func TestFailureFromResponse_ValidationArray(t *testing.T) {
	raw := rawWith(422, `{"detail": [
		{"loc": ["query", "email"], "msg": "field required", "type": "value_error.missing"}
	]}`, nil)

	f := failureFromResponse("auth.register", "req-1", raw)

	assert.Equal(t, CodeServerError, f.Code)
	assert.Equal(t, "request validation failed", f.Message)
	require.Contains(t, f.Details, "errors")
	errs, ok := f.Details["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestFailureFromResponse_RateLimited(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "30")
	raw := rawWith(429, `{"detail": "Rate limit exceeded"}`, header)

	f := failureFromResponse("forecasts.generate", "req-1", raw)

	assert.Equal(t, CodeRateLimited, f.Code)
	assert.Equal(t, 30*time.Second, f.RetryAfter)
	assert.True(t, IsRetryable(f))
}

func TestFailureFromResponse_EmptyBodyFallsBackToStatusText(t *testing.T) {
	raw := rawWith(502, "", nil)
	f := failureFromResponse("health", "req-1", raw)

	assert.Equal(t, CodeServerError, f.Code)
	assert.Equal(t, http.StatusText(502), f.Message)
}

func TestFailureFromResponse_ForbiddenIsServerError(t *testing.T) {
	// Only 401 maps to the credential path; a 403 entitlement rejection
	// must not trigger a token refresh.
	raw := rawWith(403, `{"detail": "Feature 'crisis_simulator' requires enterprise subscription"}`, nil)
	f := failureFromResponse("crisis.run", "req-1", raw)

	assert.Equal(t, CodeServerError, f.Code)
	assert.False(t, IsRetryable(f))
}

func TestRetryAfterOf(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "12")
	assert.Equal(t, 12*time.Second, retryAfterOf(h, nil))

	h = http.Header{}
	h.Set("Retry-After", http.TimeFormat) // unparseable as seconds, stale as a date
	assert.Equal(t, time.Duration(0), retryAfterOf(h, nil))

	assert.Equal(t, 7*time.Second, retryAfterOf(http.Header{}, map[string]any{"retry_after": float64(7)}))
	assert.Equal(t, 9*time.Second, retryAfterOf(http.Header{}, map[string]any{"retry_after": "9"}))
	assert.Equal(t, time.Duration(0), retryAfterOf(http.Header{}, nil))
}

func TestAmount_UnmarshalJSON(t *testing.T) {
	var doc struct {
		Plain  Amount `json:"plain"`
		Quoted Amount `json:"quoted"`
		Null   Amount `json:"null"`
		Empty  Amount `json:"empty"`
	}
	data := `{"plain": 1234.56, "quoted": "-987.01", "null": null, "empty": ""}`
	require.NoError(t, json.Unmarshal([]byte(data), &doc))

	assert.InDelta(t, 1234.56, float64(doc.Plain), 1e-9)
	assert.InDelta(t, -987.01, float64(doc.Quoted), 1e-9)
	assert.Zero(t, float64(doc.Null))
	assert.Zero(t, float64(doc.Empty))

	var bad Amount
	assert.Error(t, json.Unmarshal([]byte(`"not a number"`), &bad))
}

func TestTime_UnmarshalJSON(t *testing.T) {
	var doc struct {
		RFC3339 Time `json:"rfc3339"`
		Naive   Time `json:"naive"`
		Date    Time `json:"date"`
		Null    Time `json:"null"`
	}
	data := `{
		"rfc3339": "2026-03-02T15:04:05.123456Z",
		"naive": "2026-03-02T15:04:05.123456",
		"date": "2026-03-02",
		"null": null
	}`
	require.NoError(t, json.Unmarshal([]byte(data), &doc))

	assert.Equal(t, 2026, doc.RFC3339.Year())
	assert.Equal(t, 15, doc.Naive.Hour())
	assert.Equal(t, time.March, doc.Date.Month())
	assert.True(t, doc.Null.IsZero())

	var bad Time
	assert.Error(t, json.Unmarshal([]byte(`"03/02/2026"`), &bad))
}

func TestTime_MarshalJSON(t *testing.T) {
	zero, err := json.Marshal(Time{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(zero))

	ts := Time{Time: time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC)}
	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-02T15:04:05Z"`, string(out))
}
