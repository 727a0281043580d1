package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	headerRequestID   = "X-Request-ID"
	headerProcessTime = "X-Process-Time"
	headerAPIVersion  = "X-Api-Version"
	headerRetryAfter  = "Retry-After"
)

// Amount is a platform decimal. Amounts arrive both as JSON numbers and as
// quoted decimal strings, depending on the serializer; Amount accepts both.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("lvcop: unrecognized amount %q", s)
	}
	*a = Amount(f)
	return nil
}

// Pagination is the platform's collection paging metadata.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Envelope is a successful pipeline outcome. Data holds the useful payload:
// when the platform wrapped it in its `{success, data, message}` envelope
// the wrapper is already stripped, so Decode works the same for wrapped and
// bare responses.
type Envelope struct {
	// Status is the HTTP status code.
	Status int

	// Data is the response payload, unwrapped.
	Data json.RawMessage

	// Message is the wrapper's human-readable note, when one was present.
	Message string

	// Pagination is set on paginated collection responses.
	Pagination *Pagination

	// RequestID is the request ID the call carried, preferring the
	// server's echo of it.
	RequestID string

	// ServerVersion is the platform version header, empty when absent.
	ServerVersion string

	// ProcessTime is the server-reported handling time, zero when absent.
	ProcessTime time.Duration

	// Duration is the observed round-trip time of the final attempt.
	Duration time.Duration

	// Timestamp is when the response was classified.
	Timestamp time.Time

	// Header is the full response header set.
	Header http.Header
}

// Decode unmarshals the payload into v. Decoding an empty payload is a
// no-op, so callers that ignore response bodies can pass anything.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("lvcop: decode response: %w", err)
	}
	return nil
}

// newEnvelope classifies a 2xx response, stripping the platform's response
// wrapper when the body carries one.
func newEnvelope(raw *rawResponse, requestID string) *Envelope {
	env := &Envelope{
		Status:        raw.Status,
		Data:          raw.Body,
		RequestID:     requestID,
		ServerVersion: raw.Header.Get(headerAPIVersion),
		Duration:      raw.Duration,
		Timestamp:     time.Now(),
		Header:        raw.Header,
	}
	if id := raw.Header.Get(headerRequestID); id != "" {
		env.RequestID = id
	}
	if pt := raw.Header.Get(headerProcessTime); pt != "" {
		if secs, err := strconv.ParseFloat(pt, 64); err == nil && secs >= 0 {
			env.ProcessTime = time.Duration(secs * float64(time.Second))
		}
	}

	if !gjson.ValidBytes(raw.Body) {
		return env
	}
	wrapped := gjson.GetBytes(raw.Body, "success")
	data := gjson.GetBytes(raw.Body, "data")
	if !wrapped.Exists() || !data.Exists() {
		return env
	}
	env.Data = json.RawMessage(data.Raw)
	env.Message = gjson.GetBytes(raw.Body, "message").String()
	if pg := gjson.GetBytes(raw.Body, "pagination"); pg.IsObject() {
		var p Pagination
		if err := json.Unmarshal([]byte(pg.Raw), &p); err == nil {
			env.Pagination = &p
		}
	}
	return env
}

// failureFromResponse classifies a non-2xx response. It understands both
// error shapes the platform produces: the structured
// `{success:false, error:{code,message,details}}` envelope and the plain
// `{detail}` shape framework-level rejections use.
func failureFromResponse(op, requestID string, raw *rawResponse) *Failure {
	f := &Failure{
		Operation: op,
		Status:    raw.Status,
		RequestID: requestID,
	}
	if id := raw.Header.Get(headerRequestID); id != "" {
		f.RequestID = id
	}

	if gjson.ValidBytes(raw.Body) {
		if e := gjson.GetBytes(raw.Body, "error"); e.IsObject() {
			f.ServerCode = e.Get("code").String()
			f.Message = e.Get("message").String()
			if d := e.Get("details"); d.IsObject() {
				_ = json.Unmarshal([]byte(d.Raw), &f.Details)
			}
		} else if d := gjson.GetBytes(raw.Body, "detail"); d.Exists() {
			switch {
			case d.Type == gjson.String:
				f.Message = d.String()
			case d.IsArray():
				f.Message = "request validation failed"
				var errs []any
				if err := json.Unmarshal([]byte(d.Raw), &errs); err == nil {
					f.Details = map[string]any{"errors": errs}
				}
			default:
				f.Message = d.Raw
			}
		} else if m := gjson.GetBytes(raw.Body, "message"); m.Exists() {
			f.Message = m.String()
		}
	}

	switch raw.Status {
	case http.StatusUnauthorized:
		f.Code = CodeUnauthorized
	case http.StatusTooManyRequests:
		f.Code = CodeRateLimited
		f.RetryAfter = retryAfterOf(raw.Header, f.Details)
	default:
		f.Code = CodeServerError
	}
	if f.Message == "" {
		f.Message = http.StatusText(raw.Status)
	}
	return f
}

// retryAfterOf extracts the server's backoff hint from the Retry-After
// header, falling back to the retry_after field of the error details.
func retryAfterOf(h http.Header, details map[string]any) time.Duration {
	if v := h.Get(headerRetryAfter); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}
	if details != nil {
		switch ra := details["retry_after"].(type) {
		case float64:
			if ra > 0 {
				return time.Duration(ra * float64(time.Second))
			}
		case string:
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 0
}
