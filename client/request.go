package client

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Request describes one logical API call. It is a value: the pipeline never
// mutates it, so a descriptor can be built once and dispatched many times.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string

	// Path is the endpoint path under the API prefix, e.g. "/auth/me".
	Path string

	// Operation labels the call in logs, metrics and failures. Unlike
	// Path it carries no identifiers, so its cardinality stays bounded.
	// Defaults to "METHOD path".
	Operation string

	// Query is appended to the URL.
	Query url.Values

	// Body is JSON-encoded when non-nil. []byte and json.RawMessage
	// values are sent as-is.
	Body any

	// Header adds or overrides request headers.
	Header http.Header

	// Timeout overrides the client's per-call timeout. Zero keeps the
	// default.
	Timeout time.Duration

	// NoAuth skips credential attachment. A 401 on such a call is
	// terminal; it never triggers a token refresh.
	NoAuth bool

	// NoPrefix addresses Path relative to the server root instead of the
	// API prefix. The health endpoints live there.
	NoPrefix bool
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

func (r Request) path() string {
	if !strings.HasPrefix(r.Path, "/") {
		return "/" + r.Path
	}
	return r.Path
}

func (r Request) operation() string {
	if r.Operation != "" {
		return r.Operation
	}
	return r.method() + " " + r.path()
}

// ListOptions selects a page of a collection endpoint.
type ListOptions struct {
	Page     int
	PageSize int
}

// Values renders the options as query parameters, omitting zero fields.
func (o ListOptions) Values() url.Values {
	q := url.Values{}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return q
}
