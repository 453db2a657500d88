package ports

import (
	"context"
	"net/http"
	"net/url"
)

// Request is one backend round trip. Body, when set, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Clone copies the request so headers can be changed without touching the
// original.
func (r Request) Clone() Request {
	clone := r
	if r.Query != nil {
		clone.Query = make(url.Values, len(r.Query))
		for key, values := range r.Query {
			clone.Query[key] = append([]string(nil), values...)
		}
	}
	clone.Header = make(http.Header, len(r.Header)+1)
	for key, values := range r.Header {
		clone.Header[key] = append([]string(nil), values...)
	}

	return clone
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs authenticated requests against the backend. Non-2xx
// answers are returned as errors.
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}
