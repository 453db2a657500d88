package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func mockAnyContext() interface{} {
	return mock.Anything
}

func jsonPage(t *testing.T, items any, contentRange string) ports.Response {
	t.Helper()

	body, err := json.Marshal(map[string]any{"items": items})
	require.NoError(t, err)

	header := http.Header{}
	if contentRange != "" {
		header.Set("Content-Range", contentRange)
	}

	return ports.Response{StatusCode: http.StatusOK, Header: header, Body: body}
}

// routeTransport answers by request path and records every request.
type routeTransport struct {
	mu       sync.Mutex
	routes   map[string]func(ports.Request) (ports.Response, error)
	requests []ports.Request
}

func newRouteTransport() *routeTransport {
	return &routeTransport{routes: map[string]func(ports.Request) (ports.Response, error){}}
}

func (r *routeTransport) Handle(method, path string, handler func(ports.Request) (ports.Response, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[method+" "+path] = handler
}

func (r *routeTransport) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	handler, ok := r.routes[req.Method+" "+req.Path]
	r.mu.Unlock()

	if !ok {
		return ports.Response{}, &domain.HTTPError{Method: req.Method, Path: req.Path, StatusCode: http.StatusNotFound}
	}
	resp, err := handler(req)
	if err == nil && ctx.Err() != nil {
		return ports.Response{}, ctx.Err()
	}
	return resp, err
}

func (r *routeTransport) Requests() []ports.Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]ports.Request(nil), r.requests...)
}

func (r *routeTransport) Count(method, path string) int {
	count := 0
	for _, req := range r.Requests() {
		if req.Method == method && req.Path == path {
			count++
		}
	}
	return count
}

var testContext = domain.SessionContext{AuthenticationContextID: "auth-1", AccountID: "acc-1", SubjectID: "42"}

type testBackend struct {
	Backend
	clock     *manualClock
	transport *routeTransport
	loc       *time.Location
}

func newTestBackend(t *testing.T, now time.Time) *testBackend {
	t.Helper()

	clock := newManualClock(now)
	transport := newRouteTransport()
	engine := NewEngine(clock, nil, DefaultDedupWindow)
	engine.SwitchContext(testContext, "Kim")

	return &testBackend{
		Backend: Backend{
			Engine:       engine,
			Fetcher:      NewFetcher(transport, nil, 0, 0),
			Connectivity: ports.StaticConnectivity(true),
		},
		clock:     clock,
		transport: transport,
		loc:       time.UTC,
	}
}

func appointmentJSON(id string, start, end time.Time) map[string]any {
	return map[string]any{
		"id":          id,
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"description": fmt.Sprintf("lesson %s", id),
	}
}
