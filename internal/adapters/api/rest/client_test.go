package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

func TestClientDoSendsAuthenticatedRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/students/42/appointments", r.URL.Path)
		assert.Equal(t, "2024-09-09", r.URL.Query().Get("from"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "items=100-199", r.Header.Get("Range"))
		assert.Equal(t, "sd/test", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Range", "items 100-199/250")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{BaseURL: server.URL + "/api/", Token: "secret-token", UserAgent: "sd/test"})
	require.NoError(t, err)

	response, err := client.Do(context.Background(), ports.Request{
		Method: http.MethodGet,
		Path:   "/students/42/appointments",
		Query:  url.Values{"from": {"2024-09-09"}},
		Header: http.Header{"Range": {"items=100-199"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusPartialContent, response.StatusCode)
	assert.Equal(t, "items 100-199/250", response.Header.Get("Content-Range"))
	assert.JSONEq(t, `{"items":[]}`, string(response.Body))
}

func TestClientDoEncodesJSONBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"$type":"homework","completed":true}`, string(body))

		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{BaseURL: server.URL})
	require.NoError(t, err)

	response, err := client.Do(context.Background(), ports.Request{
		Method: http.MethodPut,
		Path:   "/students/42/homework/h-1",
		Body:   map[string]any{"$type": "homework", "completed": true},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, response.StatusCode)
	assert.Empty(t, response.Body)
}

func TestClientDoClassifiesErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		status     int
		assertFunc func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			assertFunc: func(t *testing.T, err error) {
				require.ErrorIs(t, err, domain.ErrUnauthorized)
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			assertFunc: func(t *testing.T, err error) {
				require.ErrorIs(t, err, domain.ErrUnauthorized)
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			assertFunc: func(t *testing.T, err error) {
				var httpErr *domain.HTTPError
				require.ErrorAs(t, err, &httpErr)
				assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
				assert.Equal(t, "no such student", httpErr.Body)
				assert.Equal(t, "/students/42/grades", httpErr.Path)
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("no such student\n"))
			}))
			t.Cleanup(server.Close)

			client, err := NewClient(Options{BaseURL: server.URL})
			require.NoError(t, err)

			_, err = client.Do(context.Background(), ports.Request{Method: http.MethodGet, Path: "/students/42/grades"})
			require.Error(t, err)
			tc.assertFunc(t, err)
		})
	}
}

func TestClientBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	core, logs := observer.New(zapcore.WarnLevel)
	client, err := NewClient(Options{
		BaseURL:         server.URL,
		BreakerFailures: 2,
		BreakerCooldown: time.Hour,
		Logger:          zap.New(core),
	})
	require.NoError(t, err)

	req := ports.Request{Method: http.MethodGet, Path: "/students/42/grades"}
	for i := 0; i < 2; i++ {
		_, err := client.Do(context.Background(), req)
		var httpErr *domain.HTTPError
		require.ErrorAs(t, err, &httpErr)
	}

	_, err = client.Do(context.Background(), req)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 1, logs.FilterMessage("circuit breaker state changed").Len())
}

func TestClientBreakerIgnoresClientErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Options{BaseURL: server.URL, BreakerFailures: 1})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), ports.Request{Path: "/missing"})
		assert.False(t, errors.Is(err, ErrBackendUnavailable))
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Options{BaseURL: "  "})
	require.Error(t, err)
	assert.ErrorContains(t, err, "base url is required")
}

func TestClientReplaysRecordedGrades(t *testing.T) {
	t.Parallel()

	rec, err := recorder.NewAsMode("testdata/fixtures/grades", recorder.ModeReplaying, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Stop() })
	rec.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	client, err := NewClient(Options{
		BaseURL:    "https://school.example/api",
		Token:      "recorded",
		HTTPClient: &http.Client{Transport: rec},
	})
	require.NoError(t, err)

	response, err := client.Do(context.Background(), ports.Request{Method: http.MethodGet, Path: "/students/42/grades"})
	require.NoError(t, err)

	var page struct {
		Items []struct {
			ID    string `json:"id"`
			Value string `json:"value"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(response.Body, &page))
	require.Len(t, page.Items, 2)
	assert.Equal(t, "g-1", page.Items[0].ID)
	assert.Equal(t, "7,5", page.Items[0].Value)
}
