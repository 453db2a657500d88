// Package rest talks to the school backend over HTTPS.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	maxResponseBytes = 8 << 20
	maxErrorBody     = 512

	DefaultTimeout         = 30 * time.Second
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
	defaultBreakerHalfOpen = 1
	defaultBreakerInterval = time.Minute
)

var ErrBackendUnavailable = errors.New("backend unavailable")

type Options struct {
	BaseURL         string
	Token           string
	UserAgent       string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Client is the HTTP implementation of ports.Transport. Consecutive
// server-side failures open a circuit breaker, after which requests fail
// fast with ErrBackendUnavailable until the cooldown expires.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

var _ ports.Transport = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	failures := opts.BreakerFailures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "sd"
	}

	c := &Client{
		baseURL:   baseURL,
		token:     opts.Token,
		userAgent: userAgent,
		http:      client,
		logger:    logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        baseURL,
		MaxRequests: defaultBreakerHalfOpen,
		Interval:    defaultBreakerInterval,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("backend", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return c, nil
}

func (c *Client) Do(ctx context.Context, req ports.Request) (ports.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ports.Response{}, fmt.Errorf("%s %s: %w", req.Method, req.Path, ErrBackendUnavailable)
		}
		return ports.Response{}, err
	}

	return result.(ports.Response), nil
}

func (c *Client) do(ctx context.Context, req ports.Request) (ports.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return ports.Response{}, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return ports.Response{}, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	response, err := c.http.Do(request)
	if err != nil {
		return ports.Response{}, fmt.Errorf("perform request: %w", err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return ports.Response{}, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", response.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(started)),
	)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		text := strings.TrimSpace(string(data))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
			return ports.Response{}, fmt.Errorf("%s %s: %w: status %d", method, req.Path, domain.ErrUnauthorized, response.StatusCode)
		}
		return ports.Response{}, &domain.HTTPError{
			Method:     method,
			Path:       req.Path,
			StatusCode: response.StatusCode,
			Body:       text,
		}
	}

	return ports.Response{
		StatusCode: response.StatusCode,
		Header:     response.Header.Clone(),
		Body:       data,
	}, nil
}

// countsAsSuccess keeps client errors and cancellations out of the breaker:
// only transport failures and 5xx answers trip it.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrUnauthorized) {
		return true
	}

	var httpErr *domain.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode < http.StatusInternalServerError
	}

	return false
}
