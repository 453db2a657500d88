package application

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/bnema/schoolday-cli/internal/ports"
	"go.uber.org/zap"
)

const (
	DefaultPageSize    = 100
	DefaultMaxRequests = 5
)

var contentRangePattern = regexp.MustCompile(`(\d+)-(\d+)/(\d+)`)

// Fetcher walks Range/Content-Range paginated collections. The request
// ceiling bounds a server that keeps reporting more data.
type Fetcher struct {
	transport   ports.Transport
	logger      *zap.Logger
	pageSize    int
	maxRequests int
}

func NewFetcher(transport ports.Transport, logger *zap.Logger, pageSize, maxRequests int) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}

	return &Fetcher{
		transport:   transport,
		logger:      logger,
		pageSize:    pageSize,
		maxRequests: maxRequests,
	}
}

func (f *Fetcher) Transport() ports.Transport {
	return f.transport
}

type page[T any] struct {
	Items []T `json:"items"`
}

// FetchAll returns the items of every page in request order. Follow-up
// requests copy req and only override the Range header. Hitting the request
// ceiling returns what was collected so far.
func FetchAll[T any](ctx context.Context, f *Fetcher, req ports.Request) ([]T, error) {
	items := make([]T, 0)
	current := req

	for requests := 1; ; requests++ {
		resp, err := f.transport.Do(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.Path, err)
		}

		var body page[T]
		if len(resp.Body) > 0 {
			if err := json.Unmarshal(resp.Body, &body); err != nil {
				return nil, fmt.Errorf("decode %s page %d: %w", req.Path, requests, err)
			}
		}
		items = append(items, body.Items...)

		start, end, ok := nextRange(resp.Header.Get("Content-Range"), f.pageSize)
		if !ok {
			return items, nil
		}

		if requests >= f.maxRequests {
			f.logger.Warn("pagination truncated",
				zap.String("path", req.Path),
				zap.Int("requests", requests),
				zap.Int("items", len(items)),
				zap.Int("next_start", start),
			)
			return items, nil
		}

		current = req.Clone()
		current.Header.Set("Range", fmt.Sprintf("items=%d-%d", start, end))
	}
}

// nextRange parses a Content-Range value and returns the inclusive bounds of
// the next slice. ok is false when the collection is exhausted or the value
// cannot be read.
func nextRange(contentRange string, pageSize int) (start, end int, ok bool) {
	match := contentRangePattern.FindStringSubmatch(contentRange)
	if match == nil {
		return 0, 0, false
	}

	last, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, 0, false
	}
	total, err := strconv.Atoi(match[3])
	if err != nil || total == 0 {
		return 0, 0, false
	}

	start = last + 1
	if start >= total {
		return 0, 0, false
	}

	return start, start + min(total-start, pageSize) - 1, true
}
