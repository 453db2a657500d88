package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"go.uber.org/zap"
)

const (
	CallAppointments = "appointments"
	CallHomework     = "homework"
	CallGrades       = "grades"
	CallMessages     = "messages"
)

// SyncPolicy holds the freshness TTL of every call type and the dedup
// window shared by all of them.
type SyncPolicy struct {
	DedupWindow  time.Duration
	Appointments time.Duration
	Homework     time.Duration
	Grades       time.Duration
	Messages     time.Duration
}

func DefaultSyncPolicy() SyncPolicy {
	return SyncPolicy{
		DedupWindow:  DefaultDedupWindow,
		Appointments: 3 * time.Minute,
		Homework:     5 * time.Minute,
		Grades:       15 * time.Minute,
		Messages:     3 * time.Minute,
	}
}

// Backend bundles what every domain service needs to reach the server.
type Backend struct {
	Engine       *Engine
	Fetcher      *Fetcher
	Connectivity ports.Connectivity
	Logger       *zap.Logger
}

func (b Backend) online(ctx context.Context) bool {
	if b.Connectivity == nil {
		return true
	}
	return b.Connectivity.Online(ctx)
}

func (b Backend) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// refresher runs the shared refresh protocol of one call type: freshness
// check, paginated fetch, then a session-checked merge.
type refresher struct {
	backend Backend
	name    string
	ttl     time.Duration
}

// Name is the call type name used in the freshness store.
func (r *refresher) Name() string {
	return r.name
}

func (r *refresher) TTL() time.Duration {
	return r.ttl
}

// Invalidate marks the call type dirty in the current session.
func (r *refresher) Invalidate() {
	r.backend.Engine.Session().Calls.Invalidate(r.name)
}

// refresh reports false without error when offline, when an equal call is
// fresh or in flight, or when the context changed before the result landed.
func (r *refresher) refresh(
	ctx context.Context,
	request func(domain.SessionContext) (ports.Request, error),
	merge func([]json.RawMessage) (func(*Session), error),
) (bool, error) {
	logger := r.backend.logger().With(zap.String("call", r.name))
	if !r.backend.online(ctx) {
		logger.Debug("offline, keeping last known state")
		return false, nil
	}

	session := r.backend.Engine.Session()
	req, err := request(session.Context)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", r.name, err)
	}

	sig, err := requestSignature(r.name, req)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", r.name, err)
	}

	if !session.Calls.Claim(sig, r.ttl) {
		logger.Debug("call skipped", zap.String("fingerprint", sig.Fingerprint))
		return false, nil
	}

	raw, err := FetchAll[json.RawMessage](ctx, r.backend.Fetcher, req)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", r.name, err)
	}

	apply, err := merge(raw)
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", r.name, err)
	}

	return r.backend.Engine.commit(session, func() {
		session.Calls.RecordSuccess(sig, r.ttl)
		apply(session)
	}), nil
}

// requestSignature identifies a request by call name and the canonical form
// of its path, query and body.
func requestSignature(name string, req ports.Request) (domain.CallSignature, error) {
	query := map[string][]string(req.Query)
	if query == nil {
		query = map[string][]string{}
	}

	return domain.NewCallSignature(name, req.Path, query, req.Body)
}
