package application

import (
	"sync"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Phase int

const (
	PhaseActive Phase = iota
	PhaseResetting
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// Session owns all state for one authentication context. A context switch
// replaces the whole session instead of resetting its parts.
type Session struct {
	Token        string
	Context      domain.SessionContext
	Calls        *CallCoordinator
	Appointments *Store[domain.WeekState[domain.Appointment]]
	Homework     *Store[domain.WeekState[domain.Homework]]
	Grades       *Store[domain.GradeState]
	Messages     *Store[domain.MessageState]
}

func newSession(ctx domain.SessionContext, clock ports.Clock, dedupWindow time.Duration) *Session {
	return &Session{
		Token:        uuid.NewString(),
		Context:      ctx,
		Calls:        NewCallCoordinator(clock, dedupWindow),
		Appointments: NewStore(domain.WeekState[domain.Appointment]{}),
		Homework:     NewStore(domain.WeekState[domain.Homework]{}),
		Grades:       NewStore(domain.GradeState{}),
		Messages:     NewStore(domain.NewMessageState()),
	}
}

// Engine holds the current session and applies completed calls to it.
// Results computed for a session that is no longer current are dropped.
type Engine struct {
	mu          sync.RWMutex
	session     *Session
	phase       Phase
	history     *Store[domain.ContextHistory]
	clock       ports.Clock
	logger      *zap.Logger
	dedupWindow time.Duration
}

func NewEngine(clock ports.Clock, logger *zap.Logger, dedupWindow time.Duration) *Engine {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		session:     newSession(domain.SessionContext{}, clock, dedupWindow),
		phase:       PhaseActive,
		history:     NewStore(domain.ContextHistory{}),
		clock:       clock,
		logger:      logger,
		dedupWindow: dedupWindow,
	}
}

func (e *Engine) Session() *Session {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.session
}

func (e *Engine) Phase() Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.phase
}

func (e *Engine) Clock() ports.Clock {
	return e.clock
}

func (e *Engine) History() domain.ContextHistory {
	return e.history.State()
}

// RestoreHistory seeds the context history, typically from disk.
func (e *Engine) RestoreHistory(history domain.ContextHistory) {
	e.history.Dispatch(func(domain.ContextHistory) domain.ContextHistory {
		return history
	})
}

// SwitchContext discards every reducer and the freshness store by building
// a new session. The context history is kept and records the switch.
func (e *Engine) SwitchContext(ctx domain.SessionContext, label string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.session.Token
	e.phase = PhaseResetting
	e.session = newSession(ctx, e.clock, e.dedupWindow)
	e.phase = PhaseActive

	now := e.clock.Now()
	e.history.Dispatch(func(history domain.ContextHistory) domain.ContextHistory {
		return domain.RememberContext(history, ctx, label, now)
	})

	e.logger.Debug("switched context",
		zap.String("context", ctx.ID()),
		zap.String("previous_session", previous),
		zap.String("session", e.session.Token),
	)

	return e.session
}

// commit runs apply if session is still current. It holds the engine lock
// for reading, so a concurrent SwitchContext waits until apply returns.
func (e *Engine) commit(session *Session, apply func()) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session != session || e.phase != PhaseActive {
		e.logger.Debug("discarding result from superseded context",
			zap.String("session", session.Token),
			zap.String("current_session", e.session.Token),
		)
		return false
	}

	apply()
	return true
}
