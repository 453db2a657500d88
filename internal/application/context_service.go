package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"go.uber.org/zap"
)

// ContextService switches the engine between profiles and carries the
// session across processes through the snapshot repository.
type ContextService struct {
	engine       *Engine
	profiles     ports.ProfileRepository
	snapshots    ports.SnapshotRepository
	appointments *AppointmentService
	homework     *HomeworkService
	logger       *zap.Logger
}

func NewContextService(
	engine *Engine,
	profiles ports.ProfileRepository,
	snapshots ports.SnapshotRepository,
	appointments *AppointmentService,
	homework *HomeworkService,
	logger *zap.Logger,
) *ContextService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ContextService{
		engine:       engine,
		profiles:     profiles,
		snapshots:    snapshots,
		appointments: appointments,
		homework:     homework,
		logger:       logger,
	}
}

// Activate switches to the context of profile, records it in the stored
// context history and restores the last snapshot saved for it.
func (s *ContextService) Activate(ctx context.Context, profile domain.Profile) (*Session, error) {
	if len(s.engine.History().Entries) == 0 {
		history, err := s.profiles.History(ctx)
		if err != nil {
			return nil, fmt.Errorf("load context history: %w", err)
		}
		s.engine.RestoreHistory(history)
	}

	session := s.engine.SwitchContext(profile.Context, profile.DisplayName())

	if err := s.profiles.SaveHistory(ctx, s.engine.History()); err != nil {
		return nil, fmt.Errorf("save context history: %w", err)
	}

	if _, err := s.Restore(ctx); err != nil {
		return nil, err
	}

	return session, nil
}

// Restore loads the snapshot of the current context into the session. A
// missing snapshot is not an error.
func (s *ContextService) Restore(ctx context.Context) (bool, error) {
	session := s.engine.Session()
	contextID := session.Context.ID()

	snapshot, err := s.snapshots.Load(ctx, contextID)
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load snapshot: %w", err)
	}
	if snapshot.ContextID != contextID {
		s.logger.Debug("ignoring snapshot of another context",
			zap.String("context", contextID),
			zap.String("snapshot_context", snapshot.ContextID),
		)
		return false, nil
	}

	restored := s.engine.commit(session, func() {
		session.Calls.Restore(snapshot.Calls)
		session.Appointments.Dispatch(func(domain.WeekState[domain.Appointment]) domain.WeekState[domain.Appointment] {
			return domain.WeekState[domain.Appointment]{Weeks: snapshot.Appointments}
		})
		session.Homework.Dispatch(func(domain.WeekState[domain.Homework]) domain.WeekState[domain.Homework] {
			return domain.WeekState[domain.Homework]{Weeks: snapshot.Homework}
		})
		session.Grades.Dispatch(func(domain.GradeState) domain.GradeState {
			return snapshot.Grades
		})
		session.Messages.Dispatch(func(domain.MessageState) domain.MessageState {
			if snapshot.Messages.Folders == nil {
				return domain.NewMessageState()
			}
			return snapshot.Messages
		})
	})

	return restored, nil
}

// Persist writes the trimmed projection of the current session.
func (s *ContextService) Persist(ctx context.Context) error {
	snapshot := s.Snapshot()
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

// Snapshot keeps the weeks before, containing and after today. Freshness
// records of weekly calls are kept only for weeks that are kept, so a
// restored session never trusts data it no longer holds.
func (s *ContextService) Snapshot() domain.Snapshot {
	session := s.engine.Session()
	now := s.engine.Clock().Now()

	appointments := s.appointments.Reducer().Trim(session.Appointments.State().Weeks, now)
	homework := s.homework.Reducer().Trim(session.Homework.State().Weeks, now)

	kept := map[domain.CallSignature]struct{}{}
	for _, week := range appointments {
		if sig, err := s.appointments.Signature(session.Context, week.Period); err == nil {
			kept[sig] = struct{}{}
		}
	}
	for _, week := range homework {
		if sig, err := s.homework.Signature(session.Context, week.Period); err == nil {
			kept[sig] = struct{}{}
		}
	}

	calls := session.Calls.State().WithoutStarts().Retain(func(sig domain.CallSignature) bool {
		if sig.Name != s.appointments.Name() && sig.Name != s.homework.Name() {
			return true
		}
		_, ok := kept[sig]
		return ok
	})

	return domain.Snapshot{
		ContextID:    session.Context.ID(),
		SavedAt:      now,
		Calls:        calls,
		Appointments: appointments,
		Homework:     homework,
		Grades:       session.Grades.State(),
		Messages:     session.Messages.State(),
	}
}

// Clear drops the snapshot of the current context and starts an empty
// session for it.
func (s *ContextService) Clear(ctx context.Context) error {
	session := s.engine.Session()
	if err := s.snapshots.Delete(ctx, session.Context.ID()); err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	label := ""
	if entries := s.engine.History().Entries; len(entries) > 0 && entries[0].Context == session.Context {
		label = entries[0].Label
	}
	s.engine.SwitchContext(session.Context, label)

	return nil
}

// Age returns how long ago the current context's snapshot was written.
func (s *ContextService) Age(ctx context.Context) (time.Duration, bool, error) {
	snapshot, err := s.snapshots.Load(ctx, s.engine.Session().Context.ID())
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load snapshot: %w", err)
	}

	return s.engine.Clock().Now().Sub(snapshot.SavedAt), true, nil
}
