package application

import (
	"context"
	"errors"

	"github.com/bnema/schoolday-cli/internal/domain"
	"golang.org/x/sync/errgroup"
)

// SyncResult tells, per call type, whether new data was merged.
type SyncResult struct {
	Call    string
	Updated bool
}

type SyncService struct {
	appointments *AppointmentService
	homework     *HomeworkService
	grades       *GradeService
	messages     *MessageService
}

func NewSyncService(appointments *AppointmentService, homework *HomeworkService, grades *GradeService, messages *MessageService) *SyncService {
	return &SyncService{
		appointments: appointments,
		homework:     homework,
		grades:       grades,
		messages:     messages,
	}
}

// SyncAll refreshes every domain concurrently. Each refresh runs to
// completion whatever the others do, so a failing domain never discards data
// another one already fetched. Failures are joined; results hold every
// domain, failed ones with Updated false.
func (s *SyncService) SyncAll(ctx context.Context, week domain.PeriodKey, folder string) ([]SyncResult, error) {
	tasks := []struct {
		name string
		run  func(context.Context) (bool, error)
	}{
		{name: s.appointments.Name(), run: func(ctx context.Context) (bool, error) { return s.appointments.Refresh(ctx, week) }},
		{name: s.homework.Name(), run: func(ctx context.Context) (bool, error) { return s.homework.Refresh(ctx, week) }},
		{name: s.grades.Name(), run: s.grades.Refresh},
		{name: s.messages.Name(), run: func(ctx context.Context) (bool, error) { return s.messages.Refresh(ctx, folder) }},
	}

	results := make([]SyncResult, len(tasks))
	errs := make([]error, len(tasks))

	var group errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			updated, err := task.run(ctx)
			results[i] = SyncResult{Call: task.name, Updated: updated && err == nil}
			errs[i] = err
			return err
		})
	}
	_ = group.Wait()

	return results, errors.Join(errs...)
}

// Calls lists the call types SyncAll refreshes, in result order.
func (s *SyncService) Calls() []string {
	return []string{s.appointments.Name(), s.homework.Name(), s.grades.Name(), s.messages.Name()}
}

// Invalidate marks every call type dirty.
func (s *SyncService) Invalidate() {
	s.appointments.Invalidate()
	s.homework.Invalidate()
	s.grades.Invalidate()
	s.messages.Invalidate()
}
