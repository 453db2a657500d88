package application

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
)

// HomeworkService adds the optimistic completion toggle to the homework
// weeks.
type HomeworkService struct {
	*WeekService[domain.Homework]
}

func NewHomeworkService(backend Backend, loc *time.Location, ttl time.Duration) *HomeworkService {
	return &HomeworkService{WeekService: newHomeworkWeeks(backend, loc, ttl)}
}

// SetCompleted flips the completed flag locally, then on the server. A
// failed server update restores the weeks captured before the change.
func (s *HomeworkService) SetCompleted(ctx context.Context, id string, completed bool) error {
	if !s.backend.online(ctx) {
		return fmt.Errorf("set homework %s completed: %w", id, domain.ErrOffline)
	}

	session := s.backend.Engine.Session()
	if session.Context.SubjectID == "" {
		return fmt.Errorf("set homework %s completed: %w", id, domain.ErrNoSubject)
	}

	var previous domain.WeekState[domain.Homework]
	found := false
	session.Homework.Dispatch(func(state domain.WeekState[domain.Homework]) domain.WeekState[domain.Homework] {
		weeks, ok := domain.SetHomeworkCompleted(state.Weeks, id, completed)
		if !ok {
			return state
		}
		previous = state
		found = true
		return domain.WeekState[domain.Homework]{Weeks: weeks}
	})
	if !found {
		return fmt.Errorf("set homework %s completed: %w", id, domain.ErrItemNotFound)
	}

	req := ports.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/students/%s/homework/%s", url.PathEscape(session.Context.SubjectID), url.PathEscape(id)),
		Body:   homeworkCompletion{Type: "homework.completion", Completed: completed},
	}
	if _, err := s.backend.Fetcher.Transport().Do(ctx, req); err != nil {
		s.backend.Engine.commit(session, func() {
			session.Homework.Dispatch(func(domain.WeekState[domain.Homework]) domain.WeekState[domain.Homework] {
				return previous
			})
		})
		return fmt.Errorf("set homework %s completed: %w", id, err)
	}

	return nil
}
