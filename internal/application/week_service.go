package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// WeekService keeps one weekly-bucketed domain of the current session.
type WeekService[T domain.WeekItem[T]] struct {
	*refresher
	reducer domain.WeekReducer[T]
	slice   func(*Session) *Store[domain.WeekState[T]]
	decode  func([]byte) (T, error)
}

type AppointmentService = WeekService[domain.Appointment]

func NewAppointmentService(backend Backend, loc *time.Location, ttl time.Duration) *AppointmentService {
	return &WeekService[domain.Appointment]{
		refresher: &refresher{backend: backend, name: CallAppointments, ttl: ttl},
		reducer:   domain.NewWeekReducer[domain.Appointment](loc),
		slice: func(s *Session) *Store[domain.WeekState[domain.Appointment]] {
			return s.Appointments
		},
		decode: decodeAppointment,
	}
}

func newHomeworkWeeks(backend Backend, loc *time.Location, ttl time.Duration) *WeekService[domain.Homework] {
	return &WeekService[domain.Homework]{
		refresher: &refresher{backend: backend, name: CallHomework, ttl: ttl},
		reducer:   domain.NewWeekReducer[domain.Homework](loc),
		slice: func(s *Session) *Store[domain.WeekState[domain.Homework]] {
			return s.Homework
		},
		decode: decodeHomework,
	}
}

func (s *WeekService[T]) Reducer() domain.WeekReducer[T] {
	return s.reducer
}

// Refresh fetches the week of key unless an equal call is still fresh.
func (s *WeekService[T]) Refresh(ctx context.Context, key domain.PeriodKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}

	return s.refresh(ctx,
		func(sc domain.SessionContext) (ports.Request, error) {
			return s.request(sc, key)
		},
		func(raw []json.RawMessage) (func(*Session), error) {
			items, err := decodeAll(raw, s.decode)
			if err != nil {
				return nil, err
			}

			week := s.reducer.BuildWeek(key, items)
			return func(session *Session) {
				s.slice(session).Dispatch(func(state domain.WeekState[T]) domain.WeekState[T] {
					return domain.WeekState[T]{Weeks: s.reducer.UpsertWeek(state.Weeks, week)}
				})
			}, nil
		},
	)
}

// Week returns the stored bucket for key.
func (s *WeekService[T]) Week(key domain.PeriodKey) (domain.WeekBucket[T], bool) {
	return s.State().Week(key)
}

func (s *WeekService[T]) State() domain.WeekState[T] {
	return s.slice(s.backend.Engine.Session()).State()
}

// ApplyDelta merges a pushed change into the current session. It returns
// false when the delta was dropped.
func (s *WeekService[T]) ApplyDelta(item T, removed bool) bool {
	applied := false
	s.slice(s.backend.Engine.Session()).Dispatch(func(state domain.WeekState[T]) domain.WeekState[T] {
		if !s.reducer.CanApply(state.Weeks, item) {
			return state
		}
		applied = true
		return domain.WeekState[T]{Weeks: s.reducer.ApplyDelta(state.Weeks, item, removed)}
	})

	if !applied {
		s.backend.logger().Debug("dropping delta",
			zap.String("call", s.name),
			zap.String("id", item.ItemID()),
			zap.Stringer("week", s.reducer.PeriodOf(item)),
		)
	}

	return applied
}

// DecodeDelta reads one pushed item in the wire format of the list endpoint.
func (s *WeekService[T]) DecodeDelta(raw []byte) (T, error) {
	return s.decode(raw)
}

func (s *WeekService[T]) request(sc domain.SessionContext, key domain.PeriodKey) (ports.Request, error) {
	if sc.SubjectID == "" {
		return ports.Request{}, domain.ErrNoSubject
	}

	monday := key.Monday(s.reducer.Location)
	return ports.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/students/%s/%s", url.PathEscape(sc.SubjectID), s.name),
		Query: url.Values{
			"from": {monday.Format(dateLayout)},
			"to":   {monday.AddDate(0, 0, 6).Format(dateLayout)},
		},
		Header: http.Header{},
	}, nil
}

// Signature is the call signature Refresh uses for key in sc.
func (s *WeekService[T]) Signature(sc domain.SessionContext, key domain.PeriodKey) (domain.CallSignature, error) {
	req, err := s.request(sc, key)
	if err != nil {
		return domain.CallSignature{}, err
	}

	return requestSignature(s.name, req)
}
