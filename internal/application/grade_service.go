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
)

type GradeService struct {
	*refresher
}

func NewGradeService(backend Backend, ttl time.Duration) *GradeService {
	return &GradeService{refresher: &refresher{backend: backend, name: CallGrades, ttl: ttl}}
}

func (s *GradeService) Refresh(ctx context.Context) (bool, error) {
	return s.refresh(ctx,
		func(sc domain.SessionContext) (ports.Request, error) {
			if sc.SubjectID == "" {
				return ports.Request{}, domain.ErrNoSubject
			}
			return ports.Request{
				Method: http.MethodGet,
				Path:   fmt.Sprintf("/students/%s/grades", url.PathEscape(sc.SubjectID)),
				Header: http.Header{},
			}, nil
		},
		func(raw []json.RawMessage) (func(*Session), error) {
			grades, err := decodeAll(raw, decodeGrade)
			if err != nil {
				return nil, err
			}

			now := s.backend.Engine.Clock().Now()
			return func(session *Session) {
				session.Grades.Dispatch(func(state domain.GradeState) domain.GradeState {
					return domain.ReplaceGrades(state, grades, now)
				})
			}, nil
		},
	)
}

func (s *GradeService) State() domain.GradeState {
	return s.backend.Engine.Session().Grades.State()
}
