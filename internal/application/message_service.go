package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
)

type MessageService struct {
	*refresher
}

func NewMessageService(backend Backend, ttl time.Duration) *MessageService {
	return &MessageService{refresher: &refresher{backend: backend, name: CallMessages, ttl: ttl}}
}

func (s *MessageService) Refresh(ctx context.Context, folder string) (bool, error) {
	folder = normalizeFolder(folder)

	return s.refresh(ctx,
		func(sc domain.SessionContext) (ports.Request, error) {
			if sc.AccountID == "" {
				return ports.Request{}, domain.ErrNoAccount
			}
			return ports.Request{
				Method: http.MethodGet,
				Path:   fmt.Sprintf("/accounts/%s/messages", url.PathEscape(sc.AccountID)),
				Query:  url.Values{"folder": {folder}},
				Header: http.Header{},
			}, nil
		},
		func(raw []json.RawMessage) (func(*Session), error) {
			messages, err := decodeAll(raw, decodeMessage)
			if err != nil {
				return nil, err
			}

			return func(session *Session) {
				session.Messages.Dispatch(func(state domain.MessageState) domain.MessageState {
					return domain.ReplaceFolder(state, folder, messages)
				})
			}, nil
		},
	)
}

func (s *MessageService) Folder(folder string) []domain.Message {
	return s.State().Folder(normalizeFolder(folder))
}

func (s *MessageService) State() domain.MessageState {
	return s.backend.Engine.Session().Messages.State()
}

// MarkRead sets the read flag locally first and restores the previous
// folders when the server rejects the change.
func (s *MessageService) MarkRead(ctx context.Context, id string, read bool) error {
	if !s.backend.online(ctx) {
		return fmt.Errorf("mark message %s read: %w", id, domain.ErrOffline)
	}

	session := s.backend.Engine.Session()
	if session.Context.AccountID == "" {
		return fmt.Errorf("mark message %s read: %w", id, domain.ErrNoAccount)
	}

	var previous domain.MessageState
	found := false
	session.Messages.Dispatch(func(state domain.MessageState) domain.MessageState {
		updated, ok := domain.SetMessageRead(state, id, read)
		if !ok {
			return state
		}
		previous = state
		found = true
		return updated
	})
	if !found {
		return fmt.Errorf("mark message %s read: %w", id, domain.ErrItemNotFound)
	}

	req := ports.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/accounts/%s/messages/%s", url.PathEscape(session.Context.AccountID), url.PathEscape(id)),
		Body:   messageReadFlag{Type: "message.read", Read: read},
	}
	if _, err := s.backend.Fetcher.Transport().Do(ctx, req); err != nil {
		s.backend.Engine.commit(session, func() {
			session.Messages.Dispatch(func(domain.MessageState) domain.MessageState {
				return previous
			})
		})
		return fmt.Errorf("mark message %s read: %w", id, err)
	}

	return nil
}

func normalizeFolder(folder string) string {
	folder = strings.ToLower(strings.TrimSpace(folder))
	if folder == "" {
		return domain.DefaultMessageFolder
	}
	return folder
}
