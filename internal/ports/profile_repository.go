package ports

import (
	"context"

	"github.com/bnema/schoolday-cli/internal/domain"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error)
	List(ctx context.Context) ([]domain.Profile, error)
	Save(ctx context.Context, profile domain.Profile) error
	Active(ctx context.Context) (domain.Profile, error)
	SetActive(ctx context.Context, id domain.ProfileID) error
	History(ctx context.Context) (domain.ContextHistory, error)
	SaveHistory(ctx context.Context, history domain.ContextHistory) error
}
