package ports

import (
	"context"

	"github.com/bnema/schoolday-cli/internal/domain"
)

// SnapshotRepository persists one snapshot per context id. Load returns
// domain.ErrSnapshotNotFound when nothing was saved for contextID.
type SnapshotRepository interface {
	Load(ctx context.Context, contextID string) (domain.Snapshot, error)
	Save(ctx context.Context, snapshot domain.Snapshot) error
	Delete(ctx context.Context, contextID string) error
}
