package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bnema/schoolday-cli/internal/adapters/repo/schema"
	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
)

// SnapshotRepository keeps one row per context id. The payload column holds
// the JSON form of schema.SnapshotDocument.
type SnapshotRepository struct {
	db *sql.DB
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Load(ctx context.Context, contextID string) (domain.Snapshot, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE context_id = ?`, contextID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Snapshot{}, domain.ErrSnapshotNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	var doc schema.SnapshotDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot payload: %w", err)
	}
	doc.ApplyDefaults()

	snapshot, err := doc.ToSnapshot()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", contextID, err)
	}

	return snapshot, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot domain.Snapshot) error {
	doc := schema.FromSnapshot(snapshot)

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO snapshots (context_id, saved_at, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(context_id) DO UPDATE SET saved_at = excluded.saved_at, payload = excluded.payload`,
		doc.ContextID,
		doc.SavedAt,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	return nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, contextID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE context_id = ?`, contextID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	return nil
}
