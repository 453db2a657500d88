package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bnema/schoolday-cli/internal/adapters/repo/schema"
	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	snapshotPathKey = "snapshot.path"
	snapshotFile    = "snapshot.toml"
)

// SnapshotRepository keeps one snapshot per context id in a single TOML
// file.
type SnapshotRepository struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

func NewSnapshotRepository(cfg *viper.Viper) (*SnapshotRepository, error) {
	path, err := resolvePath(cfg, snapshotPathKey, snapshotFile)
	if err != nil {
		return nil, err
	}

	return &SnapshotRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *SnapshotRepository) Load(ctx context.Context, contextID string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Snapshot{}, err
	}

	for _, doc := range file.Snapshots {
		if doc.ContextID != contextID {
			continue
		}

		snapshot, err := doc.ToSnapshot()
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", contextID, err)
		}
		return snapshot, nil
	}

	return domain.Snapshot{}, domain.ErrSnapshotNotFound
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := schema.FromSnapshot(snapshot)
	updated := false
	for i := range file.Snapshots {
		if file.Snapshots[i].ContextID == encoded.ContextID {
			file.Snapshots[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Snapshots = append(file.Snapshots, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return writeTOMLFile(r.path, file)
}

func (r *SnapshotRepository) Delete(ctx context.Context, contextID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := make([]schema.SnapshotDocument, 0, len(file.Snapshots))
	for _, doc := range file.Snapshots {
		if doc.ContextID != contextID {
			kept = append(kept, doc)
		}
	}
	if len(kept) == len(file.Snapshots) {
		return nil
	}
	file.Snapshots = kept

	return writeTOMLFile(r.path, file)
}

func (r *SnapshotRepository) readSchema() (snapshotFileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := snapshotFileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return snapshotFileSchema{}, fmt.Errorf("read snapshot file: %w", err)
	}

	var file snapshotFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return snapshotFileSchema{}, fmt.Errorf("decode snapshot file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return snapshotFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}
