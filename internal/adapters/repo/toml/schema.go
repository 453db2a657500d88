package toml

import (
	"fmt"

	"github.com/bnema/schoolday-cli/internal/adapters/repo/schema"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version       int             `toml:"version"`
	ActiveProfile string          `toml:"active_profile,omitempty"`
	Profiles      []profileSchema `toml:"profiles"`
	History       []historySchema `toml:"history,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported profiles schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type profileSchema struct {
	ID          string `toml:"id"`
	Name        string `toml:"name"`
	BaseURL     string `toml:"base_url"`
	AuthContext string `toml:"auth_context"`
	Account     string `toml:"account,omitempty"`
	Subject     string `toml:"subject,omitempty"`
	TokenRef    string `toml:"token_ref,omitempty"`
}

type historySchema struct {
	AuthContext string `toml:"auth_context"`
	Account     string `toml:"account,omitempty"`
	Subject     string `toml:"subject,omitempty"`
	Label       string `toml:"label,omitempty"`
	LastSeen    string `toml:"last_seen"`
	Switches    int    `toml:"switches"`
}

type snapshotFileSchema struct {
	Version   int                       `toml:"version"`
	Snapshots []schema.SnapshotDocument `toml:"snapshots"`
}

func (s *snapshotFileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s snapshotFileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported snapshot file version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}
