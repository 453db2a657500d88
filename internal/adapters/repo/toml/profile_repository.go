package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/schoolday-cli/internal/adapters/repo/schema"
	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	profilesPathKey = "profiles.path"
	fileMode        = 0o600
	dirMode         = 0o700
	configDir       = ".schoolday"
	profilesFile    = "profiles.toml"
	tempFilePattern = ".schoolday-*.toml.tmp"
)

type ProfileRepository struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(cfg *viper.Viper) (*ProfileRepository, error) {
	path, err := resolvePath(cfg, profilesPathKey, profilesFile)
	if err != nil {
		return nil, err
	}

	return &ProfileRepository{path: path, mu: lockForPath(path)}, nil
}

func (r *ProfileRepository) Path() string {
	return r.path
}

func (r *ProfileRepository) Save(ctx context.Context, profile domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validate profile: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toProfileSchema(profile)
	updated := false
	for i := range file.Profiles {
		if file.Profiles[i].ID == encoded.ID {
			file.Profiles[i] = encoded
			updated = true
			break
		}
	}
	if !updated {
		file.Profiles = append(file.Profiles, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return writeTOMLFile(r.path, file)
}

func (r *ProfileRepository) GetByID(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Profile{}, err
	}

	return file.profile(id)
}

func (r *ProfileRepository) List(ctx context.Context) ([]domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	profiles := make([]domain.Profile, 0, len(file.Profiles))
	for _, entry := range file.Profiles {
		profiles = append(profiles, fromProfileSchema(entry))
	}

	return profiles, nil
}

func (r *ProfileRepository) Active(ctx context.Context) (domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Profile{}, err
	}
	if file.ActiveProfile == "" {
		return domain.Profile{}, domain.ErrNoActiveProfile
	}

	return file.profile(domain.ProfileID(file.ActiveProfile))
}

func (r *ProfileRepository) SetActive(ctx context.Context, id domain.ProfileID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}
	if _, err := file.profile(id); err != nil {
		return err
	}
	file.ActiveProfile = string(id)

	return writeTOMLFile(r.path, file)
}

func (r *ProfileRepository) History(ctx context.Context) (domain.ContextHistory, error) {
	if err := ctx.Err(); err != nil {
		return domain.ContextHistory{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.ContextHistory{}, err
	}

	history := domain.ContextHistory{Entries: make([]domain.ContextEntry, 0, len(file.History))}
	for _, entry := range file.History {
		history.Entries = append(history.Entries, domain.ContextEntry{
			Context: domain.SessionContext{
				AuthenticationContextID: entry.AuthContext,
				AccountID:               entry.Account,
				SubjectID:               entry.Subject,
			},
			Label:    entry.Label,
			LastSeen: schema.ParseTime(entry.LastSeen),
			Switches: entry.Switches,
		})
	}

	return history, nil
}

func (r *ProfileRepository) SaveHistory(ctx context.Context, history domain.ContextHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	file.History = make([]historySchema, 0, len(history.Entries))
	for _, entry := range history.Entries {
		file.History = append(file.History, historySchema{
			AuthContext: entry.Context.AuthenticationContextID,
			Account:     entry.Context.AccountID,
			Subject:     entry.Context.SubjectID,
			Label:       entry.Label,
			LastSeen:    schema.FormatTime(entry.LastSeen),
			Switches:    entry.Switches,
		})
	}

	return writeTOMLFile(r.path, file)
}

func (r *ProfileRepository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read profiles file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode profiles file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (s fileSchema) profile(id domain.ProfileID) (domain.Profile, error) {
	for _, entry := range s.Profiles {
		if entry.ID == string(id) {
			return fromProfileSchema(entry), nil
		}
	}

	return domain.Profile{}, domain.ErrProfileNotFound
}

func resolvePath(cfg *viper.Viper, key string, fileName string) (string, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path := cfg.GetString(key)
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, configDir, fileName)
	}

	return normalizePath(path)
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func writeTOMLFile(path string, file any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}

	cleanup = false

	return nil
}

func toProfileSchema(profile domain.Profile) profileSchema {
	return profileSchema{
		ID:          string(profile.ID),
		Name:        profile.Name,
		BaseURL:     profile.BaseURL,
		AuthContext: profile.Context.AuthenticationContextID,
		Account:     profile.Context.AccountID,
		Subject:     profile.Context.SubjectID,
		TokenRef:    profile.TokenRef,
	}
}

func fromProfileSchema(entry profileSchema) domain.Profile {
	return domain.Profile{
		ID:      domain.ProfileID(entry.ID),
		Name:    entry.Name,
		BaseURL: entry.BaseURL,
		Context: domain.SessionContext{
			AuthenticationContextID: entry.AuthContext,
			AccountID:               entry.Account,
			SubjectID:               entry.Subject,
		},
		TokenRef: entry.TokenRef,
	}
}
