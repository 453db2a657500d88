package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/bnema/schoolday-cli/internal/ports"
)

type ProfileService struct {
	repo  ports.ProfileRepository
	store ports.SecretStore
}

func NewProfileService(repo ports.ProfileRepository, store ports.SecretStore) *ProfileService {
	return &ProfileService{repo: repo, store: store}
}

// AddProfile saves a new profile. The first profile becomes active.
func (s *ProfileService) AddProfile(ctx context.Context, profile domain.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("validate profile: %w", err)
	}

	_, err := s.repo.GetByID(ctx, profile.ID)
	switch {
	case err == nil:
		return fmt.Errorf("profile %q already exists", profile.ID)
	case !errors.Is(err, domain.ErrProfileNotFound):
		return fmt.Errorf("get profile by id: %w", err)
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	if _, err := s.repo.Active(ctx); err != nil {
		if !errors.Is(err, domain.ErrNoActiveProfile) {
			return fmt.Errorf("get active profile: %w", err)
		}
		if err := s.repo.SetActive(ctx, profile.ID); err != nil {
			return fmt.Errorf("set active profile: %w", err)
		}
	}

	return nil
}

func (s *ProfileService) List(ctx context.Context) ([]domain.Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

func (s *ProfileService) Active(ctx context.Context) (domain.Profile, error) {
	profile, err := s.repo.Active(ctx)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get active profile: %w", err)
	}
	return profile, nil
}

// Use makes id the active profile.
func (s *ProfileService) Use(ctx context.Context, id domain.ProfileID) (domain.Profile, error) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile by id: %w", err)
	}

	if err := s.repo.SetActive(ctx, id); err != nil {
		return domain.Profile{}, fmt.Errorf("set active profile: %w", err)
	}

	return profile, nil
}

// Token reads the API token referenced by profile.
func (s *ProfileService) Token(ctx context.Context, profile domain.Profile) (string, error) {
	if strings.TrimSpace(profile.TokenRef) == "" {
		return "", fmt.Errorf("profile %q has no token: %w", profile.ID, domain.ErrSecretNotFound)
	}

	token, err := s.store.Get(ctx, profile.TokenRef)
	if err != nil {
		return "", fmt.Errorf("read profile token: %w", err)
	}

	return token, nil
}

// SetToken stores token under secretKey and points the profile at it. The
// stored secret is removed again when the profile cannot be saved, and the
// previous secret is deleted once the new one is in place.
func (s *ProfileService) SetToken(ctx context.Context, id domain.ProfileID, secretKey, token string) error {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get profile by id: %w", err)
	}
	original := profile
	previousRef := profile.TokenRef

	if err := s.store.Put(ctx, secretKey, token); err != nil {
		return fmt.Errorf("store profile token: %w", err)
	}

	profile.TokenRef = secretKey
	if err := s.repo.Save(ctx, profile); err != nil {
		if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
			return fmt.Errorf("save profile token and rollback stored secret: %w", errors.Join(err, rollbackErr))
		}

		return fmt.Errorf("save profile token: %w", err)
	}

	if previousRef == "" || previousRef == secretKey {
		return nil
	}

	if err := s.store.Delete(ctx, previousRef); err != nil {
		var rollbackErr error
		if restoreErr := s.repo.Save(ctx, original); restoreErr != nil {
			rollbackErr = errors.Join(rollbackErr, restoreErr)
		}
		if newSecretDeleteErr := s.store.Delete(ctx, secretKey); newSecretDeleteErr != nil {
			rollbackErr = errors.Join(rollbackErr, newSecretDeleteErr)
		}
		if rollbackErr != nil {
			return fmt.Errorf("delete previous profile token and rollback token update: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("delete previous profile token: %w", err)
	}

	return nil
}

// RemoveToken clears the token reference, then deletes the secret. The
// reference is restored when the secret cannot be deleted.
func (s *ProfileService) RemoveToken(ctx context.Context, id domain.ProfileID) error {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get profile by id: %w", err)
	}
	if profile.TokenRef == "" {
		return nil
	}
	original := profile

	profile.TokenRef = ""
	if err := s.repo.Save(ctx, profile); err != nil {
		return fmt.Errorf("save profile token: %w", err)
	}

	if err := s.store.Delete(ctx, original.TokenRef); err != nil {
		if restoreErr := s.repo.Save(ctx, original); restoreErr != nil {
			return fmt.Errorf("delete profile token and restore reference: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete profile token: %w", err)
	}

	return nil
}
