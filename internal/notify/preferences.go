package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

var ErrUnknownKind = errors.New("unknown notification kind")

// PreferenceCache is the optional read-through layer in front of the repository.
type PreferenceCache interface {
	Get(ctx context.Context, userID string) (models.Preferences, bool, error)
	Set(ctx context.Context, userID string, prefs models.Preferences) error
	Invalidate(ctx context.Context, userID string) error
}

// PreferenceStore resolves per-user notification preferences.
// Only explicit values are persisted; missing kinds resolve to enabled on read.
type PreferenceStore struct {
	repo  repositories.PreferenceRepository
	cache PreferenceCache
}

// NewPreferenceStore builds a store. cache may be nil.
func NewPreferenceStore(repo repositories.PreferenceRepository, cache PreferenceCache) *PreferenceStore {
	return &PreferenceStore{repo: repo, cache: cache}
}

// GetPreferences returns a value for every known kind. Storage failures are logged
// and answered with the defaults so notifications fail open.
func (s *PreferenceStore) GetPreferences(ctx context.Context, userID string) models.Preferences {
	if s.cache != nil {
		prefs, hit, err := s.cache.Get(ctx, userID)
		if err != nil {
			slog.WarnContext(ctx, "preference cache read failed", "user_id", userID, "error", err)
		} else if hit {
			return prefs.Resolve()
		}
	}

	stored, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "preference lookup failed, using defaults", "user_id", userID, "error", err)
		return models.Preferences{}.Resolve()
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, stored); err != nil {
			slog.WarnContext(ctx, "preference cache write failed", "user_id", userID, "error", err)
		}
	}
	return stored.Resolve()
}

// SetPreferences merges partial into the stored preferences and returns the resolved result.
// Kinds absent from partial keep their previous value.
func (s *PreferenceStore) SetPreferences(ctx context.Context, userID string, partial models.Preferences) (models.Preferences, error) {
	for kind := range partial {
		if !models.IsKnownKind(kind) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
		}
	}

	if err := s.repo.MergePreferences(ctx, userID, partial); err != nil {
		return nil, fmt.Errorf("merge preferences: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			slog.WarnContext(ctx, "preference cache invalidate failed", "user_id", userID, "error", err)
		}
	}

	stored, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload preferences: %w", err)
	}
	return stored.Resolve(), nil
}

// ShouldNotify reports whether userID wants notifications of the given kind.
func (s *PreferenceStore) ShouldNotify(ctx context.Context, userID string, kind models.NotificationKind) bool {
	return s.GetPreferences(ctx, userID).Enabled(kind)
}
