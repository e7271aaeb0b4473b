package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

// PreferenceRepository stores explicit notification preferences. Defaults are never written.
type PreferenceRepository interface {
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
	MergePreferences(ctx context.Context, userID string, partial models.Preferences) error
}

// PreferenceRepo keeps one row per (user, kind) so a merge only touches the given kinds.
type PreferenceRepo struct {
	db *sqlx.DB
}

// NewPreferenceRepo constructs a PreferenceRepo.
func NewPreferenceRepo(db *sqlx.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// GetPreferences returns only the stored values for the user.
func (r *PreferenceRepo) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	var rows []struct {
		Kind    string `db:"kind"`
		Enabled bool   `db:"enabled"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT kind, enabled FROM notification_preferences WHERE user_id=$1`, userID); err != nil {
		return nil, err
	}
	prefs := make(models.Preferences, len(rows))
	for _, row := range rows {
		prefs[models.NotificationKind(row.Kind)] = row.Enabled
	}
	return prefs, nil
}

// MergePreferences upserts each given kind in one transaction.
func (r *PreferenceRepo) MergePreferences(ctx context.Context, userID string, partial models.Preferences) (err error) {
	if len(partial) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for kind, enabled := range partial {
		if _, err = tx.ExecContext(ctx, `INSERT INTO notification_preferences (user_id, kind, enabled, updated_at) VALUES ($1, $2, $3, NOW())
            ON CONFLICT (user_id, kind) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
			userID, string(kind), enabled); err != nil {
			return err
		}
	}
	return tx.Commit()
}
