package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"conversation-service/internal/idgen"
	"conversation-service/internal/models"
)

var (
	ErrThreadNotFound  = errors.New("thread not found")
	ErrNotParticipant  = errors.New("user is not a thread participant")
	ErrSelfThread      = errors.New("cannot create thread with self")
	ErrUnknownSetField = errors.New("unknown thread set field")
)

// ThreadRepository abstracts thread persistence.
type ThreadRepository interface {
	CreateOrGetThread(ctx context.Context, initiatorID, recipientID string) (models.Thread, bool, error)
	GetThread(ctx context.Context, threadID int64) (models.Thread, error)
	ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error)
	AddAccepted(ctx context.Context, threadID int64, userID string) (models.Thread, error)
	ToggleArchived(ctx context.Context, threadID int64, userID string) (models.Thread, error)
	ToggleMuted(ctx context.Context, threadID int64, userID string) (models.Thread, error)
	DeleteThread(ctx context.Context, threadID int64) error
}

const threadColumns = `id, user_low, user_high, accepted_by, archived_by, muted_by, contacted_by, created_at, updated_at, last_message_at`

type threadRow struct {
	ID            int64          `db:"id"`
	UserLow       string         `db:"user_low"`
	UserHigh      string         `db:"user_high"`
	AcceptedBy    pq.StringArray `db:"accepted_by"`
	ArchivedBy    pq.StringArray `db:"archived_by"`
	MutedBy       pq.StringArray `db:"muted_by"`
	ContactedBy   pq.StringArray `db:"contacted_by"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	LastMessageAt sql.NullTime   `db:"last_message_at"`
}

func (r threadRow) toModel() models.Thread {
	t := models.Thread{
		ID:             r.ID,
		ParticipantIDs: []string{r.UserLow, r.UserHigh},
		AcceptedBy:     nonNil(r.AcceptedBy),
		ArchivedBy:     nonNil(r.ArchivedBy),
		MutedBy:        nonNil(r.MutedBy),
		ContactedBy:    nonNil(r.ContactedBy),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.LastMessageAt.Valid {
		ts := r.LastMessageAt.Time
		t.LastMessageAt = &ts
	}
	return t
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// ThreadRepo is a sqlx implementation of ThreadRepository.
type ThreadRepo struct {
	db  *sqlx.DB
	ids idgen.Generator
}

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(db *sqlx.DB, ids idgen.Generator) *ThreadRepo {
	return &ThreadRepo{db: db, ids: ids}
}

// CreateOrGetThread creates a thread between two users if it does not already exist.
// The boolean result is true when a new thread was inserted.
func (r *ThreadRepo) CreateOrGetThread(ctx context.Context, initiatorID, recipientID string) (models.Thread, bool, error) {
	if initiatorID == recipientID {
		return models.Thread{}, false, ErrSelfThread
	}
	low, high := models.CanonicalPair(initiatorID, recipientID)

	var row threadRow
	err := r.db.QueryRowxContext(ctx, `INSERT INTO threads (id, user_low, user_high, accepted_by)
        VALUES ($1, $2, $3, ARRAY[$4::TEXT])
        ON CONFLICT (user_low, user_high) DO NOTHING
        RETURNING `+threadColumns, r.ids.Next(), low, high, initiatorID).StructScan(&row)
	if err == nil {
		return row.toModel(), true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, false, fmt.Errorf("insert thread: %w", err)
	}

	// lost the race or the pair already had a thread
	if err := r.db.GetContext(ctx, &row, `SELECT `+threadColumns+` FROM threads WHERE user_low=$1 AND user_high=$2`, low, high); err != nil {
		return models.Thread{}, false, fmt.Errorf("load existing thread: %w", err)
	}
	return row.toModel(), false, nil
}

// GetThread fetches a thread by id.
func (r *ThreadRepo) GetThread(ctx context.Context, threadID int64) (models.Thread, error) {
	var row threadRow
	err := r.db.GetContext(ctx, &row, `SELECT `+threadColumns+` FROM threads WHERE id=$1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	if err != nil {
		return models.Thread{}, err
	}
	return row.toModel(), nil
}

// ListThreadsForUser returns every thread the user participates in, most recent activity first.
func (r *ThreadRepo) ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error) {
	var rows []threadRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+threadColumns+` FROM threads
        WHERE user_low=$1 OR user_high=$1
        ORDER BY GREATEST(updated_at, COALESCE(last_message_at, updated_at)) DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	threads := make([]models.Thread, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, row.toModel())
	}
	return threads, nil
}

// AddAccepted adds the user to accepted_by. Adding an existing member only bumps updated_at.
func (r *ThreadRepo) AddAccepted(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	query := `UPDATE threads SET
            accepted_by = CASE WHEN $2 = ANY(accepted_by) THEN accepted_by ELSE array_append(accepted_by, $2) END,
            updated_at = NOW()
        WHERE id=$1 AND $2 IN (user_low, user_high)
        RETURNING ` + threadColumns
	return r.updateOne(ctx, query, threadID, userID)
}

// ToggleArchived flips the user's membership in archived_by.
func (r *ThreadRepo) ToggleArchived(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return r.toggle(ctx, "archived_by", threadID, userID)
}

// ToggleMuted flips the user's membership in muted_by.
func (r *ThreadRepo) ToggleMuted(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return r.toggle(ctx, "muted_by", threadID, userID)
}

// toggle updates a single array column in one statement. The row lock taken by UPDATE
// serializes concurrent toggles and other columns are never rewritten.
func (r *ThreadRepo) toggle(ctx context.Context, column string, threadID int64, userID string) (models.Thread, error) {
	if column != "archived_by" && column != "muted_by" {
		return models.Thread{}, ErrUnknownSetField
	}
	query := fmt.Sprintf(`UPDATE threads SET
            %[1]s = CASE WHEN $2 = ANY(%[1]s) THEN array_remove(%[1]s, $2) ELSE array_append(%[1]s, $2) END,
            updated_at = NOW()
        WHERE id=$1 AND $2 IN (user_low, user_high)
        RETURNING %[2]s`, column, threadColumns)
	return r.updateOne(ctx, query, threadID, userID)
}

func (r *ThreadRepo) updateOne(ctx context.Context, query string, threadID int64, userID string) (models.Thread, error) {
	var row threadRow
	err := r.db.QueryRowxContext(ctx, query, threadID, userID).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		// either the thread is gone or the user is not part of it
		if _, getErr := r.GetThread(ctx, threadID); getErr != nil {
			return models.Thread{}, getErr
		}
		return models.Thread{}, ErrNotParticipant
	}
	if err != nil {
		return models.Thread{}, err
	}
	return row.toModel(), nil
}

// DeleteThread removes the thread; messages go with it through ON DELETE CASCADE.
func (r *ThreadRepo) DeleteThread(ctx context.Context, threadID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM threads WHERE id=$1`, threadID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrThreadNotFound
	}
	return nil
}
