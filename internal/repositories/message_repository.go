package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/idgen"
	"conversation-service/internal/models"
)

// MessageRepository defines interactions for thread messages.
type MessageRepository interface {
	// AppendMessage stores msg at the end of its thread and updates the thread's
	// timestamps. ID and CreatedAt are assigned by the repository.
	AppendMessage(ctx context.Context, msg models.Message) (models.AppendResult, error)
	// ListMessages returns messages in ascending order. A positive limit keeps only the latest ones.
	ListMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error)
}

type messageRow struct {
	ID         int64     `db:"id"`
	ThreadID   int64     `db:"thread_id"`
	SenderID   string    `db:"sender_id"`
	SenderName string    `db:"sender_name"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
	JobDetails []byte    `db:"job_details"`
}

func (r messageRow) toModel() (models.Message, error) {
	msg := models.Message{
		ID:         r.ID,
		ThreadID:   r.ThreadID,
		SenderID:   r.SenderID,
		SenderName: r.SenderName,
		Content:    r.Content,
		CreatedAt:  r.CreatedAt,
	}
	if len(r.JobDetails) > 0 {
		var job models.JobContext
		if err := json.Unmarshal(r.JobDetails, &job); err != nil {
			return models.Message{}, fmt.Errorf("decode job details of message %d: %w", r.ID, err)
		}
		msg.JobContext = &job
	}
	return msg, nil
}

const messageColumns = `id, thread_id, sender_id, sender_name, content, created_at, job_details`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db  *sqlx.DB
	ids idgen.Generator
	now func() time.Time
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB, ids idgen.Generator) *MessageRepo {
	return &MessageRepo{db: db, ids: ids, now: time.Now}
}

// AppendMessage locks the thread row for the duration of the transaction, so appends to
// the same thread are serialized while other threads proceed independently.
func (r *MessageRepo) AppendMessage(ctx context.Context, msg models.Message) (result models.AppendResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.AppendResult{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var locked threadRow
	if err = tx.GetContext(ctx, &locked, `SELECT `+threadColumns+` FROM threads WHERE id=$1 FOR UPDATE`, msg.ThreadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrThreadNotFound
		}
		return models.AppendResult{}, err
	}
	thread := locked.toModel()
	if !thread.IsParticipant(msg.SenderID) {
		err = ErrNotParticipant
		return models.AppendResult{}, err
	}

	msg.ID = r.ids.Next()
	msg.CreatedAt = nextTimestamp(r.now(), thread.LastMessageAt)
	firstContact := !containsUser(thread.ContactedBy, msg.SenderID)

	var jobDetails sql.NullString
	if msg.JobContext != nil {
		var raw []byte
		if raw, err = json.Marshal(msg.JobContext); err != nil {
			return models.AppendResult{}, fmt.Errorf("encode job details: %w", err)
		}
		jobDetails = sql.NullString{String: string(raw), Valid: true}
	}

	var updated threadRow
	if err = tx.QueryRowxContext(ctx, `UPDATE threads SET
            last_message_at = $2,
            updated_at = $2,
            contacted_by = CASE WHEN $3 = ANY(contacted_by) THEN contacted_by ELSE array_append(contacted_by, $3) END
        WHERE id=$1
        RETURNING `+threadColumns, msg.ThreadID, msg.CreatedAt, msg.SenderID).StructScan(&updated); err != nil {
		return models.AppendResult{}, fmt.Errorf("update thread: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ThreadID, msg.SenderID, msg.SenderName, msg.Content, msg.CreatedAt, jobDetails); err != nil {
		return models.AppendResult{}, fmt.Errorf("insert message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.AppendResult{}, err
	}
	return models.AppendResult{Message: msg, Thread: updated.toModel(), FirstContact: firstContact}, nil
}

// ListMessages returns ordered thread messages.
func (r *MessageRepo) ListMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error) {
	var rows []messageRow
	var err error
	if limit > 0 {
		err = r.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM (
                SELECT `+messageColumns+` FROM messages WHERE thread_id=$1
                ORDER BY created_at DESC, id DESC LIMIT $2
            ) latest
            ORDER BY created_at ASC, id ASC`, threadID, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM messages WHERE thread_id=$1
            ORDER BY created_at ASC, id ASC`, threadID)
	}
	if err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := row.toModel()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// nextTimestamp returns now truncated to the database precision, pushed forward when
// needed so it is strictly after the thread's previous message.
func nextTimestamp(now time.Time, last *time.Time) time.Time {
	ts := now.UTC().Truncate(time.Microsecond)
	if last != nil && !ts.After(*last) {
		ts = last.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return ts
}

func containsUser(ids []string, userID string) bool {
	for _, id := range ids {
		if id == userID {
			return true
		}
	}
	return false
}
