package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/idgen"
	"conversation-service/internal/models"
)

var messageCols = []string{"id", "thread_id", "sender_id", "sender_name", "content", "created_at", "job_details"}

func TestMessageRepoAppendMessage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, idgen.MustSnowflake(1))
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM threads WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(threadRows("{recruiter1}", "{}", "{}"))
	mock.ExpectQuery(`UPDATE threads SET\s+last_message_at = \$2`).
		WithArgs(int64(42), fixed, "recruiter1").
		WillReturnRows(sqlmock.NewRows(threadCols).
			AddRow(int64(42), "candidate1", "recruiter1", "{recruiter1}", "{}", "{}", "{recruiter1}", fixed, fixed, fixed))
	mock.ExpectExec(`INSERT INTO messages`).
		WithArgs(sqlmock.AnyArg(), int64(42), "recruiter1", "Rita Recruiter", "hello", fixed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.AppendMessage(context.Background(), models.Message{
		ThreadID:   42,
		SenderID:   "recruiter1",
		SenderName: "Rita Recruiter",
		Content:    "hello",
		JobContext: &models.JobContext{JobID: "J1", JobTitle: "Backend Engineer"},
	})
	require.NoError(t, err)
	assert.True(t, res.FirstContact)
	assert.NotZero(t, res.Message.ID)
	assert.Equal(t, fixed, res.Message.CreatedAt)
	require.NotNil(t, res.Thread.LastMessageAt)
	assert.Equal(t, []string{"recruiter1"}, res.Thread.ContactedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoAppendRejectsNonParticipant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, idgen.MustSnowflake(1))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM threads WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(threadRows("{recruiter1}", "{}", "{}"))
	mock.ExpectRollback()

	_, err := repo.AppendMessage(context.Background(), models.Message{ThreadID: 42, SenderID: "stranger", Content: "hi"})
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoAppendMissingThread(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, idgen.MustSnowflake(1))

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows(threadCols))
	mock.ExpectRollback()

	_, err := repo.AppendMessage(context.Background(), models.Message{ThreadID: 1, SenderID: "a", Content: "hi"})
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepoListLatest(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db, idgen.MustSnowflake(1))
	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`ORDER BY created_at DESC, id DESC LIMIT \$2`).
		WithArgs(int64(42), 2).
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow(int64(2), int64(42), "recruiter1", "Rita", "second", t1, []byte(`{"job_id":"J1","job_title":"Backend Engineer"}`)).
			AddRow(int64(3), int64(42), "candidate1", "Cleo", "third", t1.Add(time.Second), nil))

	msgs, err := repo.ListMessages(context.Background(), 42, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[0].JobContext)
	assert.Equal(t, "Backend Engineer", msgs[0].JobContext.JobTitle)
	assert.Nil(t, msgs[1].JobContext)
}

func TestNextTimestampStrictlyIncreasing(t *testing.T) {
	last := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, last.Add(time.Microsecond), nextTimestamp(last.Add(-time.Second), &last))
	assert.Equal(t, last.Add(time.Microsecond), nextTimestamp(last, &last))
	assert.Equal(t, last.Add(time.Second), nextTimestamp(last.Add(time.Second), &last))
	assert.Equal(t, last, nextTimestamp(last.Add(500), nil))
}
