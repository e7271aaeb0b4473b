package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"conversation-service/internal/models"
)

type ThreadServiceMock struct {
	mock.Mock
}

func (m *ThreadServiceMock) CreateOrGetThread(ctx context.Context, initiatorID, recipientID string) (models.Thread, bool, error) {
	args := m.Called(ctx, initiatorID, recipientID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Bool(1), args.Error(2)
}

func (m *ThreadServiceMock) ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error) {
	args := m.Called(ctx, userID)
	var list []models.Thread
	if val := args.Get(0); val != nil {
		list = val.([]models.Thread)
	}
	return list, args.Error(1)
}

func (m *ThreadServiceMock) GetThreadForUser(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return m.threadResult(m.Called(ctx, threadID, userID))
}

func (m *ThreadServiceMock) AcceptThread(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return m.threadResult(m.Called(ctx, threadID, userID))
}

func (m *ThreadServiceMock) ArchiveThread(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return m.threadResult(m.Called(ctx, threadID, userID))
}

func (m *ThreadServiceMock) MuteThread(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	return m.threadResult(m.Called(ctx, threadID, userID))
}

func (m *ThreadServiceMock) threadResult(args mock.Arguments) (models.Thread, error) {
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadServiceMock) DeleteThread(ctx context.Context, threadID int64, userID string) error {
	args := m.Called(ctx, threadID, userID)
	return args.Error(0)
}

func (m *ThreadServiceMock) AppendMessage(ctx context.Context, threadID int64, senderID, content string, jobContext *models.JobContext) (models.Message, error) {
	args := m.Called(ctx, threadID, senderID, content, jobContext)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *ThreadServiceMock) ListMessages(ctx context.Context, threadID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, threadID, limit)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *ThreadServiceMock) SnapshotJob(ctx context.Context, jobID string) (*models.JobContext, error) {
	args := m.Called(ctx, jobID)
	var job *models.JobContext
	if val := args.Get(0); val != nil {
		job = val.(*models.JobContext)
	}
	return job, args.Error(1)
}

type PreferenceServiceMock struct {
	mock.Mock
}

func (m *PreferenceServiceMock) GetPreferences(ctx context.Context, userID string) models.Preferences {
	args := m.Called(ctx, userID)
	var prefs models.Preferences
	if val := args.Get(0); val != nil {
		prefs = val.(models.Preferences)
	}
	return prefs
}

func (m *PreferenceServiceMock) SetPreferences(ctx context.Context, userID string, partial models.Preferences) (models.Preferences, error) {
	args := m.Called(ctx, userID, partial)
	var prefs models.Preferences
	if val := args.Get(0); val != nil {
		prefs = val.(models.Preferences)
	}
	return prefs, args.Error(1)
}
