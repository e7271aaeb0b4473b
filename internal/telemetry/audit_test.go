package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func TestAuditEmitterBuildsEnvelope(t *testing.T) {
	pub := new(publisherMock)
	e := NewAuditEmitter(pub, "audit.conversations", "conversation-service", "test")
	e.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	expected := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    "2024-05-01T10:00:00Z",
		Service:       "conversation-service",
		Environment:   "test",
		RequestID:     "req-9",
		UserID:        "candidate1",
		Payload:       AuditPayload{Action: "thread.deleted", ThreadID: 42, IP: "192.0.2.1"},
	}
	pub.On("Publish", mock.Anything, "audit.conversations", expected).Return(nil).Once()

	e.Emit(context.Background(), AuditRecord{Action: "thread.deleted", UserID: "candidate1", ThreadID: 42, RequestID: "req-9", IP: "192.0.2.1"})
	pub.AssertExpectations(t)
}

func TestAuditEmitterSwallowsPublishError(t *testing.T) {
	pub := new(publisherMock)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	NewAuditEmitter(pub, "audit", "svc", "test").Emit(context.Background(), AuditRecord{Action: "thread.deleted"})
	pub.AssertExpectations(t)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var e *AuditEmitter
	assert.NotPanics(t, func() { e.Emit(context.Background(), AuditRecord{Action: "x"}) })
}

func TestAuditEmitterTakesIPFromContext(t *testing.T) {
	pub := new(publisherMock)
	pub.On("Publish", mock.Anything, "audit", mock.MatchedBy(func(env AuditEnvelope) bool {
		return env.Payload.IP == "203.0.113.7"
	})).Return(nil).Once()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	NewAuditEmitter(pub, "audit", "svc", "test").Emit(ctx, AuditRecord{Action: "thread.deleted"})
	pub.AssertExpectations(t)
}
