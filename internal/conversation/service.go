// Package conversation is the thread gateway: it owns the request/accept
// lifecycle of two-party threads and the message append path.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"conversation-service/internal/logger"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
)

var tracer = otel.Tracer("conversation-service/conversation")

// Notifier receives every successfully appended message. It must not block.
type Notifier interface {
	OnMessageSent(thread models.Thread, message models.Message, firstContact bool)
}

// Auditor records destructive actions.
type Auditor interface {
	Emit(ctx context.Context, rec telemetry.AuditRecord)
}

type Service struct {
	threads  repositories.ThreadRepository
	messages repositories.MessageRepository
	profiles repositories.ProfileDirectory
	jobs     repositories.JobDirectory
	notifier Notifier
	auditor  Auditor
}

type Deps struct {
	Threads  repositories.ThreadRepository
	Messages repositories.MessageRepository
	Profiles repositories.ProfileDirectory
	Jobs     repositories.JobDirectory
	Notifier Notifier
	Auditor  Auditor
}

func NewService(deps Deps) *Service {
	return &Service{
		threads:  deps.Threads,
		messages: deps.Messages,
		profiles: deps.Profiles,
		jobs:     deps.Jobs,
		notifier: deps.Notifier,
		auditor:  deps.Auditor,
	}
}

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "conversation."+op, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, op string, err error) {
	observability.ObserveThreadOp(op, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func withThread(ctx context.Context, threadID int64) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{ThreadID: logger.Ptr(threadID)})
}

// CreateOrGetThread returns the thread between the two users, creating it with
// acceptedBy = {initiator} when none exists. The boolean reports creation.
func (s *Service) CreateOrGetThread(ctx context.Context, initiatorID, recipientID string) (thread models.Thread, created bool, err error) {
	ctx, span := s.start(ctx, "CreateOrGetThread")
	defer func() { finish(span, "create_or_get", err) }()

	initiatorID, recipientID = strings.TrimSpace(initiatorID), strings.TrimSpace(recipientID)
	if initiatorID == "" || recipientID == "" {
		return models.Thread{}, false, fmt.Errorf("%w: both participants are required", ErrInvalidArgument)
	}
	if initiatorID == recipientID {
		return models.Thread{}, false, fmt.Errorf("%w: cannot start a thread with yourself", ErrInvalidArgument)
	}

	thread, created, err = s.threads.CreateOrGetThread(ctx, initiatorID, recipientID)
	if err != nil {
		return models.Thread{}, false, translate(err)
	}
	span.SetAttributes(attribute.Int64("thread.id", thread.ID), attribute.Bool("thread.created", created))

	if created {
		ctx = withThread(ctx, thread.ID)
		slog.InfoContext(ctx, "thread created", "initiator_id", initiatorID, "recipient_id", recipientID)
		s.publish(ctx, observability.RoutingThreadCreated, "thread_created", threadEvent{
			ThreadID:       thread.ID,
			ActorID:        initiatorID,
			ParticipantIDs: thread.ParticipantIDs,
		})
	}
	return thread, created, nil
}

// ListThreadsForUser returns the user's threads, most recent activity first.
func (s *Service) ListThreadsForUser(ctx context.Context, userID string) (threads []models.Thread, err error) {
	ctx, span := s.start(ctx, "ListThreadsForUser")
	defer func() { finish(span, "list", err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	threads, err = s.threads.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

func (s *Service) GetThread(ctx context.Context, threadID int64) (thread models.Thread, err error) {
	ctx, span := s.start(ctx, "GetThread", attribute.Int64("thread.id", threadID))
	defer func() { finish(span, "get", err) }()

	thread, err = s.threads.GetThread(ctx, threadID)
	return thread, translate(err)
}

// GetThreadForUser is GetThread restricted to participants.
func (s *Service) GetThreadForUser(ctx context.Context, threadID int64, userID string) (models.Thread, error) {
	thread, err := s.GetThread(ctx, threadID)
	if err != nil {
		return models.Thread{}, err
	}
	if !thread.IsParticipant(userID) {
		return models.Thread{}, ErrUnauthorized
	}
	return thread, nil
}

// AcceptThread adds userID to acceptedBy. Accepting twice is a no-op.
func (s *Service) AcceptThread(ctx context.Context, threadID int64, userID string) (thread models.Thread, err error) {
	ctx, span := s.start(ctx, "AcceptThread", attribute.Int64("thread.id", threadID))
	defer func() { finish(span, "accept", err) }()

	thread, err = s.threads.AddAccepted(ctx, threadID, userID)
	if err != nil {
		return models.Thread{}, translate(err)
	}

	ctx = withThread(ctx, threadID)
	slog.InfoContext(ctx, "thread accepted", "user_id", userID)
	s.publish(ctx, observability.RoutingThreadAccepted, "thread_accepted", threadEvent{
		ThreadID:       thread.ID,
		ActorID:        userID,
		ParticipantIDs: thread.ParticipantIDs,
	})
	return thread, nil
}

// ArchiveThread toggles userID's membership in archivedBy.
func (s *Service) ArchiveThread(ctx context.Context, threadID int64, userID string) (thread models.Thread, err error) {
	ctx, span := s.start(ctx, "ArchiveThread", attribute.Int64("thread.id", threadID))
	defer func() { finish(span, "archive", err) }()

	thread, err = s.threads.ToggleArchived(ctx, threadID, userID)
	return thread, translate(err)
}

// MuteThread toggles userID's membership in mutedBy.
func (s *Service) MuteThread(ctx context.Context, threadID int64, userID string) (thread models.Thread, err error) {
	ctx, span := s.start(ctx, "MuteThread", attribute.Int64("thread.id", threadID))
	defer func() { finish(span, "mute", err) }()

	thread, err = s.threads.ToggleMuted(ctx, threadID, userID)
	return thread, translate(err)
}

// DeleteThread permanently removes the thread and its messages for both participants.
func (s *Service) DeleteThread(ctx context.Context, threadID int64, userID string) (err error) {
	ctx, span := s.start(ctx, "DeleteThread", attribute.Int64("thread.id", threadID))
	defer func() { finish(span, "delete", err) }()

	thread, err := s.threads.GetThread(ctx, threadID)
	if err != nil {
		return translate(err)
	}
	if !thread.IsParticipant(userID) {
		return ErrUnauthorized
	}
	if err := s.threads.DeleteThread(ctx, threadID); err != nil {
		return translate(err)
	}

	ctx = withThread(ctx, threadID)
	slog.InfoContext(ctx, "thread deleted", "user_id", userID)
	if s.auditor != nil {
		fields := logger.GetLogFields(ctx)
		s.auditor.Emit(ctx, telemetry.AuditRecord{
			Action:    "thread.deleted",
			UserID:    userID,
			ThreadID:  threadID,
			RequestID: fields.RequestID,
			Detail:    strings.Join(thread.ParticipantIDs, ","),
		})
	}
	s.publish(ctx, observability.RoutingThreadDeleted, "thread_deleted", threadEvent{
		ThreadID:       threadID,
		ActorID:        userID,
		ParticipantIDs: thread.ParticipantIDs,
	})
	return nil
}

// AppendMessage stores a message and hands it to the notifier. Content is trimmed
// and must not be empty. jobContext is copied, never referenced.
func (s *Service) AppendMessage(ctx context.Context, threadID int64, senderID, content string, jobContext *models.JobContext) (msg models.Message, err error) {
	ctx, span := s.start(ctx, "AppendMessage", attribute.Int64("thread.id", threadID))
	defer func() { finish(span, "append", err) }()

	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, fmt.Errorf("%w: message content is empty", ErrInvalidArgument)
	}

	result, err := s.messages.AppendMessage(ctx, models.Message{
		ThreadID:   threadID,
		SenderID:   senderID,
		SenderName: s.senderName(ctx, senderID),
		Content:    content,
		JobContext: jobContext.Clone(),
	})
	if err != nil {
		return models.Message{}, translate(err)
	}
	msg = result.Message
	observability.IncMessagesAppended()
	span.SetAttributes(attribute.Int64("message.id", msg.ID), attribute.Bool("message.first_contact", result.FirstContact))

	if s.notifier != nil {
		s.notifier.OnMessageSent(result.Thread, msg, result.FirstContact)
	}
	s.publish(withThread(ctx, threadID), observability.RoutingMessageAppended, "message_appended", messageEvent{
		ThreadID:     threadID,
		MessageID:    msg.ID,
		SenderID:     senderID,
		FirstContact: result.FirstContact,
		JobID:        jobID(msg.JobContext),
	})
	return msg, nil
}

// ListMessages returns the thread's messages in send order. A positive limit
// keeps only the latest limit messages.
func (s *Service) ListMessages(ctx context.Context, threadID int64, limit int) (msgs []models.Message, err error) {
	ctx, span := s.start(ctx, "ListMessages", attribute.Int64("thread.id", threadID))
	defer func() { finish(span, "list_messages", err) }()

	msgs, err = s.messages.ListMessages(ctx, threadID, limit)
	if err != nil {
		return nil, translate(err)
	}
	if len(msgs) == 0 {
		// an empty result does not distinguish a quiet thread from a missing one
		if _, err = s.threads.GetThread(ctx, threadID); err != nil {
			return nil, translate(err)
		}
	}
	return msgs, nil
}

// SnapshotJob copies the job posting so a message keeps it even if the job changes later.
// An empty jobID yields no snapshot.
func (s *Service) SnapshotJob(ctx context.Context, jobID string) (*models.JobContext, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, nil
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("snapshot job %s: %w", jobID, translate(err))
	}
	return &job, nil
}

func (s *Service) senderName(ctx context.Context, senderID string) string {
	if s.profiles == nil {
		return ""
	}
	profile, err := s.profiles.GetProfile(ctx, senderID)
	if err != nil {
		slog.DebugContext(ctx, "sender profile lookup failed", "sender_id", senderID, "error", err)
		return ""
	}
	return profile.DisplayName()
}

func (s *Service) publish(ctx context.Context, routingKey, name string, payload any) {
	_ = observability.PublishEvent(ctx, routingKey, name, logger.GetLogFields(ctx).RequestID, payload)
}

type threadEvent struct {
	ThreadID       int64    `json:"thread_id"`
	ActorID        string   `json:"actor_id"`
	ParticipantIDs []string `json:"participant_ids"`
}

type messageEvent struct {
	ThreadID     int64  `json:"thread_id"`
	MessageID    int64  `json:"message_id"`
	SenderID     string `json:"sender_id"`
	FirstContact bool   `json:"first_contact"`
	JobID        string `json:"job_id,omitempty"`
}

func jobID(job *models.JobContext) string {
	if job == nil {
		return ""
	}
	return job.JobID
}
