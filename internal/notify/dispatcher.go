// Package notify decides which conversation events become emails and sends them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"conversation-service/internal/logger"
	"conversation-service/internal/mail"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
)

const previewLength = 140

// Outcome labels for chat_notifications_total.
const (
	OutcomeSent       = "sent"
	OutcomeSuppressed = "suppressed"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeDropped    = "dropped"
)

// Preferences is the read side of the preference store.
type Preferences interface {
	ShouldNotify(ctx context.Context, userID string, kind models.NotificationKind) bool
}

type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	BaseURL     string
}

type messageEvent struct {
	thread       models.Thread
	message      models.Message
	firstContact bool
}

type directEvent struct {
	userID string
	kind   models.NotificationKind
	data   Data
}

// job is one queued unit of work; exactly one field is set.
type job struct {
	message *messageEvent
	direct  *directEvent
}

// Dispatcher turns appended messages and producer requests into notifications.
// OnMessageSent and Enqueue never block the caller; delivery happens on worker goroutines.
type Dispatcher struct {
	prefs     Preferences
	profiles  repositories.ProfileDirectory
	transport mail.Transport
	templates *Templates
	opts      Options

	queue   chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	once    sync.Once
}

func NewDispatcher(prefs Preferences, profiles repositories.ProfileDirectory, transport mail.Transport, templates *Templates, opts Options) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Dispatcher{
		prefs:     prefs,
		profiles:  profiles,
		transport: transport,
		templates: templates,
		opts:      opts,
		queue:     make(chan job, opts.QueueSize),
	}
}

// Start launches the worker goroutines. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
		slog.Info("notification dispatcher started", "workers", d.opts.Workers, "queue_size", d.opts.QueueSize, "transport", d.transport.Name())
	})
}

// Close stops accepting events and waits for queued ones to drain or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notification queue: %w", ctx.Err())
	}
}

// OnMessageSent enqueues a message notification. When the queue is full or the
// dispatcher is closed the event is dropped and counted.
func (d *Dispatcher) OnMessageSent(thread models.Thread, message models.Message, firstContact bool) {
	ev := &messageEvent{thread: thread.Clone(), message: message, firstContact: firstContact}
	d.enqueue(job{message: ev}, "thread_id", thread.ID, "message_id", message.ID)
}

// Enqueue queues a notification raised outside the message flow. It reports
// false when the event was dropped because the queue is full or closed.
func (d *Dispatcher) Enqueue(userID string, kind models.NotificationKind, data Data) bool {
	ev := &directEvent{userID: userID, kind: kind, data: data}
	return d.enqueue(job{direct: ev}, "recipient_id", userID, "kind", kind)
}

func (d *Dispatcher) enqueue(j job, attrs ...any) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		slog.Warn("notification dropped, dispatcher closed", attrs...)
		observability.IncNotifyQueueDropped()
		return false
	}

	select {
	case d.queue <- j:
		return true
	default:
		slog.Warn("notification dropped, queue full", attrs...)
		observability.IncNotifyQueueDropped()
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		switch {
		case j.message != nil:
			d.handleMessage(*j.message)
		case j.direct != nil:
			ctx := logger.WithLogFields(context.Background(), logger.LogFields{Component: "notify"})
			d.Dispatch(ctx, j.direct.userID, j.direct.kind, j.direct.data)
		}
	}
}

func (d *Dispatcher) handleMessage(ev messageEvent) {
	ctx := logger.WithLogFields(context.Background(), logger.LogFields{
		ThreadID:  logger.Ptr(ev.thread.ID),
		Component: "notify",
	})

	kind := models.KindRecruiterMessageFollowUp
	if ev.firstContact {
		kind = models.KindNewRecruiterMessage
	}

	recipientID, ok := ev.thread.OtherParticipant(ev.message.SenderID)
	if !ok {
		slog.ErrorContext(ctx, "sender is not a thread participant", "sender_id", ev.message.SenderID)
		observability.IncNotification(string(kind), OutcomeSkipped)
		return
	}
	if ev.thread.HasMuted(recipientID) {
		slog.DebugContext(ctx, "recipient muted thread", "recipient_id", recipientID)
		observability.IncNotification(string(kind), OutcomeSkipped)
		return
	}

	recipient, err := d.profiles.GetProfile(ctx, recipientID)
	if err != nil {
		slog.ErrorContext(ctx, "recipient lookup failed", "recipient_id", recipientID, "error", err)
		observability.IncNotification(string(kind), OutcomeFailed)
		return
	}
	if !recipient.IsCandidate() {
		observability.IncNotification(string(kind), OutcomeSkipped)
		return
	}

	data := Data{
		SenderName: ev.message.SenderName,
		Preview:    preview(ev.message.Content),
		Link:       fmt.Sprintf("%s/messages/%d", d.opts.BaseURL, ev.thread.ID),
	}
	if ev.message.JobContext != nil {
		data.JobTitle = ev.message.JobContext.JobTitle
	}
	if sender, err := d.profiles.GetProfile(ctx, ev.message.SenderID); err == nil {
		data.CompanyName = sender.CompanyName
		if data.SenderName == "" {
			data.SenderName = sender.DisplayName()
		}
	}

	d.deliver(ctx, recipient, kind, data)
}

// ShouldNotify reports whether userID has kind enabled. Lookup failures resolve to true.
func (d *Dispatcher) ShouldNotify(ctx context.Context, userID string, kind models.NotificationKind) bool {
	return d.prefs.ShouldNotify(ctx, userID, kind)
}

// Dispatch sends kind to userID if their preferences allow it. It is the entry point
// for producers outside the conversation flow such as endorsements and profile views.
// Failures are logged and counted, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, kind models.NotificationKind, data Data) {
	recipient, err := d.profiles.GetProfile(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "recipient lookup failed", "recipient_id", userID, "kind", kind, "error", err)
		observability.IncNotification(string(kind), OutcomeFailed)
		return
	}
	d.deliver(ctx, recipient, kind, data)
}

func (d *Dispatcher) deliver(ctx context.Context, recipient models.Profile, kind models.NotificationKind, data Data) {
	if !d.ShouldNotify(ctx, recipient.UserID, kind) {
		slog.DebugContext(ctx, "notification suppressed by preference", "recipient_id", recipient.UserID, "kind", kind)
		observability.IncNotification(string(kind), OutcomeSuppressed)
		return
	}
	if recipient.Email == "" {
		slog.WarnContext(ctx, "recipient has no email address", "recipient_id", recipient.UserID)
		observability.IncNotification(string(kind), OutcomeSkipped)
		return
	}

	if data.RecipientName == "" {
		data.RecipientName = recipient.FirstName
	}
	if data.Link == "" {
		data.Link = d.opts.BaseURL
	}
	rendered, err := d.templates.Render(kind, data)
	if err != nil {
		slog.ErrorContext(ctx, "render notification failed", "kind", kind, "error", err)
		observability.IncNotification(string(kind), OutcomeFailed)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	err = d.transport.Send(sendCtx, mail.Envelope{
		To:      recipient.Email,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		Kind:    string(kind),
	})
	if err != nil {
		slog.ErrorContext(ctx, "notification send failed", "recipient_id", recipient.UserID, "kind", kind, "transport", d.transport.Name(), "error", err)
		observability.IncNotification(string(kind), OutcomeFailed)
		return
	}
	slog.InfoContext(ctx, "notification sent", "recipient_id", recipient.UserID, "kind", kind)
	observability.IncNotification(string(kind), OutcomeSent)
}

func preview(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "…"
}
