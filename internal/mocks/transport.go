package mocks

import (
	"context"
	"sync"

	"conversation-service/internal/mail"
)

// RecordingTransport keeps every envelope it is asked to send.
type RecordingTransport struct {
	mu   sync.Mutex
	sent []mail.Envelope
	Err  error
}

func (t *RecordingTransport) Name() string { return "recording" }

func (t *RecordingTransport) Send(ctx context.Context, env mail.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.sent = append(t.sent, env)
	return nil
}

func (t *RecordingTransport) Sent() []mail.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]mail.Envelope, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentTo returns the envelopes addressed to email.
func (t *RecordingTransport) SentTo(email string) []mail.Envelope {
	var out []mail.Envelope
	for _, env := range t.Sent() {
		if env.To == email {
			out = append(out, env)
		}
	}
	return out
}
