// Package mail delivers rendered notification emails through a pluggable transport.
package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// Envelope is one rendered email.
type Envelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
	// Kind is the notification kind, carried for routing and metrics.
	Kind string `json:"kind,omitempty"`
}

// Transport sends an envelope. Implementations must honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	Name() string
}

// TransportError wraps a provider or network failure.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// LogTransport only logs envelopes; used in development when no mailer is configured.
type LogTransport struct{}

func (LogTransport) Name() string { return "log" }

func (LogTransport) Send(ctx context.Context, env Envelope) error {
	slog.InfoContext(ctx, "mail not sent, log transport", "to", env.To, "subject", env.Subject, "kind", env.Kind)
	return nil
}
