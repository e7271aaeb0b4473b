package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
)

// SMTPConfig holds SMTP configuration.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPTransport sends multipart emails with net/smtp.
type SMTPTransport struct {
	config   SMTPConfig
	server   string
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPTransport creates a new SMTP transport.
func NewSMTPTransport(config SMTPConfig) *SMTPTransport {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &SMTPTransport{
		config:   config,
		server:   config.Host + ":" + config.Port,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

// IsConfigured returns true if host, port and sender are set.
func (t *SMTPTransport) IsConfigured() bool {
	return t.config.Host != "" && t.config.Port != "" && t.config.From != ""
}

// Send delivers env. net/smtp has no context support, so the call runs in its own
// goroutine and Send returns as soon as ctx is done.
func (t *SMTPTransport) Send(ctx context.Context, env Envelope) error {
	if !t.IsConfigured() {
		return &TransportError{Transport: t.Name(), Err: errors.New("smtp not configured")}
	}

	msg := t.buildMessage(env)
	done := make(chan error, 1)
	go func() {
		done <- t.sendMail(t.server, t.auth, t.config.From, []string{env.To}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &TransportError{Transport: t.Name(), Err: err}
		}
		return nil
	case <-ctx.Done():
		return &TransportError{Transport: t.Name(), Err: ctx.Err()}
	}
}

func (t *SMTPTransport) buildMessage(env Envelope) []byte {
	from := t.config.From
	if t.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", t.config.FromName, t.config.From)
	}
	boundary := "alt-" + uuid.NewString()

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", env.To)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", env.Subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", env.Text)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", env.HTML)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return msg.Bytes()
}
