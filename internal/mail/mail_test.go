package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSMTPTransportIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   SMTPConfig
		expected bool
	}{
		{name: "empty config", config: SMTPConfig{}, expected: false},
		{name: "missing host", config: SMTPConfig{Port: "587", From: "noreply@example.com"}, expected: false},
		{name: "missing from", config: SMTPConfig{Host: "smtp.example.com", Port: "587"}, expected: false},
		{name: "fully configured", config: SMTPConfig{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewSMTPTransport(tt.config).IsConfigured())
		})
	}
}

func TestSMTPTransportSendBuildsMultipart(t *testing.T) {
	tr := NewSMTPTransport(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", FromName: "Talent"})
	var sent []byte
	var rcpt []string
	tr.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "smtp.example.com:587", addr)
		rcpt = to
		sent = msg
		return nil
	}

	err := tr.Send(context.Background(), Envelope{To: "cleo@example.com", Subject: "Hi", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cleo@example.com"}, rcpt)
	body := string(sent)
	assert.Contains(t, body, "From: Talent <noreply@example.com>")
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "<p>hi</p>")
	assert.True(t, strings.Contains(body, "text/plain"))
}

func TestSMTPTransportWrapsFailure(t *testing.T) {
	tr := NewSMTPTransport(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"})
	tr.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 try later") }

	err := tr.Send(context.Background(), Envelope{To: "x@example.com"})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "smtp", terr.Transport)
}

func TestSMTPTransportHonoursDeadline(t *testing.T) {
	tr := NewSMTPTransport(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"})
	release := make(chan struct{})
	defer close(release)
	tr.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tr.Send(ctx, Envelope{To: "x@example.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func TestAMQPTransportPublishesEnvelope(t *testing.T) {
	pub := new(publisherMock)
	env := Envelope{To: "cleo@example.com", Subject: "New message", Kind: "new_recruiter_message"}
	pub.On("Publish", mock.Anything, "mail.outgoing", env).Return(nil).Once()

	require.NoError(t, NewAMQPTransport(pub, "mail.outgoing").Send(context.Background(), env))
	pub.AssertExpectations(t)
}

func TestAMQPTransportWrapsFailure(t *testing.T) {
	pub := new(publisherMock)
	pub.On("Publish", mock.Anything, "mail.outgoing", mock.Anything).Return(assert.AnError).Once()

	err := NewAMQPTransport(pub, "mail.outgoing").Send(context.Background(), Envelope{})
	assert.ErrorIs(t, err, assert.AnError)
	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
}
