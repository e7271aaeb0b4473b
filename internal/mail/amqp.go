package mail

import "context"

// Publisher is the subset of the RabbitMQ publisher the AMQP transport needs.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AMQPTransport hands envelopes to an external mailer through RabbitMQ.
type AMQPTransport struct {
	publisher  Publisher
	routingKey string
}

func NewAMQPTransport(publisher Publisher, routingKey string) *AMQPTransport {
	return &AMQPTransport{publisher: publisher, routingKey: routingKey}
}

func (t *AMQPTransport) Name() string { return "amqp" }

func (t *AMQPTransport) Send(ctx context.Context, env Envelope) error {
	if err := t.publisher.Publish(ctx, t.routingKey, env); err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}
	return nil
}
