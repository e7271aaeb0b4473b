package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
	err       error
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", "conversations")
	mode, reason := Describe(p)
	assert.Equal(t, "noop", mode)
	assert.Equal(t, "empty amqp url", reason)
	assert.NoError(t, p.Publish(context.Background(), "any", map[string]string{"a": "b"}))
	assert.NoError(t, p.Close())
}

func TestAMQPPublisherEncodesJSON(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "conversations"}

	require.NoError(t, p.Publish(context.Background(), "conversation_events.message_appended", map[string]int{"thread_id": 7}))
	require.Len(t, ch.published, 1)
	assert.Equal(t, "conversation_events.message_appended", ch.keys[0])
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.NotEmpty(t, ch.published[0].MessageId)

	var body map[string]int
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &body))
	assert.Equal(t, 7, body["thread_id"])
	mode, _ := Describe(p)
	assert.Equal(t, "amqp", mode)
}

func TestAMQPPublisherReturnsChannelError(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{err: amqp.ErrClosed}, exchange: "conversations"}
	assert.ErrorIs(t, p.Publish(context.Background(), "k", "v"), amqp.ErrClosed)
}

func TestDialWithoutURL(t *testing.T) {
	_, err := Dial("", "conversations")
	assert.ErrorIs(t, err, errNoURL)
}

func TestAMQPPublisherCloseWithoutConnection(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{}, exchange: "conversations"}
	assert.NoError(t, p.Close())
}
