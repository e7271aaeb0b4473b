package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// PublisherMock stands in for the RabbitMQ publisher in event and audit tests.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

// ExpectPublish expects exactly one publish to routingKey, whatever the payload.
func (m *PublisherMock) ExpectPublish(routingKey string, err error) *mock.Call {
	return m.On("Publish", mock.Anything, routingKey, mock.Anything).Return(err).Once()
}
