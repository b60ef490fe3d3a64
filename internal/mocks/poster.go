package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"classroom-chat/internal/models"
)

type MessagePosterMock struct {
	mock.Mock
}

func (m *MessagePosterMock) Post(ctx context.Context, roomID, userID, content, clientMessageID string) (models.Message, error) {
	args := m.Called(ctx, roomID, userID, content, clientMessageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}
