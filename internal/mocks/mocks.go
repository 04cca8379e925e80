package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	grpcclient "messenger-service/internal/grpc"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	userpb "messenger-service/pb/user"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, senderID, receiverID int64, body, kind string) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, body, kind)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, userA, userB int64) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type AuthClientMock struct {
	mock.Mock
}

func (m *AuthClientMock) ValidateToken(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

type UserClientMock struct {
	mock.Mock
}

func (m *UserClientMock) BulkUsers(ctx context.Context, ids []int64) ([]*userpb.GetUserResponse, error) {
	args := m.Called(ctx, ids)
	var users []*userpb.GetUserResponse
	if val := args.Get(0); val != nil {
		users = val.([]*userpb.GetUserResponse)
	}
	return users, args.Error(1)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ grpcclient.TokenValidator = (*AuthClientMock)(nil)
var _ interface {
	BulkUsers(context.Context, []int64) ([]*userpb.GetUserResponse, error)
} = (*UserClientMock)(nil)
