package grpc

import (
	"context"
	"errors"

	userpb "messenger-service/pb/user"
)

// UserClient wraps the user-service gRPC client.
type UserClient struct {
	client userpb.UserInternalClient
}

// NewUserClient constructs the wrapper.
func NewUserClient(client userpb.UserInternalClient) *UserClient {
	return &UserClient{client: client}
}

// GetUser retrieves user details.
func (u *UserClient) GetUser(ctx context.Context, userID int64) (*userpb.GetUserResponse, error) {
	resp, err := u.client.GetUser(ctx, &userpb.GetUserRequest{UserId: userID})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.GetId() == 0 {
		return nil, errors.New("user not found")
	}
	return resp, nil
}

// BulkUsers fetches multiple users in one call.
func (u *UserClient) BulkUsers(ctx context.Context, ids []int64) ([]*userpb.GetUserResponse, error) {
	if len(ids) == 0 {
		return []*userpb.GetUserResponse{}, nil
	}

	resp, err := u.client.BulkUsers(ctx, &userpb.BulkUsersRequest{Ids: ids})
	if err != nil {
		return nil, err
	}
	return resp.GetUsers(), nil
}
