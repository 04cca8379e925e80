package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	userpb "messenger-service/pb/user"
)

func setupHistoryRouter(handler *HistoryHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/messages/:user_id/:other_user_id", handler.GetHistory)
	return r
}

func TestGetHistorySuccess(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userClient := new(mocks.UserClientMock)
	handler := NewHistoryHandler(messageRepo, userClient, nil)
	router := setupHistoryRouter(handler)

	now := time.Now()
	msgs := []models.Message{
		{ID: 1, SenderID: 1, ReceiverID: 2, Body: "hi", Kind: "text", CreatedAt: now, UpdatedAt: now},
		{ID: 2, SenderID: 2, ReceiverID: 1, Body: "hey", Kind: "text", CreatedAt: now.Add(time.Second), UpdatedAt: now.Add(time.Second)},
	}
	messageRepo.On("History", mock.Anything, int64(1), int64(2)).Return(msgs, nil).Once()
	userClient.On("BulkUsers", mock.Anything, []int64{1, 2}).Return([]*userpb.GetUserResponse{
		{Id: 1, Username: "alice"},
		{Id: 2, Username: "bob"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/1/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []struct {
			ID             int64  `json:"id"`
			Sender         int64  `json:"sender"`
			Receiver       int64  `json:"receiver"`
			Body           string `json:"message"`
			Kind           string `json:"type"`
			IsRead         bool   `json:"isRead"`
			SenderUsername string `json:"senderUsername"`
		} `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	require.Equal(t, "hi", resp.Messages[0].Body)
	require.Equal(t, "alice", resp.Messages[0].SenderUsername)
	require.False(t, resp.Messages[0].IsRead)
	require.Equal(t, int64(2), resp.Messages[1].Sender)

	messageRepo.AssertExpectations(t)
	userClient.AssertExpectations(t)
}

func TestGetHistoryEmptyPairIsNotAnError(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	userClient := new(mocks.UserClientMock)
	handler := NewHistoryHandler(messageRepo, userClient, nil)
	router := setupHistoryRouter(handler)

	messageRepo.On("History", mock.Anything, int64(1), int64(5)).Return([]models.Message{}, nil).Once()
	userClient.On("BulkUsers", mock.Anything, []int64{}).Return([]*userpb.GetUserResponse{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/1/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.JSONEq(t, `[]`, string(resp["messages"]))
	messageRepo.AssertExpectations(t)
}

func TestGetHistoryRequesterMustBeParticipant(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewHistoryHandler(messageRepo, new(mocks.UserClientMock), nil)
	router := setupHistoryRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/messages/2/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messageRepo.AssertNotCalled(t, "History")
}

func TestGetHistoryStoreUnavailable(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewHistoryHandler(messageRepo, new(mocks.UserClientMock), nil)
	router := setupHistoryRouter(handler)

	messageRepo.On("History", mock.Anything, int64(1), int64(2)).
		Return(([]models.Message)(nil), repositories.ErrStoreUnavailable).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/1/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	messageRepo.AssertExpectations(t)
}

func TestGetHistoryInvalidID(t *testing.T) {
	handler := NewHistoryHandler(new(mocks.MessageRepositoryMock), new(mocks.UserClientMock), nil)
	router := setupHistoryRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/messages/abc/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
