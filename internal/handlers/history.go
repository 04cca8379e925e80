package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	userpb "messenger-service/pb/user"
)

// UserDirectory resolves display names for history decoration.
type UserDirectory interface {
	BulkUsers(ctx context.Context, ids []int64) ([]*userpb.GetUserResponse, error)
}

// HistoryHandler serves the conversation backlog for a pair of users.
type HistoryHandler struct {
	messageRepo repositories.MessageRepository
	userClient  UserDirectory
	audit       *telemetry.AuditEmitter
}

// NewHistoryHandler builds a HistoryHandler.
func NewHistoryHandler(messageRepo repositories.MessageRepository, userClient UserDirectory, audit *telemetry.AuditEmitter) *HistoryHandler {
	return &HistoryHandler{messageRepo: messageRepo, userClient: userClient, audit: audit}
}

// GetHistory returns all messages between the two users named in the path, in
// chronological order. The authenticated requester must be one of the two
// participants. A pair with no traffic yields an empty list, not an error.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	otherUserID, err := strconv.ParseInt(c.Param("other_user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	requester := c.GetInt64("userID")
	if requester != userID && requester != otherUserID {
		h.audit.Emit(c.Request.Context(), "WARN",
			fmt.Sprintf("history access denied: requester %d not in pair (%d, %d)", requester, userID, otherUserID),
			requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	msgs, err := h.messageRepo.History(c.Request.Context(), userID, otherUserID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int64, 0, len(msgs))
	senderIDSet := map[int64]struct{}{}
	for _, m := range msgs {
		if _, ok := senderIDSet[m.SenderID]; !ok {
			senderIDSet[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	users, err := h.userClient.BulkUsers(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load senders"})
		return
	}
	senderNames := map[int64]string{}
	for _, u := range users {
		senderNames[u.GetId()] = u.GetUsername()
	}

	type messageResponse struct {
		models.Message
		SenderUsername string `json:"senderUsername,omitempty"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, SenderUsername: senderNames[m.SenderID]})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}
