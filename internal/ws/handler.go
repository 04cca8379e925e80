package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	grpcclient "messenger-service/internal/grpc"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/relay"
	"messenger-service/internal/repositories"
)

// Handler owns the live-session endpoint. The bearer credential presented at
// the handshake establishes the channel identity for the whole session; every
// submit frame on the channel is relayed as that identity.
type Handler struct {
	relay      *relay.Relay
	authClient grpcclient.TokenValidator
}

// NewHandler constructs a websocket Handler.
func NewHandler(r *relay.Relay, authClient grpcclient.TokenValidator) *Handler {
	return &Handler{relay: r, authClient: authClient}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers the channel and serves its submit
// frames until the session ends.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	identity, err := h.validateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := relay.ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	channel := NewConn(conn)
	h.relay.Registry().Register(identity, channel, info)

	observability.IncWSActive("dm")
	observability.IncWSEvent("dm", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.dms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   lifecyclePayload("ws_connect", info, 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	go h.serve(ctx, identity, channel, info)
}

// serve runs the read loop for one channel and tears it down on exit.
// Unregistering is idempotent, so a channel already dropped by a failed
// delivery is handled cleanly here.
func (h *Handler) serve(ctx context.Context, identity int64, channel *Conn, info relay.ConnInfo) {
	var closeReason string
	defer func() {
		h.relay.Registry().Unregister(identity, channel)
		observability.DecWSActive("dm")
		observability.IncWSEvent("dm", "ws_disconnect")
		_ = observability.PublishEvent(ctx, "ws_events.dms", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   lifecyclePayload("ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
		}, observability.BuildHeaders(info.RequestID, info.TraceID))
		channel.Close()
	}()

	for {
		payload, err := channel.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("dm", "ws_error")
				_ = observability.PublishEvent(ctx, "ws_events.dms", observability.EventEnvelope{
					EventType: "ws_events",
					EventName: "ws_error",
					Payload:   lifecyclePayload("ws_error", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
				}, observability.BuildHeaders(info.RequestID, info.TraceID))
			}
			return
		}

		h.handleFrame(identity, channel, payload)
	}
}

// handleFrame relays one submit frame. Failures are acknowledged on the
// submitting channel only; other channels never see a failed submit.
func (h *Handler) handleFrame(identity int64, channel relay.Channel, payload []byte) {
	var req models.SubmitRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		_ = channel.Send(models.Event{Type: models.EventError, Code: models.CodeBadFrame, Error: "malformed frame"})
		return
	}

	if req.Sender != 0 && req.Sender != identity {
		_ = channel.Send(models.Event{Type: models.EventError, Code: models.CodeForbidden, Error: "sender does not match channel identity"})
		return
	}

	// The request context died with the handshake; submits get their own.
	if _, err := h.relay.Submit(context.Background(), identity, req.Receiver, req.Body, req.Kind); err != nil {
		code := models.CodeStoreUnavailable
		if errors.Is(err, repositories.ErrValidation) {
			code = models.CodeValidationFailed
		}
		_ = channel.Send(models.Event{Type: models.EventError, Code: code, Error: "message not delivered"})
	}
}

func (h *Handler) validateToken(ctx context.Context, header string) (int64, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.authClient.ValidateToken(ctx, parts[1])
	}
	return 0, fmt.Errorf("invalid token")
}

func lifecyclePayload(event string, info relay.ConnInfo, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "dm",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
