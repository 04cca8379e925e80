package relay

import (
	"context"
	"log"
	"time"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// Relay is the single orchestration point for submitting a direct message:
// persist first, then echo the stored form to every live channel of both
// participants. Built once at process start; holds no background goroutines.
type Relay struct {
	store    repositories.MessageRepository
	registry *Registry
}

// NewRelay constructs a Relay over a store and a registry.
func NewRelay(store repositories.MessageRepository, registry *Registry) *Relay {
	return &Relay{store: store, registry: registry}
}

// Registry exposes the connection registry for handlers that manage channel
// lifecycle.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Submit persists a message and fans it out. Persistence must complete before
// any delivery attempt; on persistence failure no delivery happens and the
// error is returned so the submitting channel can be told. Delivery is
// at-most-once per currently registered channel, with no retry: a channel
// whose push fails is closed and unregistered, and its client recovers
// through history on reconnect.
func (r *Relay) Submit(ctx context.Context, senderID, receiverID int64, body, kind string) (models.Message, error) {
	msg, err := r.store.Append(ctx, senderID, receiverID, body, kind)
	if err != nil {
		return models.Message{}, err
	}

	r.fanOut(ctx, msg)
	return msg, nil
}

// fanOut pushes the persisted message to the union of both participants'
// channels. The union is keyed by channel so a self-message delivers once per
// channel.
func (r *Relay) fanOut(ctx context.Context, msg models.Message) {
	targets := make(map[Channel]int64)
	for _, ch := range r.registry.ChannelsFor(msg.SenderID) {
		targets[ch] = msg.SenderID
	}
	for _, ch := range r.registry.ChannelsFor(msg.ReceiverID) {
		targets[ch] = msg.ReceiverID
	}

	event := models.Event{Type: models.EventMessage, Message: &msg}
	for ch, identity := range targets {
		if err := ch.Send(event); err != nil {
			log.Printf("delivery failed identity=%d message=%d: %v", identity, msg.ID, err)
			r.dropChannel(ctx, identity, ch, err)
			continue
		}
		observability.IncWSEvent("dm", "deliver")
	}
}

// dropChannel tears down a channel whose push failed. The delivery itself is
// lost; the message stays durable.
func (r *Relay) dropChannel(ctx context.Context, identity int64, ch Channel, cause error) {
	info, known := r.registry.Info(identity, ch)
	_ = ch.Close()
	r.registry.Unregister(identity, ch)
	observability.IncWSEvent("dm", "ws_error")
	if !known {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "dm",
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      cause.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.dms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
}
