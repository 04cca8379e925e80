package relay

import (
	"sync"
	"time"

	"messenger-service/internal/models"
)

// Channel is a single live session capable of receiving pushed events.
// *ws.Conn is the production implementation.
type Channel interface {
	Send(event models.Event) error
	Close() error
}

// ConnInfo carries per-channel metadata used for lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      int64
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Registry tracks which live channels belong to which user identity. It is
// purely in-memory bookkeeping, local to this process; the message store is
// the durable fallback for identities with no registered channel.
type Registry struct {
	channels map[int64]map[Channel]ConnInfo
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[int64]map[Channel]ConnInfo)}
}

// Register associates a channel with an identity. An identity may hold any
// number of simultaneously registered channels (multiple devices or tabs).
func (r *Registry) Register(identity int64, ch Channel, info ConnInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[identity]; !ok {
		r.channels[identity] = make(map[Channel]ConnInfo)
	}
	r.channels[identity][ch] = info
}

// Unregister removes a channel. Unregistering an absent channel is a no-op.
func (r *Registry) Unregister(identity int64, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chans, ok := r.channels[identity]; ok {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(r.channels, identity)
		}
	}
}

// ChannelsFor returns a snapshot of the live channels for an identity. An
// empty result is not an error: it means deliver nothing now.
func (r *Registry) ChannelsFor(identity int64) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chans := make([]Channel, 0, len(r.channels[identity]))
	for ch := range r.channels[identity] {
		chans = append(chans, ch)
	}
	return chans
}

// Info returns the metadata registered for a channel.
func (r *Registry) Info(identity int64, ch Channel) (ConnInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if chans, ok := r.channels[identity]; ok {
		info, exists := chans[ch]
		return info, exists
	}
	return ConnInfo{}, false
}
