package models

import "time"

// KindText is the default payload kind. Other kinds pass through uninterpreted.
const KindText = "text"

// Message is a direct message between two users in its canonical persisted form.
type Message struct {
	ID         int64     `db:"id" json:"id"`
	SenderID   int64     `db:"sender_id" json:"sender"`
	ReceiverID int64     `db:"receiver_id" json:"receiver"`
	Body       string    `db:"body" json:"message"`
	Kind       string    `db:"kind" json:"type"`
	IsRead     bool      `db:"is_read" json:"isRead"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Event is pushed to websocket clients.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Event types.
const (
	EventMessage = "message"
	EventError   = "error"
)

// Error codes carried on EventError frames.
const (
	CodeValidationFailed = "validation_failed"
	CodeStoreUnavailable = "store_unavailable"
	CodeForbidden        = "forbidden"
	CodeBadFrame         = "bad_frame"
)

// SubmitRequest is a client frame asking to relay a message. Sender is optional;
// when present it must match the identity the channel authenticated with.
type SubmitRequest struct {
	Sender   int64  `json:"sender,omitempty"`
	Receiver int64  `json:"receiver"`
	Body     string `json:"message"`
	Kind     string `json:"type,omitempty"`
}
