package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// ErrValidation marks an append rejected because a required field is missing.
var ErrValidation = errors.New("message validation failed")

// ErrStoreUnavailable marks a failure to reach the durable store within the
// per-call deadline.
var ErrStoreUnavailable = errors.New("message store unavailable")

const defaultStoreTimeout = 5 * time.Second

// MessageRepository is the durable append-only log of direct messages.
type MessageRepository interface {
	Append(ctx context.Context, senderID, receiverID int64, body, kind string) (models.Message, error)
	History(ctx context.Context, userA, userB int64) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewMessageRepo constructs MessageRepo with the default store timeout.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, timeout: defaultStoreTimeout}
}

// Append assigns id and timestamps and durably stores a message. The returned
// row is the canonical form echoed to live channels. Empty bodies are allowed;
// only missing identities are rejected.
func (r *MessageRepo) Append(ctx context.Context, senderID, receiverID int64, body, kind string) (models.Message, error) {
	if senderID == 0 || receiverID == 0 {
		return models.Message{}, ErrValidation
	}
	if kind == "" {
		kind = models.KindText
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (sender_id, receiver_id, body, kind)
        VALUES ($1, $2, $3, $4)
        RETURNING id, sender_id, receiver_id, body, kind, is_read, created_at, updated_at`,
		senderID, receiverID, body, kind).
		Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Body, &msg.Kind, &msg.IsRead, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return models.Message{}, storeErr(err)
	}
	return msg, nil
}

// History returns every message exchanged between the unordered pair, ascending
// by created_at with insertion order breaking ties. A pair with no traffic
// yields an empty slice, not an error.
func (r *MessageRepo) History(ctx context.Context, userA, userB int64) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT id, sender_id, receiver_id, body, kind, is_read, created_at, updated_at
        FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, userA, userB); err != nil {
		return nil, storeErr(err)
	}
	return msgs, nil
}

func storeErr(err error) error {
	return errors.Join(ErrStoreUnavailable, err)
}
