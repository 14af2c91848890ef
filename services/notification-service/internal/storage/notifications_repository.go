package storage

import (
	"context"
	"encoding/json"

	"github.com/an-orlov/consultbooking/libs/db"
)

const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"

	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt, kept for support and replay.
type Notification struct {
	BookingRef string
	EventType  string
	Channel    string
	Recipient  string
	Payload    map[string]any
	Status     string
	Error      string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_ref, event_type, channel, recipient, payload, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.BookingRef, n.EventType, n.Channel, n.Recipient, payload, n.Status, n.Error)
	return err
}
