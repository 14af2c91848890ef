// Package audit records security-relevant request outcomes: rejected
// tokens, honeypot hits, admin-key failures. Rows identify the caller by a
// salted hash so the log never stores a raw address.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/an-orlov/consultbooking/libs/db"
)

const (
	EventTokenMissing  = "token_missing"
	EventTokenInvalid  = "token_invalid"
	EventTokenExpired  = "token_expired"
	EventHoneypotHit   = "honeypot_hit"
	EventAdminKeyBad   = "admin_key_rejected"
	EventSlotConflict  = "slot_conflict"
)

// ClientHash derives the stored caller identifier. The salt keeps offline
// dictionary runs over the IPv4 space from reversing the column.
func ClientHash(salt, clientKey string) string {
	sum := sha256.Sum256([]byte(salt + "|" + clientKey))
	return hex.EncodeToString(sum[:])[:32]
}

type Recorder struct {
	pool   *db.Pool
	salt   string
	logger *slog.Logger
}

func NewRecorder(pool *db.Pool, salt string, logger *slog.Logger) *Recorder {
	return &Recorder{pool: pool, salt: salt, logger: logger}
}

// Record writes one audit row. Auditing is best effort: a failed insert is
// logged and swallowed so it never turns a rejection into a 500.
func (r *Recorder) Record(ctx context.Context, eventType, clientKey string, detail map[string]string) {
	body := []byte("{}")
	if len(detail) > 0 {
		if b, err := json.Marshal(detail); err == nil {
			body = b
		}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_events (event_type, client_hash, detail)
		VALUES ($1, $2, $3)
	`, eventType, ClientHash(r.salt, clientKey), body)
	if err != nil {
		r.logger.Warn("audit insert failed", "event", eventType, "err", err)
	}
}
