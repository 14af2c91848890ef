package storage

import (
	"context"

	"github.com/an-orlov/consultbooking/libs/db"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/outbox"
)

type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, ob *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: ob}
}

// CreatePending inserts the booking and its outbox event in one
// transaction. The unique index on (consultant_id, booking_date,
// booking_time) arbitrates races: the loser gets ErrSlotTaken, and neither
// its row nor its event survive the rollback.
func (r *BookingRepository) CreatePending(ctx context.Context, b *model.Booking, evt outbox.Event) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (public_ref, consultant_id, customer_name, customer_email, booking_date, booking_time, status)
		VALUES ($1, $2, $3, $4, $5::date, $6::time, $7)
		RETURNING id
	`, b.PublicRef, b.ConsultantID, b.CustomerName, b.CustomerEmail, b.BookingDate, b.BookingTime, model.StatusPending).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrSlotTaken
		}
		return 0, err
	}

	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// BlockingTimes returns the "HH:MM" start times of bookings that still hold
// their slot on the date. Cancelled and storno rows are excluded, which is
// what lets a freed slot be booked again.
func (r *BookingRepository) BlockingTimes(ctx context.Context, consultantID int64, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(booking_time, 'HH24:MI')
		FROM bookings
		WHERE consultant_id = $1
			AND booking_date = $2::date
			AND status = ANY($3)
		ORDER BY booking_time
	`, consultantID, date, model.BlockingStatuses())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return times, nil
}

func (r *BookingRepository) ListByConsultant(ctx context.Context, consultantID int64, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, public_ref::text, consultant_id, customer_name, customer_email,
			to_char(booking_date, 'YYYY-MM-DD'), to_char(booking_time, 'HH24:MI'), status, created_at
		FROM bookings
		WHERE consultant_id = $1
		ORDER BY booking_date DESC, booking_time DESC
		LIMIT $2
	`, consultantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.PublicRef, &b.ConsultantID, &b.CustomerName, &b.CustomerEmail,
			&b.BookingDate, &b.BookingTime, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// UpdateStatus transitions the booking and records the change as an outbox
// event in the same transaction. The caller has already validated the
// target status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, consultant model.Consultant, bookingID int64, status string) (model.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var oldStatus string
	err = tx.QueryRow(ctx, `
		SELECT status FROM bookings
		WHERE id = $1 AND consultant_id = $2
		FOR UPDATE
	`, bookingID, consultant.ID).Scan(&oldStatus)
	if err != nil {
		return model.Booking{}, mapNotFound(err)
	}

	var b model.Booking
	err = tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $3
		WHERE id = $1 AND consultant_id = $2
		RETURNING id, public_ref::text, consultant_id, customer_name, customer_email,
			to_char(booking_date, 'YYYY-MM-DD'), to_char(booking_time, 'HH24:MI'), status, created_at
	`, bookingID, consultant.ID, status).Scan(&b.ID, &b.PublicRef, &b.ConsultantID, &b.CustomerName, &b.CustomerEmail,
		&b.BookingDate, &b.BookingTime, &b.Status, &b.CreatedAt)
	if err != nil {
		// Reviving a cancelled booking can collide with whoever took the
		// slot in the meantime; the partial unique index catches that.
		if isUniqueViolation(err) {
			return model.Booking{}, ErrSlotTaken
		}
		return model.Booking{}, mapNotFound(err)
	}

	evt, err := outbox.NewEvent("booking", b.PublicRef, outbox.EventStatusChanged, outbox.StatusChangedPayload{
		BookingRef:         b.PublicRef,
		ConsultantPublicID: consultant.PublicID,
		CustomerName:       b.CustomerName,
		CustomerEmail:      b.CustomerEmail,
		BookingDate:        b.BookingDate,
		BookingTime:        b.BookingTime,
		OldStatus:          oldStatus,
		NewStatus:          b.Status,
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Delete removes the booking row outright and returns its date so the
// caller can invalidate the affected slot listing.
func (r *BookingRepository) Delete(ctx context.Context, consultantID, bookingID int64) (string, error) {
	var date string
	err := r.pool.QueryRow(ctx, `
		DELETE FROM bookings
		WHERE id = $1 AND consultant_id = $2
		RETURNING to_char(booking_date, 'YYYY-MM-DD')
	`, bookingID, consultantID).Scan(&date)
	if err != nil {
		return "", mapNotFound(err)
	}
	return date, nil
}
