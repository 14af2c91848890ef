package storage

import (
	"context"

	"github.com/an-orlov/consultbooking/libs/db"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/outbox"
)

type AvailabilityRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAvailabilityRepository(pool *db.Pool, ob *outbox.Repository) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool, outbox: ob}
}

// WindowForDay returns the consultant's window for one weekday, ErrNotFound
// when the day has none. Times come back as "HH:MM:SS" text so no pgtype
// time handling is needed.
func (r *AvailabilityRepository) WindowForDay(ctx context.Context, consultantID int64, weekday int) (model.AvailabilityWindow, error) {
	var w model.AvailabilityWindow
	err := r.pool.QueryRow(ctx, `
		SELECT consultant_id, weekday, to_char(start_time, 'HH24:MI:SS'), to_char(end_time, 'HH24:MI:SS')
		FROM availability_windows
		WHERE consultant_id = $1 AND weekday = $2
	`, consultantID, weekday).Scan(&w.ConsultantID, &w.Weekday, &w.StartTime, &w.EndTime)
	if err != nil {
		return model.AvailabilityWindow{}, mapNotFound(err)
	}
	return w, nil
}

func (r *AvailabilityRepository) ListWindows(ctx context.Context, consultantID int64) ([]model.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT consultant_id, weekday, to_char(start_time, 'HH24:MI:SS'), to_char(end_time, 'HH24:MI:SS')
		FROM availability_windows
		WHERE consultant_id = $1
		ORDER BY weekday
	`, consultantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AvailabilityWindow
	for rows.Next() {
		var w model.AvailabilityWindow
		if err := rows.Scan(&w.ConsultantID, &w.Weekday, &w.StartTime, &w.EndTime); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Replace swaps the consultant's full weekly schedule in one transaction:
// delete everything, reinsert the new windows, record the outbox event.
// Partial schedules never become visible.
func (r *AvailabilityRepository) Replace(ctx context.Context, consultant model.Consultant, windows []model.AvailabilityWindow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM availability_windows WHERE consultant_id = $1
	`, consultant.ID); err != nil {
		return err
	}

	for _, w := range windows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_windows (consultant_id, weekday, start_time, end_time)
			VALUES ($1, $2, $3::time, $4::time)
		`, consultant.ID, w.Weekday, w.StartTime, w.EndTime); err != nil {
			return err
		}
	}

	evt, err := outbox.NewEvent("consultant", consultant.PublicID, outbox.EventAvailabilityUpdated, outbox.AvailabilityUpdatedPayload{
		ConsultantPublicID: consultant.PublicID,
		WindowCount:        len(windows),
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
