package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound covers any lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrSlotTaken is the unique-constraint violation on
	// (consultant_id, booking_date, booking_time). The constraint is the
	// only arbiter of slot conflicts; there is no pre-read.
	ErrSlotTaken = errors.New("slot already taken")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
