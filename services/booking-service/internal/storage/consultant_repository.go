package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/an-orlov/consultbooking/libs/db"
	"github.com/an-orlov/consultbooking/services/booking-service/internal/model"
)

type ConsultantRepository struct {
	pool *db.Pool
}

func NewConsultantRepository(pool *db.Pool) *ConsultantRepository {
	return &ConsultantRepository{pool: pool}
}

// Create registers a consultant with a fresh opaque public identifier.
func (r *ConsultantRepository) Create(ctx context.Context, displayName, email string) (model.Consultant, error) {
	var c model.Consultant
	err := r.pool.QueryRow(ctx, `
		INSERT INTO consultants (public_id, display_name, email)
		VALUES ($1, $2, $3)
		RETURNING id, public_id::text, display_name, email, active, created_at
	`, uuid.NewString(), displayName, email).Scan(&c.ID, &c.PublicID, &c.DisplayName, &c.Email, &c.Active, &c.CreatedAt)
	if err != nil {
		return model.Consultant{}, err
	}
	return c, nil
}

// GetActiveByPublicID resolves the public identifier to the internal row.
// Unknown and deactivated consultants both come back as ErrNotFound, so the
// public API cannot be used to probe which identifiers exist.
func (r *ConsultantRepository) GetActiveByPublicID(ctx context.Context, publicID string) (model.Consultant, error) {
	if uuid.Validate(publicID) != nil {
		// public_id is a uuid column; malformed input is a miss, not a bind error.
		return model.Consultant{}, ErrNotFound
	}
	var c model.Consultant
	err := r.pool.QueryRow(ctx, `
		SELECT id, public_id::text, display_name, email, active, created_at
		FROM consultants
		WHERE public_id = $1 AND active
	`, publicID).Scan(&c.ID, &c.PublicID, &c.DisplayName, &c.Email, &c.Active, &c.CreatedAt)
	if err != nil {
		return model.Consultant{}, mapNotFound(err)
	}
	return c, nil
}

// GetByPublicID is the admin-side lookup: inactive consultants resolve too.
func (r *ConsultantRepository) GetByPublicID(ctx context.Context, publicID string) (model.Consultant, error) {
	if uuid.Validate(publicID) != nil {
		return model.Consultant{}, ErrNotFound
	}
	var c model.Consultant
	err := r.pool.QueryRow(ctx, `
		SELECT id, public_id::text, display_name, email, active, created_at
		FROM consultants
		WHERE public_id = $1
	`, publicID).Scan(&c.ID, &c.PublicID, &c.DisplayName, &c.Email, &c.Active, &c.CreatedAt)
	if err != nil {
		return model.Consultant{}, mapNotFound(err)
	}
	return c, nil
}

func (r *ConsultantRepository) List(ctx context.Context) ([]model.Consultant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, public_id::text, display_name, email, active, created_at
		FROM consultants
		ORDER BY display_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Consultant
	for rows.Next() {
		var c model.Consultant
		if err := rows.Scan(&c.ID, &c.PublicID, &c.DisplayName, &c.Email, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ConsultantRepository) SetActiveByPublicID(ctx context.Context, publicID string, active bool) (model.Consultant, error) {
	if uuid.Validate(publicID) != nil {
		return model.Consultant{}, ErrNotFound
	}
	var c model.Consultant
	err := r.pool.QueryRow(ctx, `
		UPDATE consultants
		SET active = $2
		WHERE public_id = $1
		RETURNING id, public_id::text, display_name, email, active, created_at
	`, publicID, active).Scan(&c.ID, &c.PublicID, &c.DisplayName, &c.Email, &c.Active, &c.CreatedAt)
	if err != nil {
		return model.Consultant{}, mapNotFound(err)
	}
	return c, nil
}
