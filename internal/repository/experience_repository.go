package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/traverum/booking-service/internal/model"
)

type ExperienceRepo struct{ DB *sql.DB }

func NewExperienceRepo(db *sql.DB) *ExperienceRepo { return &ExperienceRepo{DB: db} }

const experienceColumns = "id, partner_id, title, price_cents, currency, max_participants"

func (r *ExperienceRepo) GetExperience(ctx context.Context, id string) (*model.Experience, error) {
	const op = "repository.ExperienceRepo.GetExperience"

	var e model.Experience
	err := r.DB.QueryRowContext(ctx, "SELECT "+experienceColumns+" FROM experiences WHERE id = ? LIMIT 1", id).
		Scan(&e.ID, &e.PartnerID, &e.Title, &e.PriceCents, &e.Currency, &e.MaxParticipants)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return &e, nil
}

// ListForHotel returns the experiences a hotel distributes on its widget,
// in the hotel's display order.
func (r *ExperienceRepo) ListForHotel(ctx context.Context, hotelID string) ([]model.Experience, error) {
	const op = "repository.ExperienceRepo.ListForHotel"

	rows, err := r.DB.QueryContext(ctx, `SELECT e.id, e.partner_id, e.title, e.price_cents, e.currency, e.max_participants
		FROM hotel_experiences he
		JOIN experiences e ON e.id = he.experience_id
		WHERE he.hotel_id = ?
		ORDER BY he.position ASC, e.title ASC`, hotelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []model.Experience{}
	for rows.Next() {
		var e model.Experience
		if err := rows.Scan(&e.ID, &e.PartnerID, &e.Title, &e.PriceCents, &e.Currency, &e.MaxParticipants); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Catalog joins experience and partner lookups for the booking service.
type Catalog struct {
	*ExperienceRepo
	*PartnerRepo
}

func NewCatalog(db *sql.DB) Catalog {
	return Catalog{ExperienceRepo: NewExperienceRepo(db), PartnerRepo: NewPartnerRepo(db)}
}
