package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/traverum/booking-service/internal/model"
)

// PartnerRepo reads suppliers and hotels from the partners table.
type PartnerRepo struct{ DB *sql.DB }

func NewPartnerRepo(db *sql.DB) *PartnerRepo { return &PartnerRepo{DB: db} }

const partnerColumns = "id, display_name, email, password_hash, stripe_account_id, hotel_slug, created_at"

func (r *PartnerRepo) GetPartner(ctx context.Context, id string) (*model.Partner, error) {
	const op = "repository.PartnerRepo.GetPartner"

	p, err := scanPartner(r.DB.QueryRowContext(ctx,
		"SELECT "+partnerColumns+" FROM partners WHERE id = ? LIMIT 1", id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return p, nil
}

// GetByEmail looks a partner up by normalized email for dashboard login.
func (r *PartnerRepo) GetByEmail(ctx context.Context, email string) (*model.Partner, error) {
	const op = "repository.PartnerRepo.GetByEmail"

	email = strings.ToLower(strings.TrimSpace(email))
	p, err := scanPartner(r.DB.QueryRowContext(ctx,
		"SELECT "+partnerColumns+" FROM partners WHERE email = ? LIMIT 1", email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return p, nil
}

// GetByHotelSlug resolves the hotel behind an embedded widget.
func (r *PartnerRepo) GetByHotelSlug(ctx context.Context, slug string) (*model.Partner, error) {
	const op = "repository.PartnerRepo.GetByHotelSlug"

	p, err := scanPartner(r.DB.QueryRowContext(ctx,
		"SELECT "+partnerColumns+" FROM partners WHERE hotel_slug = ? LIMIT 1", slug))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return p, nil
}

func scanPartner(s rowScanner) (*model.Partner, error) {
	var p model.Partner
	var account, slug sql.NullString
	if err := s.Scan(&p.ID, &p.DisplayName, &p.Email, &p.PasswordHash, &account, &slug, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.StripeAccountID = stringPtr(account)
	p.HotelSlug = stringPtr(slug)
	return &p, nil
}
