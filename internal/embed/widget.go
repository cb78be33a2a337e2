// Package embed builds the data behind the hotel booking widget and serves
// the script that keeps the widget iframe sized to its content.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/traverum/booking-service/internal/model"
	"github.com/traverum/booking-service/internal/repository"
	"github.com/traverum/booking-service/internal/settlement"
)

// ErrUnknownHotel is returned for a slug no hotel partner owns.
var ErrUnknownHotel = errors.New("unknown hotel")

type Catalog interface {
	GetByHotelSlug(ctx context.Context, slug string) (*model.Partner, error)
	ListForHotel(ctx context.Context, hotelID string) ([]model.Experience, error)
}

type Hotel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Item is one experience as the widget lists it.  Price is the unit price
// formatted in major units so the widget does no money arithmetic.
type Item struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	PriceCents      int64  `json:"price_cents"`
	Price           string `json:"price"`
	Currency        string `json:"currency"`
	MaxParticipants int    `json:"max_participants,omitempty"`
}

type Widget struct {
	Hotel       Hotel  `json:"hotel"`
	Experiences []Item `json:"experiences"`
}

type Service struct {
	catalog Catalog
}

func NewService(catalog Catalog) *Service {
	return &Service{catalog: catalog}
}

// Widget returns the hotel behind slug and the experiences it sells, in
// the order the hotel arranged them.
func (s *Service) Widget(ctx context.Context, slug string) (Widget, error) {
	const op = "embed.Service.Widget"

	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return Widget{}, ErrUnknownHotel
	}
	hotel, err := s.catalog.GetByHotelSlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Widget{}, ErrUnknownHotel
		}
		return Widget{}, fmt.Errorf("%s: %w", op, err)
	}
	exps, err := s.catalog.ListForHotel(ctx, hotel.ID)
	if err != nil {
		return Widget{}, fmt.Errorf("%s: %w", op, err)
	}

	w := Widget{
		Hotel:       Hotel{ID: hotel.ID, Name: hotel.DisplayName, Slug: slug},
		Experiences: make([]Item, 0, len(exps)),
	}
	for _, e := range exps {
		w.Experiences = append(w.Experiences, Item{
			ID:              e.ID,
			Title:           e.Title,
			PriceCents:      e.PriceCents,
			Price:           settlement.FormatCents(e.PriceCents),
			Currency:        e.Currency,
			MaxParticipants: e.MaxParticipants,
		})
	}
	return w, nil
}
