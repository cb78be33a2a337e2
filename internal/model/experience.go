package model

// Experience is a bookable tourism activity owned by a supplier partner.
type Experience struct {
    ID              string `json:"id"`
    PartnerID       string `json:"partner_id"`
    Title           string `json:"title"`
    PriceCents      int64  `json:"price_cents"`
    Currency        string `json:"currency"`
    MaxParticipants int    `json:"max_participants"`
}
