package model

import "time"

// Partner is a supplier or hotel that signed up to the platform.
//
// StripeAccountID stays nil until payment onboarding completes; a supplier
// without it cannot receive transfers.  HotelSlug is set for partners that
// embed the booking widget on their site.
type Partner struct {
    ID              string    // partners.id
    DisplayName     string    // partners.display_name
    Email           string    // partners.email
    PasswordHash    string    // partners.password_hash
    StripeAccountID *string   // partners.stripe_account_id (nullable)
    HotelSlug       *string   // partners.hotel_slug (nullable)
    CreatedAt       time.Time // partners.created_at
}

// HasConnectedAccount reports whether transfers can be sent to the partner.
func (p Partner) HasConnectedAccount() bool {
    return p.StripeAccountID != nil && *p.StripeAccountID != ""
}
