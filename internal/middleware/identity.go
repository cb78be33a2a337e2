package middleware

// identity.go holds the context keys shared between the auth middleware and
// the handlers behind it.

import "github.com/labstack/echo/v4"

const partnerIDKey = "partner_id"

// PartnerID returns the authenticated partner or "" when the request did
// not pass through PartnerAuth.
func PartnerID(c echo.Context) string {
    if v, ok := c.Get(partnerIDKey).(string); ok {
        return v
    }
    return ""
}
