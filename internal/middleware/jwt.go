package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // HTTP status codes for responses
    "strings"  // prefix checking and trimming

    "github.com/golang-jwt/jwt/v5" // parsing and validating partner access tokens
    "github.com/labstack/echo/v4"  // middleware signature and context
)

// PartnerRole is the role claim carried by partner dashboard tokens.
const PartnerRole = "partner"

// PartnerAuth returns an Echo middleware that validates a Bearer access
// token issued at partner login.  The token must be HS256 signed with
// secret and carry the partner role; its subject is stored in the context
// under "partner_id" where handlers read it through PartnerID.
func PartnerAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Only HMAC is accepted; anything else would let a client pick
            // the verification algorithm.
            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            sub, _ := claims["sub"].(string)
            role, _ := claims["role"].(string)
            if sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            if role != PartnerRole {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }

            c.Set(partnerIDKey, sub)
            return next(c)
        }
    }
}
