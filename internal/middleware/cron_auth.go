package middleware

import (
    "crypto/subtle"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"
)

// CronAuth guards operator endpoints with the shared CRON_SECRET bearer
// token.  An empty secret rejects every request.
func CronAuth(secret string) echo.MiddlewareFunc {
    want := []byte(secret)
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            got, ok := strings.CutPrefix(auth, "Bearer ")
            if !ok || len(want) == 0 || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            return next(c)
        }
    }
}
