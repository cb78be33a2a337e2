package handler // handler defines the HTTP handlers of the booking service

import (
    "net/http" // status codes

    "github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers and monitoring.
// It only reports that the process serves requests.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}
