package handler

import (
    "context"  // request scoped timeouts
    "errors"   // errors.Is on repository sentinels
    "log/slog" // structured logging
    "net/http" // status codes
    "strings"  // input normalisation
    "time"     // timeouts and token expiry

    "github.com/labstack/echo/v4"

    "github.com/traverum/booking-service/internal/lib/logger/sl"
    "github.com/traverum/booking-service/internal/middleware"
    "github.com/traverum/booking-service/internal/model"
    "github.com/traverum/booking-service/internal/repository"
    "github.com/traverum/booking-service/internal/utils"
)

// PartnerLookup finds dashboard accounts by login email.
type PartnerLookup interface {
    GetByEmail(ctx context.Context, email string) (*model.Partner, error)
}

// PartnerHandler serves the supplier dashboard: login, the request queue
// and the confirm/decline decisions.
type PartnerHandler struct {
    Partners     PartnerLookup
    Bookings     Bookings
    JWTSecret    string
    AccessTTLMin int
    Log          *slog.Logger
}

func NewPartnerHandler(p PartnerLookup, b Bookings, jwtSecret string, accessTTLMin int, log *slog.Logger) *PartnerHandler {
    if p == nil || b == nil || log == nil {
        panic("nil dependency passed to NewPartnerHandler")
    }
    return &PartnerHandler{Partners: p, Bookings: b, JWTSecret: jwtSecret, AccessTTLMin: accessTTLMin, Log: log}
}

// ----- DTOs -----

type loginReq struct {
    Email    string `json:"email" validate:"required,email"`
    Password string `json:"password" validate:"required"`
}

type tokenPart struct {
    Token   string    `json:"token"`
    Expires time.Time `json:"expires"`
}

type partnerPart struct {
    ID          string `json:"id"`
    DisplayName string `json:"display_name"`
    Email       string `json:"email"`
}

type loginResp struct {
    Partner partnerPart `json:"partner"`
    Access  tokenPart   `json:"access"`
}

// Login handles POST /v1/partner/auth/login.
func (h *PartnerHandler) Login(c echo.Context) error {
    var req loginReq
    if ok, err := bindValid(c, &req); !ok {
        return err
    }
    email := strings.ToLower(strings.TrimSpace(req.Email))

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    p, err := h.Partners.GetByEmail(ctx, email)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            utils.BurnPasswordCheck(req.Password)
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        h.Log.Error("partner lookup failed", sl.Err(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
    }
    if p.PasswordHash == "" || !utils.VerifyPassword(p.PasswordHash, req.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }

    access, err := utils.NewAccessToken(h.JWTSecret, p.ID, middleware.PartnerRole, h.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
    }
    return c.JSON(http.StatusOK, loginResp{
        Partner: partnerPart{ID: p.ID, DisplayName: p.DisplayName, Email: p.Email},
        Access:  tokenPart{Token: access.Token, Expires: access.Exp},
    })
}

// Requests handles GET /v1/partner/requests: pending requests for the
// partner's experiences, most urgent deadline first.
func (h *PartnerHandler) Requests(c echo.Context) error {
    list, err := h.Bookings.PendingRequests(c.Request().Context(), middleware.PartnerID(c))
    if err != nil {
        return fail(c, h.Log, err)
    }
    if list == nil {
        list = []model.Reservation{}
    }
    return c.JSON(http.StatusOK, echo.Map{"requests": list})
}

// Confirm handles POST /v1/partner/reservations/:id/confirm.  The response
// carries the signed pay, cancel and complete links.
func (h *PartnerHandler) Confirm(c echo.Context) error {
    r, links, err := h.Bookings.Confirm(c.Request().Context(), middleware.PartnerID(c), c.Param("id"))
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": r, "links": links})
}

// Decline handles POST /v1/partner/reservations/:id/decline.
func (h *PartnerHandler) Decline(c echo.Context) error {
    r, err := h.Bookings.Decline(c.Request().Context(), middleware.PartnerID(c), c.Param("id"))
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservation": r})
}
