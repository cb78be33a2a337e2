package handler

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Context.Validate.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so clients can match errors to their payload
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// bindValid binds the body into dst and runs struct validation.  On
// failure it writes the response and returns ok=false.
func bindValid(c echo.Context, dst interface{}) (ok bool, err error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(dst); err != nil {
		if verrs, isV := err.(validator.ValidationErrors); isV && len(verrs) > 0 {
			fe := verrs[0]
			return false, c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"error":  "validation failed",
				"field":  fe.Field(),
				"reason": fe.Tag(),
			})
		}
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	return true, nil
}
