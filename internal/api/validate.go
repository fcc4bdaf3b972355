package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/yourusername/research-lab/internal/models"
)

// requestValidator plugs validator/v10 into echo's Context.Validate.
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("experimenttype", func(fl validator.FieldLevel) bool {
		return models.ExperimentType(fl.Field().String()).Valid()
	})
	return &requestValidator{validate: v}
}

// Validate implements echo.Validator
func (rv *requestValidator) Validate(i interface{}) error {
	return rv.validate.Struct(i)
}

// bindAndValidate decodes the body into req and validates it. The returned
// errors are ready for a 400 response.
func bindAndValidate(c echo.Context, req interface{}) []Error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return []Error{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
		}
		return []Error{{Code: "ERR_BIND", Message: err.Error()}}
	}

	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []Error{{Code: "ERR_VALIDATION", Message: err.Error()}}
		}
		out := make([]Error, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, Error{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return out
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "experimenttype":
		return fmt.Sprintf("%s must be a known experiment type", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
