// Package validation decodes and checks request bodies.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"csx-backend/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names, not Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError is one failed rule, reported in error details.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// InvalidBody is an InvalidArgument error listing every failed field.
type InvalidBody struct {
	Fields []FieldError
}

func (e *InvalidBody) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" failed "+f.Rule)
	}
	return "invalid request body: " + strings.Join(parts, ", ")
}

func (e *InvalidBody) Unwrap() error { return domain.ErrInvalidArgument }

// Struct runs the `validate` tags of v.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	out := &InvalidBody{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// BindJSON decodes the request body into out and validates it.
func BindJSON(c *fiber.Ctx, out interface{}) error {
	body := c.Body()
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrInvalidArgument)
	}
	return Struct(out)
}

// ParamUUID reads a path parameter that must be a UUID.
func ParamUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a valid id", domain.ErrInvalidArgument, name)
	}
	return id, nil
}
