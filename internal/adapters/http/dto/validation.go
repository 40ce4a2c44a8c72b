package dto

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation marks a decoded body that broke a field rule.
	ErrValidation = errors.New("validation failed")

	// ErrBinding marks a body that is not a JSON object of the expected shape.
	ErrBinding = errors.New("binding failed")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	// notempty rejects strings that are blank after trimming.
	_ = v.RegisterValidation("notempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
}

// FieldErrors maps JSON field names to what is wrong with them. It is the
// details object of a VALIDATION_ERROR response.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + " " + fe[field]
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() error { return ErrValidation }

// Validate checks the validate tags of v. Rule violations come back as
// FieldErrors.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var rules validator.ValidationErrors
	if !errors.As(err, &rules) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	out := make(FieldErrors, len(rules))
	for _, r := range rules {
		out[r.Field()] = ruleMessage(r)
	}

	return out
}

// BindAndValidate decodes the JSON body into v and validates it. Fields v
// does not declare are ignored.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, err)
	}

	return Validate(v)
}

// ValidationErrors returns the field messages carried by err, or an empty
// map when err has none.
func ValidationErrors(err error) map[string]string {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe
	}

	return map[string]string{}
}

// IsValidationError reports whether err carries field messages.
func IsValidationError(err error) bool {
	var fe FieldErrors
	return errors.As(err, &fe)
}

func ruleMessage(r validator.FieldError) string {
	unit := ""
	if r.Kind() == reflect.String {
		unit = " characters"
	}

	switch r.Tag() {
	case "required":
		return "this field is required"
	case "notempty":
		return "must not be empty"
	case "min":
		return "must be at least " + r.Param() + unit
	case "max":
		return "must be at most " + r.Param() + unit
	case "oneof":
		return "must be one of: " + r.Param()
	default:
		return "failed validation: " + r.Tag()
	}
}
