package services

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"skillport/internal/common"
	"skillport/internal/models"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground validator with the service's custom rules and
// turns failures into common.ErrValidation.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("verdict", validateVerdict)

	return &Validator{validate: v}
}

// Struct validates a request struct.
func (v *Validator) Struct(s interface{}) error {
	return v.wrap(v.validate.Struct(s))
}

// Var validates a single value against tag, reporting it under name.
func (v *Validator) Var(name string, value interface{}, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s", common.ErrValidation, formatFieldError(name, fieldErrs[0]))
	}
	return fmt.Errorf("%w: %s: %v", common.ErrValidation, name, err)
}

func (v *Validator) wrap(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe.Field(), fe))
	}
	return fmt.Errorf("%w: %s", common.ErrValidation, strings.Join(msgs, "; "))
}

func formatFieldError(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "verdict":
		return fmt.Sprintf("%s is not a known verdict", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func validateVerdict(fl validator.FieldLevel) bool {
	return models.Verdict(fl.Field().String()).Valid()
}

// parseIntParam parses an optional integer query parameter.
func parseIntParam(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrValidation, name)
	}
	return n, nil
}
