package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("stripe_api_key", func(fl validator.FieldLevel) bool {
		return IsValidAPIKey(fl.Field().String())
	})
	return v
}

// Validator exposes the shared instance so adapters validate request bodies
// with the same custom tags.
func Validator() *validator.Validate {
	return validate
}

// Validate runs the write-time checks on a record before it is stored.
func (k APIKey) Validate() error {
	err := validate.Struct(k)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.StructField() == "Secret" {
			return ErrInvalidAPIKey
		}
		fields = append(fields, fmt.Sprintf("%s(%s)", strings.ToLower(fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidAPIKeyField, strings.Join(fields, ", "))
}
