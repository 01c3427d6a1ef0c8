package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a validator with the notblank rule registered, shared by the
// HTTP layer's request structs (e.g. the optional saleId on POST /purchase).
func New() *validator.Validate {
	v := validator.New()

	// notblank rejects whitespace-only strings; plain "required" alone would
	// accept "   " as present.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	return v
}
