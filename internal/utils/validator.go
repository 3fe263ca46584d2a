package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/gema-evaluation-api/internal/repository"
)

// NewValidator builds the shared validator with the custom "identifier" tag,
// which accepts only values safe to use as a storage path segment.
// Field names in errors follow the json (or query) tag.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return field.Name
	})
	_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return repository.ValidIdentifier(fl.Field().String())
	})
	return validate
}
