package domain

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Let numeric tags (gte, gt, ...) apply to decimal fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks v against its validate struct tags.
func Validate(v interface{}) error {
	return validate.Struct(v)
}

// Validator exposes the shared validator instance.
func Validator() *validator.Validate {
	return validate
}

// ValidateVar checks a single value against a tag list.
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
