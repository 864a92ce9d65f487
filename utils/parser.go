package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/storerunner/storefront/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validator exposes the shared validator instance.
func Validator() *validator.Validate {
	return validate
}

// Validate runs struct-tag validation and wraps failures as validation errors.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return types.NewError(types.KindValidation, fmt.Sprintf("validation failed: %s", describe(err)), err)
	}
	return nil
}

// ParseJSON decodes data into v and validates it.
func ParseJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return types.NewError(types.KindValidation, "malformed JSON body", err)
	}
	return Validate(v)
}

// describe flattens validator errors into "field:tag" pairs.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s:%s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
