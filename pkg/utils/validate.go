package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

func FormatValidationError(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		fields["request"] = "invalid request"
		return fields
	}

	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field())

		switch fieldErr.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "email":
			fields[field] = fmt.Sprintf("%s must be a valid email", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must be at least %s", field, fieldErr.Param())
		case "gt":
			fields[field] = fmt.Sprintf("%s must be greater than %s", field, fieldErr.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fieldErr.Param())
		case "uuid":
			fields[field] = fmt.Sprintf("%s must be a valid uuid", field)
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return fields
}
