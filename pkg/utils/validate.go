package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks s against its validate tags.
func Validate(s any) error {
	return validate.Struct(s)
}

// FailedTags returns the failed tag per struct field, in field order.
func FailedTags(err error) []FieldFailure {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]FieldFailure, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldFailure{Field: fe.Field(), Tag: fe.Tag()})
	}
	return out
}

type FieldFailure struct {
	Field string
	Tag   string
}

// HasTag reports whether any field failed on tag.
func HasTag(err error, tag string) bool {
	for _, f := range FailedTags(err) {
		if f.Tag == tag {
			return true
		}
	}
	return false
}
