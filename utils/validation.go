package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const MaxSlugLength = 120

var (
	ErrInvalidSlug = errors.New("slug must be lowercase letters, digits and single hyphens")

	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify lowercases s and collapses every run of non-alphanumerics into a
// single hyphen. Letters outside ASCII are dropped.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

func ValidateSlug(slug string) error {
	if len(slug) == 0 || len(slug) > MaxSlugLength || !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// SanitizeValidationError takes a validator error and returns a user-friendly message
// without leaking internal Go struct names.
func SanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Invalid request body"
	}

	var messages []string
	for _, fe := range validationErrors {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email address", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "gt", "gte":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "uuid":
			messages = append(messages, fmt.Sprintf("%s must be a valid id", field))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}

	if len(messages) == 0 {
		return "Invalid request body"
	}

	return strings.Join(messages, "; ")
}
