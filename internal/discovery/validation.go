package discovery

import (
	"fmt"
	"strings"
)

// FieldError describes one invalid field of an entity under validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects per-field validation failures so that a caller
// sees every invalid field at once instead of failing on the first one.
type ValidationErrors struct {
	Fields []FieldError `json:"fields"`
}

// Add records an invalid field.
func (v *ValidationErrors) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// Empty reports whether any fields were recorded.
func (v *ValidationErrors) Empty() bool {
	return len(v.Fields) == 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if v.Empty() {
		return "validation passed"
	}
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// ErrOrNil returns the collected errors, or nil if validation passed.
func (v *ValidationErrors) ErrOrNil() error {
	if v.Empty() {
		return nil
	}
	return v
}

// isAlphanumeric reports whether s consists only of ASCII letters and
// digits.
func isAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return len(s) > 0
}
