package common

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator collects field errors
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required rejects nil, blank strings and empty slices.
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case []string:
		if len(v) == 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must not be empty"}
		}
	}
	return nil
}

// NonEmpty rejects the empty string only; whitespace is a valid value.
func NonEmpty(fieldName string, value interface{}) *ValidationError {
	if s, ok := value.(string); !ok || s == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "must not be empty"}
	}
	return nil
}

// NonNegative rejects negative ints and floats.
func NonNegative(fieldName string, value interface{}) *ValidationError {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must not be negative"}
		}
	case float64:
		if v < 0 {
			return &ValidationError{Field: fieldName, Value: value, Message: "must not be negative"}
		}
	}
	return nil
}

// InRange builds a rule for an inclusive int range.
func InRange(min, max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		n, ok := value.(int)
		if !ok {
			return &ValidationError{Field: fieldName, Value: value, Message: "must be an integer"}
		}
		if n < min || n > max {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be between %d and %d", min, max),
			}
		}
		return nil
	}
}

// OneOf builds a rule accepting only the listed strings.
func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, _ := value.(string)
		if !slices.Contains(allowed, s) {
			return &ValidationError{
				Field:   fieldName,
				Value:   value,
				Message: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")),
			}
		}
		return nil
	}
}

// Pattern checks that every string in a string or []string compiles as a regexp.
func Pattern(fieldName string, value interface{}) *ValidationError {
	var patterns []string
	switch v := value.(type) {
	case string:
		patterns = []string{v}
	case []string:
		patterns = v
	}
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return &ValidationError{Field: fieldName, Value: p, Message: err.Error()}
		}
	}
	return nil
}
