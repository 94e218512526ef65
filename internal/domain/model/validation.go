package model

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// structValidator reports fields by their JSON names
var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors aggregates field-level validation failures.
// A mutation that fails validation writes nothing.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// NewValidationErrors creates an empty collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make([]FieldError, 0)}
}

// Add records a failure for field
func (v *ValidationErrors) Add(field, format string, args ...interface{}) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the failures of other
func (v *ValidationErrors) Merge(other *ValidationErrors) {
	if other != nil {
		v.Errors = append(v.Errors, other.Errors...)
	}
}

// HasErrors returns true if any failure was recorded
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// OrNil returns v as an error, or nil when nothing was recorded
func (v *ValidationErrors) OrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = e.Field + ": " + e.Message
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// ToMap groups messages by field for JSON responses
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)
	for _, e := range v.Errors {
		result[e.Field] = append(result[e.Field], e.Message)
	}
	return result
}

// Fields returns the sorted list of failing field names
func (v *ValidationErrors) Fields() []string {
	seen := make(map[string]struct{})
	var fields []string
	for _, e := range v.Errors {
		if _, ok := seen[e.Field]; ok {
			continue
		}
		seen[e.Field] = struct{}{}
		fields = append(fields, e.Field)
	}
	sort.Strings(fields)
	return fields
}

// AsValidationErrors unwraps err into a *ValidationErrors if it is one
func AsValidationErrors(err error) (*ValidationErrors, bool) {
	var v *ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// ValidateStruct checks s against its `validate` tags. Failures come back as
// *ValidationErrors with JSON field paths such as "nodes[0].label".
func ValidateStruct(s interface{}) error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	root := reflect.Indirect(reflect.ValueOf(s)).Type().Name() + "."
	errs := NewValidationErrors()
	for _, fe := range fieldErrs {
		errs.Add(strings.TrimPrefix(fe.Namespace(), root), "%s", tagMessage(fe))
	}
	return errs.OrNil()
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must have at most %s items", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// NormalizeText trims surrounding whitespace and applies NFC so that
// visually identical labels compare equal across devices
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
