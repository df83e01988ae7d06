package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate

	instrumentPattern = regexp.MustCompile(`^[\p{L}][\p{L}\p{N} &'/.-]{0,63}$`)
)

// ValidationError describes one failed rule. Field is the JSON path of the
// value, e.g. "roles[1].instrument".
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, err := range v {
		parts[i] = err.Message
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failing field to its message, for error details.
func (v ValidationErrors) Fields() map[string]any {
	out := make(map[string]any, len(v))
	for _, err := range v {
		if _, seen := out[err.Field]; !seen {
			out[err.Field] = err.Message
		}
	}
	return out
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		failure := ValidationError{
			Field: fieldPath(fe.Namespace()),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		}
		failure.Message = describe(failure)
		failures = append(failures, failure)
	}
	return failures
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

// IsInstrument reports whether value looks like an instrument label ("drums", "double bass").
func IsInstrument(value string) bool {
	return instrumentPattern.MatchString(strings.TrimSpace(value))
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(f ValidationError) string {
	field := strings.ReplaceAll(f.Field, "_", " ")
	switch f.Tag {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, f.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, f.Param)
	case "gte":
		return fmt.Sprintf("%s must be %s or more", field, f.Param)
	case "lte":
		return fmt.Sprintf("%s must be %s or less", field, f.Param)
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, f.Param)
	case "latitude", "longitude":
		return fmt.Sprintf("%s must be a valid %s", field, f.Tag)
	case "instrument":
		return field + " must be an instrument name"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, f.Param)
	}
	if f.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, f.Tag, f.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, f.Tag)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("instrument", func(fl validator.FieldLevel) bool {
			return IsInstrument(fl.Field().String())
		})
	})
	return validate
}
