package registration

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/receivr-io/receivr/internal/models"
)

// MaxResetClockSkew is how far in the future a reset timestamp may lie.
const MaxResetClockSkew = 5 * time.Minute

var (
	deviceIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	serialNumberPattern = regexp.MustCompile(`^[A-Z0-9-]+$`)
	macAddressPattern   = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$|^[0-9A-Fa-f]{2}(-[0-9A-Fa-f]{2}){5}$`)
)

// Validator checks registration requests field by field.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(validate, "device_id", matches(deviceIDPattern))
	mustRegister(validate, "serial_number", matches(serialNumberPattern))
	mustRegister(validate, "mac_address", matches(macAddressPattern))
	mustRegister(validate, "no_control", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), unicode.IsControl) < 0
	})
	return &Validator{validate: validate, now: now}
}

func mustRegister(validate *validator.Validate, tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func matches(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	}
}

// Validate returns every invalid field of the request, in request field order.
func (v *Validator) Validate(request models.RegisterDevice) []models.FieldError {
	var fields []models.FieldError
	if err := v.validate.Struct(request); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return []models.FieldError{{Field: "", Reason: err.Error()}}
		}
		for _, fe := range validationErrors {
			fields = append(fields, models.FieldError{Field: fe.Field(), Reason: reason(fe)})
		}
	}

	switch {
	case request.DeviceState == models.DeviceStateFactoryReset:
		if fe := v.validateResetTimestamp(request.ResetTimestamp); fe != nil {
			fields = append(fields, *fe)
		}
	case request.ResetTimestamp != "":
		fields = append(fields, models.FieldError{Field: "reset_timestamp", Reason: "must be empty unless device_state is factory_reset"})
	}
	return fields
}

func (v *Validator) validateResetTimestamp(value string) *models.FieldError {
	field := "reset_timestamp"
	if value == "" {
		return &models.FieldError{Field: field, Reason: "is required when device_state is factory_reset"}
	}
	resetAt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return &models.FieldError{Field: field, Reason: "must be an RFC 3339 timestamp"}
	}
	if resetAt.After(v.now().Add(MaxResetClockSkew)) {
		return &models.FieldError{Field: field, Reason: "must not be in the future"}
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "uuid":
		return "must be a UUID"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "device_id":
		return "may only contain letters, digits, '_' and '-'"
	case "serial_number":
		return "may only contain upper case letters, digits and '-'"
	case "mac_address":
		return "must be six hex octets separated by ':' or '-'"
	case "no_control":
		return "must not contain control characters"
	default:
		return "is invalid"
	}
}
