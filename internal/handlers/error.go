package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/receivr-io/receivr/internal/models"
	"github.com/receivr-io/receivr/internal/registration"
)

type ApiResponseError struct {
	Status int
	Body   any
}

func (e ApiResponseError) Error() string {
	data, err := json.Marshal(e.Body)
	if err != nil {
		return "ApiResponseError"
	}
	return string(data)
}

func NewApiResponseError(status int, body any) *ApiResponseError {
	return &ApiResponseError{
		Status: status,
		Body:   body,
	}
}

// registrationResponseError maps the client facing registration errors to a response.
// Issuance and persistence failures return nil; they are internal server errors.
func registrationResponseError(err error) *ApiResponseError {
	var regErr *registration.Error
	if !errors.As(err, &regErr) {
		return nil
	}
	switch regErr.Kind {
	case registration.KindValidation:
		return NewApiResponseError(http.StatusBadRequest, models.NewFieldValidationErrors(regErr.Fields))
	case registration.KindAuth:
		return NewApiResponseError(http.StatusUnauthorized, models.NewUnauthorizedError())
	case registration.KindConflict:
		body := models.RegistrationConflictError{
			BaseError: models.BaseError{Error: "device cannot be registered without proof of a factory reset"},
			Reason:    regErr.Reason,
		}
		switch regErr.Reason {
		case registration.ReasonConcurrentRegistration:
			body.Error = "device was registered concurrently"
		case registration.ReasonDeviceIDInUse:
			body.Error = "device_id is already registered to another device"
		}
		body.Remediation = regErr.Remediation
		return NewApiResponseError(http.StatusConflict, body)
	default:
		return nil
	}
}
