package models

// BaseError is the base type for API errors
type BaseError struct {
	Error string `json:"error" example:"something bad"`
}

// InternalServerError is returned in the body of an HTTP 500
type InternalServerError struct {
	BaseError
	TraceId string `json:"trace_id,omitempty" example:"aa2a7ec5a1ff4a0f9c1dd3a6e1d0f3b2"`
}

// FieldError describes one invalid request field
type FieldError struct {
	Field  string `json:"field" example:"serial_number"`
	Reason string `json:"reason" example:"must match ^[A-Z0-9-]+$"`
}

// ValidationError is returned in the body of an HTTP 400
type ValidationError struct {
	BaseError
	Fields []FieldError `json:"fields,omitempty"`
}

func NewBadPayloadError() ValidationError {
	return ValidationError{
		BaseError: BaseError{
			Error: "request json is invalid",
		},
	}
}

func NewFieldValidationErrors(fields []FieldError) ValidationError {
	return ValidationError{
		BaseError: BaseError{
			Error: "request validation failed",
		},
		Fields: fields,
	}
}

// UnauthorizedError is returned in the body of an HTTP 401
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError() UnauthorizedError {
	return UnauthorizedError{
		BaseError: BaseError{
			Error: "caller identity could not be resolved",
		},
	}
}

// Remediation tells the owner how to prove physical possession of a device.
type Remediation struct {
	Steps            []string `json:"steps"`
	SupportReference string   `json:"support_reference"`
}

// RegistrationConflictError is returned in the body of an HTTP 409
type RegistrationConflictError struct {
	BaseError
	Reason      string      `json:"reason" example:"factory_reset_required"`
	Remediation *Remediation `json:"remediation,omitempty"`
}
