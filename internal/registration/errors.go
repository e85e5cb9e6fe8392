package registration

import (
	"fmt"

	"github.com/receivr-io/receivr/internal/models"
)

// Kind classifies why a registration failed. Callers dispatch on it, never on error text.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindConflict
	KindCredentialIssuance
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindCredentialIssuance:
		return "credential_issuance"
	case KindPersistence:
		return "persistence"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by Coordinator.Register for every failed registration.
type Error struct {
	Kind Kind
	// Fields lists every invalid request field of a KindValidation error.
	Fields []models.FieldError
	// Reason is set on KindConflict errors, Remediation when proving a factory reset resolves them.
	Reason      string
	Remediation *models.Remediation
	Err         error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case len(e.Fields) > 0:
		return fmt.Sprintf("%s: %d invalid fields", e.Kind, len(e.Fields))
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(fields []models.FieldError) *Error {
	return &Error{Kind: KindValidation, Fields: fields}
}

func authError(err error) *Error {
	return &Error{Kind: KindAuth, Err: err}
}

func conflictError(reason string, remediation *models.Remediation, err error) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Remediation: remediation, Err: err}
}

func issuanceError(err error) *Error {
	return &Error{Kind: KindCredentialIssuance, Err: err}
}

func persistenceError(err error) *Error {
	return &Error{Kind: KindPersistence, Err: err}
}
