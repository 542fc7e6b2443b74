package connector

import (
	"errors"
	"fmt"

	ldapclient "github.com/isometry/terraform-provider-ldapmodel/internal/ldap"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrUnknownField  = errors.New("unknown field")
	ErrValidation    = errors.New("validation error")
	ErrDirectory     = errors.New("directory error")
)

// ConfigurationError reports a missing or invalid model mapping or setting.
// It is raised before any directory request is issued.
type ConfigurationError struct {
	Model   string
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Model != "" {
		msg = fmt.Sprintf("model %q: %s", e.Model, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// UnknownFieldError reports a filter or payload key with no mapping entry.
type UnknownFieldError struct {
	Model string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("model %q has no mapping for field %q", e.Model, e.Field)
}

func (e *UnknownFieldError) Is(target error) bool { return target == ErrUnknownField }

// ValidationError reports a missing or malformed value in caller input.
type ValidationError struct {
	Model   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("model %q field %q: %s", e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("model %q: %s", e.Model, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DirectoryError reports a failure returned by the directory session once a
// request was in flight. The cause is always an *ldap.LDAPError.
type DirectoryError struct {
	Operation string
	Model     string
	DN        string
	Cause     error
}

func newDirectoryError(operation, model, dn string, err error) *DirectoryError {
	return &DirectoryError{
		Operation: operation,
		Model:     model,
		DN:        dn,
		Cause:     ldapclient.WrapError(operation, err),
	}
}

// notFound builds the directory error raised when a follow-up or lookup
// search completes without the expected entry.
func notFound(operation, model, dn, message string) *DirectoryError {
	return &DirectoryError{
		Operation: operation,
		Model:     model,
		DN:        dn,
		Cause: &ldapclient.LDAPError{
			Operation: "search",
			Category:  ldapclient.ErrorCategoryNotFound,
			Message:   message,
			DN:        dn,
		},
	}
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s on model %q failed: %v", e.Operation, e.Model, e.Cause)
}

func (e *DirectoryError) Is(target error) bool { return target == ErrDirectory }

func (e *DirectoryError) Unwrap() error { return e.Cause }

// Category returns the directory error category of the cause.
func (e *DirectoryError) Category() ldapclient.ErrorCategory {
	return ldapclient.GetErrorCategory(e.Cause)
}
