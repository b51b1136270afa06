package services

import (
	"fmt"
	"net/http"
)

// ServiceError is the uniform error shape every public operation returns.
// Status is the HTTP status the presentation layer maps it to; Code is a
// stable machine-readable identifier.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func errNoActor(cause error) *ServiceError {
	return newServiceError(http.StatusUnauthorized, "PROC_NO_ACTOR", "no resolved actor", cause)
}

func errNotFound(what string) *ServiceError {
	return newServiceError(http.StatusNotFound, "PROC_NOT_FOUND", what+" not found", nil)
}

func errInvalidBody(message string) *ServiceError {
	return newServiceError(http.StatusBadRequest, "PROC_INVALID_BODY", message, nil)
}

func errInvalidState(code, message string) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, code, message, nil)
}
