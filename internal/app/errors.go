package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"eboard/api/internal/auth"
	"eboard/api/internal/authpw"
	"eboard/api/internal/drafts"
	"eboard/api/internal/store"
	"eboard/api/internal/workflow"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errNotFound(what string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func errForbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}

func errMinutesFrozen() *DomainError {
	return domainError(http.StatusConflict, "MINUTES_FROZEN", "The meeting is archived; its minutes are read-only", nil)
}

func errVersionConflict(current int) *DomainError {
	return domainError(http.StatusConflict, "VERSION_CONFLICT", "Minutes changed since they were loaded; refetch and retry", map[string]any{"currentRevision": current})
}

func errNotEditable(status string) *DomainError {
	return domainError(http.StatusConflict, "INVALID_TRANSITION", fmt.Sprintf("Minutes cannot be edited in status %s", status), nil)
}

// mapError turns any service error into the HTTP status, stable code,
// message and details written to the client.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var incomplete *workflow.SignaturesIncompleteError
	if errors.As(err, &incomplete) {
		return http.StatusConflict, "SIGNATURES_INCOMPLETE", "Required signatures are incomplete", map[string]any{"missing": incomplete.Missing}
	}
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Forbidden", nil
	case errors.Is(err, workflow.ErrEmptyContent):
		return http.StatusUnprocessableEntity, "EMPTY_CONTENT", "Minutes content is empty", nil
	case errors.Is(err, workflow.ErrMissingRevisionReason):
		return http.StatusUnprocessableEntity, "MISSING_REVISION_REASON", "A revision reason is required", nil
	case errors.Is(err, workflow.ErrContentUnchanged):
		return http.StatusConflict, "CONTENT_UNCHANGED", "Content has not been modified since revision was requested", nil
	case errors.Is(err, workflow.ErrCommentsDisabled):
		return http.StatusConflict, "COMMENTS_DISABLED", "Comments are disabled for these minutes", nil
	case errors.Is(err, workflow.ErrAlreadyResolved):
		return http.StatusConflict, "ALREADY_RESOLVED", "Comment is already resolved", nil
	case errors.Is(err, workflow.ErrAlreadySigned):
		return http.StatusConflict, "ALREADY_SIGNED", "You have already signed these minutes", nil
	case errors.Is(err, workflow.ErrInvalidComment), errors.Is(err, workflow.ErrInvalidSignature):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, store.ErrRevisionConflict):
		return http.StatusConflict, "VERSION_CONFLICT", "Minutes changed since they were loaded; refetch and retry", nil
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, drafts.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil
	case errors.Is(err, authpw.ErrInvalidPIN), errors.Is(err, authpw.ErrWeakPassword):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
