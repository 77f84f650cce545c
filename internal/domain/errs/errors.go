package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a domain error. The set is closed; handlers map every
// error to one of these before it reaches a client.
type Code string

const (
	CodeTokenRequired  Code = "TOKEN_REQUIRED"
	CodeInvalidToken   Code = "INVALID_TOKEN"
	CodeTokenExpired   Code = "TOKEN_EXPIRED"
	CodeInvalidPayload Code = "INVALID_PAYLOAD"

	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidInput        Code = "INVALID_INPUT"
	CodeInvalidConversation Code = "INVALID_CONVERSATION"
	CodeInvalidID           Code = "INVALID_UUID"

	CodeContentEmpty   Code = "CONTENT_EMPTY"
	CodeContentTooLong Code = "CONTENT_TOO_LONG"

	CodeNotParticipant    Code = "NOT_PARTICIPANT"
	CodeNotOwner          Code = "NOT_OWNER"
	CodeEditWindowExpired Code = "EDIT_WINDOW_EXPIRED"
	CodeBlocked           Code = "BLOCKED"

	CodeMessageNotFound      Code = "MESSAGE_NOT_FOUND"
	CodeConversationNotFound Code = "CONVERSATION_NOT_FOUND"
	CodeUserNotFound         Code = "USER_NOT_FOUND"

	CodeLastAdmin        Code = "LAST_ADMIN"
	CodeLastParticipant  Code = "LAST_PARTICIPANT"
	CodeSelfConversation Code = "SELF_CONVERSATION"
	CodeSelfContact      Code = "SELF_CONTACT"

	CodeRateLimited Code = "RATE_LIMITED"
	CodeTimeout     Code = "TIMEOUT"

	CodeDatabase Code = "DATABASE_ERROR"
	CodeCache    Code = "CACHE_ERROR"
	CodeInternal Code = "INTERNAL_SERVER_ERROR"
)

// Error is a domain error carrying its wire code and HTTP status.
// RetryAfter is set (in milliseconds) only for RATE_LIMITED.
type Error struct {
	Code       Code
	Message    string
	Status     int
	RetryAfter int64
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two domain errors by code, so errors.Is works against the
// sentinel constructors.
func (e *Error) Is(target error) bool {
	var de *Error
	if !errors.As(target, &de) {
		return false
	}
	return e.Code == de.Code
}

func newErr(code Code, status int, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

func TokenRequired() *Error {
	return newErr(CodeTokenRequired, http.StatusUnauthorized, "authentication token required")
}

func InvalidToken() *Error {
	return newErr(CodeInvalidToken, http.StatusUnauthorized, "invalid authentication token")
}

func TokenExpired() *Error {
	return newErr(CodeTokenExpired, http.StatusUnauthorized, "authentication token expired")
}

func InvalidPayload(msg string) *Error {
	return newErr(CodeInvalidPayload, http.StatusBadRequest, msg)
}

func Validation(msg string) *Error {
	return newErr(CodeValidation, http.StatusBadRequest, msg)
}

func InvalidInput(msg string) *Error {
	return newErr(CodeInvalidInput, http.StatusBadRequest, msg)
}

func InvalidConversation(msg string) *Error {
	return newErr(CodeInvalidConversation, http.StatusBadRequest, msg)
}

func InvalidID(id string) *Error {
	return newErr(CodeInvalidID, http.StatusBadRequest, fmt.Sprintf("malformed identifier %q", id))
}

func ContentEmpty() *Error {
	return newErr(CodeContentEmpty, http.StatusBadRequest, "message content is empty")
}

func ContentTooLong(max int) *Error {
	return newErr(CodeContentTooLong, http.StatusBadRequest, fmt.Sprintf("message content exceeds %d characters", max))
}

func NotParticipant() *Error {
	return newErr(CodeNotParticipant, http.StatusForbidden, "not a participant of this conversation")
}

func NotOwner() *Error {
	return newErr(CodeNotOwner, http.StatusForbidden, "only the sender may modify this message")
}

func EditWindowExpired() *Error {
	return newErr(CodeEditWindowExpired, http.StatusForbidden, "edit window has expired")
}

func Blocked() *Error {
	return newErr(CodeBlocked, http.StatusForbidden, "messaging is blocked between these users")
}

func MessageNotFound() *Error {
	return newErr(CodeMessageNotFound, http.StatusNotFound, "message not found")
}

func ConversationNotFound() *Error {
	return newErr(CodeConversationNotFound, http.StatusNotFound, "conversation not found")
}

func UserNotFound() *Error {
	return newErr(CodeUserNotFound, http.StatusNotFound, "user not found")
}

func LastAdmin() *Error {
	return newErr(CodeLastAdmin, http.StatusBadRequest, "conversation must keep at least one admin")
}

func LastParticipant() *Error {
	return newErr(CodeLastParticipant, http.StatusBadRequest, "cannot remove the last participant")
}

func SelfConversation() *Error {
	return newErr(CodeSelfConversation, http.StatusBadRequest, "cannot start a conversation with yourself")
}

func SelfContact() *Error {
	return newErr(CodeSelfContact, http.StatusBadRequest, "cannot add yourself as a contact")
}

// RateLimited reports a rejected request; retryAfter is milliseconds
// until the caller may try again.
func RateLimited(retryAfter int64) *Error {
	e := newErr(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded")
	e.RetryAfter = retryAfter
	return e
}

func Timeout(msg string) *Error {
	return newErr(CodeTimeout, http.StatusGatewayTimeout, msg)
}

func Database(err error) *Error {
	e := newErr(CodeDatabase, http.StatusInternalServerError, "database operation failed")
	e.cause = err
	return e
}

func Cache(err error) *Error {
	e := newErr(CodeCache, http.StatusInternalServerError, "cache operation failed")
	e.cause = err
	return e
}

func Internal(err error) *Error {
	e := newErr(CodeInternal, http.StatusInternalServerError, "internal server error")
	e.cause = err
	return e
}

// CodeOf extracts the domain code from err, or INTERNAL_SERVER_ERROR for
// anything outside the closed set.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps err to the response status for the REST surface.
func HTTPStatus(err error) int {
	var de *Error
	if errors.As(err, &de) {
		return de.Status
	}
	return http.StatusInternalServerError
}

// AsDomain returns err as a domain error, wrapping unknown errors as
// INTERNAL_SERVER_ERROR so clients never see raw details.
func AsDomain(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Internal(err)
}
