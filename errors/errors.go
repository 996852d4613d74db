package errors

import (
	stderrors "errors"
	"fmt"
)

// Kinds surfaced to clients. Every error returned by a gateway operation wraps exactly one of them.
var (
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrNotFound     = fmt.Errorf("not found")
	ErrForbidden    = fmt.Errorf("forbidden")
	ErrBadRequest   = fmt.Errorf("bad request")
)

var (
	ErrGroupNotFound    = fmt.Errorf("group %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrNotMember        = fmt.Errorf("not a member of the group: %w", ErrForbidden)
	ErrNotInvited       = fmt.Errorf("not invited to the private group: %w", ErrForbidden)
	ErrInsufficientRole = fmt.Errorf("insufficient role: %w", ErrForbidden)
	ErrNotGroupOwner    = fmt.Errorf("not the group owner: %w", ErrForbidden)
	ErrAlreadyInGroup   = fmt.Errorf("already in group: %w", ErrBadRequest)
	ErrAlreadyInvited   = fmt.Errorf("already invited: %w", ErrBadRequest)
	ErrInvalidPayload   = fmt.Errorf("invalid payload: %w", ErrBadRequest)
	ErrUnknownMethod    = fmt.Errorf("unknown method: %w", ErrBadRequest)
	ErrInvalidToken     = fmt.Errorf("invalid or expired token: %w", ErrUnauthorized)
	ErrMissingToken     = fmt.Errorf("authorization token is missing: %w", ErrUnauthorized)
	ErrInvalidUserID    = fmt.Errorf("empty or contains ':': %w", ErrBadRequest)
)

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
	ErrConnectionClosed  = fmt.Errorf("connection closed")
	ErrSlowConsumer      = fmt.Errorf("connection send buffer is full")
	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrTxnRetryExhausted = fmt.Errorf("transaction conflict retries exhausted")
)

const (
	KindUnauthorized = "Unauthorized"
	KindNotFound     = "NotFound"
	KindForbidden    = "Forbidden"
	KindBadRequest   = "BadRequest"
	KindInternal     = "Internal"
)

// Kind maps an error onto the name of its failure kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case stderrors.Is(err, ErrNotFound):
		return KindNotFound
	case stderrors.Is(err, ErrForbidden):
		return KindForbidden
	case stderrors.Is(err, ErrBadRequest):
		return KindBadRequest
	default:
		return KindInternal
	}
}
