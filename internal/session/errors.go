package session

import (
	"errors"
	"fmt"
)

type ErrorKind uint8

const (
	// KindNotFound: unknown session, participant or question.
	KindNotFound ErrorKind = iota + 1
	// KindInvalidState: the command is illegal for the current status.
	KindInvalidState
	// KindPreconditionFailed: not enough teams or content to start.
	KindPreconditionFailed
	// KindForbidden: the actor lacks the required role.
	KindForbidden
	// KindDuplicate: a slot is already filled. Most commands treat this as a
	// no-op success to keep retries idempotent; the kind exists for callers
	// that need to tell the two apart.
	KindDuplicate
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidState:
		return "invalid state"
	case KindPreconditionFailed:
		return "precondition failed"
	case KindForbidden:
		return "forbidden"
	case KindDuplicate:
		return "duplicate"
	}
	return "unknown"
}

type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Reason: fmt.Sprintf(format, args...)}
}

func PreconditionFailed(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPreconditionFailed, Reason: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Reason: fmt.Sprintf(format, args...)}
}

func Duplicate(format string, args ...interface{}) *Error {
	return &Error{Kind: KindDuplicate, Reason: fmt.Sprintf(format, args...)}
}

func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
