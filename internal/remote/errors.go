package remote

import (
	"errors"
	"fmt"
)

const (
	// CodeUnauthenticated means the session is no longer valid.
	CodeUnauthenticated = 401
	// CodeNotFound means the folder or message does not exist.
	CodeNotFound = 404
	// CodeFloodWait means the caller exceeded a rate limit.
	CodeFloodWait = 429

	// MsgNotModified is returned by EditMessage for an identical edit.
	MsgNotModified = "MESSAGE_NOT_MODIFIED"
	// MsgFloodWait accompanies CodeFloodWait.
	MsgFloodWait = "FLOOD_WAIT"
)

// Error is a failure reported by the remote API.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("remote: %s", e.Message)
	}
	return fmt.Sprintf("remote: %d %s", e.Code, e.Message)
}

// Errorf builds an *Error.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsUnauthenticated reports whether err signals an expired session.
func IsUnauthenticated(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == CodeUnauthenticated
}

// IsNotModified reports whether err is the edit no-op signal.
func IsNotModified(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Message == MsgNotModified
}

// IsFloodWait reports whether err is a rate-limit rejection.
func IsFloodWait(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Code == CodeFloodWait
}
