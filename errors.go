package wschat

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyConnected = errors.New("connection is already open or opening")
	ErrNotConnected     = errors.New("connection is not open")
	ErrConnectionClosed = errors.New("connection closed")
	ErrMissingTarget    = errors.New("missing required target parameter")
)

// SendLimitError is returned by SendMessage when the outbound flood
// guard denies a send. RetryAfter is the wait until the quota window
// rolls over.
type SendLimitError struct {
	Target     string
	RetryAfter time.Duration
}

func (e *SendLimitError) Error() string {
	return fmt.Sprintf("message limit for room %q reached, retry in %s", e.Target, e.RetryAfter)
}

// ErrorCode is the closed set of error codes the server attaches to
// error packets.
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeDatabaseError
	ErrCodeAlreadyConnected
	ErrCodeNotFound
	ErrCodeAccessDenied
	ErrCodeInvalidTarget
	ErrCodeAlreadyExists
	ErrCodeIncorrectLoginPass
	ErrCodeUserBanned
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeUnknown:
		return "unknown"
	case ErrCodeDatabaseError:
		return "database_error"
	case ErrCodeAlreadyConnected:
		return "already_connected"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeAccessDenied:
		return "access_denied"
	case ErrCodeInvalidTarget:
		return "invalid_target"
	case ErrCodeAlreadyExists:
		return "already_exists"
	case ErrCodeIncorrectLoginPass:
		return "incorrect_loginpass"
	case ErrCodeUserBanned:
		return "user_banned"
	default:
		return fmt.Sprintf("error_code(%d)", int(c))
	}
}

// ProtocolError is an error packet received from the server. When the
// packet correlates to an in-flight request, the request fails with a
// *ProtocolError; otherwise it surfaces through the "error" event.
type ProtocolError struct {
	// Source is the packet type of the request this error pertains to,
	// or 0 for connection-level errors.
	Source PacketType
	Target string
	Code   ErrorCode
	Info   string
}

func (e *ProtocolError) Error() string {
	if e.Info != "" {
		return fmt.Sprintf("chat server error %s: %s", e.Code, e.Info)
	}
	return fmt.Sprintf("chat server error %s", e.Code)
}
