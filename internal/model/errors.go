package model

import "fmt"

// ErrorKind is the closed taxonomy of errors that can cross the
// supervisor/front boundary. Kept as plain data rather than a Go
// exception value per the "error values on the queue" design note:
// the supervisor returns a failed command's Kind and Message on the
// result channel, and the front re-raises them as an *RPCError a
// caller can branch on by Kind.
type ErrorKind string

const (
	ErrKindConnectFailed    ErrorKind = "connect_failed"
	ErrKindUnknownLease     ErrorKind = "unknown_lease"
	ErrKindUnknownTask      ErrorKind = "unknown_task"
	ErrKindUnknownCommand   ErrorKind = "unknown_command"
	ErrKindEarlyTermination ErrorKind = "early_termination"
	ErrKindFileOpenFailed   ErrorKind = "file_open_failed"
	ErrKindTransportError   ErrorKind = "transport_error"
	ErrKindRPCTimeout       ErrorKind = "rpc_timeout"
	ErrKindNotStarted       ErrorKind = "not_started"
)

// RPCError implements error and is gob-safe: it carries only a Kind and
// a Message, never a wrapped Go value, so it survives a trip across a
// process boundary intact.
type RPCError struct {
	Kind    ErrorKind
	Message string
}

func (e *RPCError) Error() string {
	return e.Message
}

// Is lets callers write errors.Is(err, &RPCError{Kind: model.ErrKindUnknownTask})
// without caring about the exact message.
func (e *RPCError) Is(target error) bool {
	other, ok := target.(*RPCError)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// NewRPCError builds an RPCError with a formatted message.
func NewRPCError(kind ErrorKind, format string, args ...any) *RPCError {
	return &RPCError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// DumperError is the worker-internal failure taxonomy:
// EarlyTermination, FileOpenFailed, or TransportError. It builds an
// *RPCError with one of those kinds; the worker logs it through its
// Logger and exits, so it reaches the supervisor only as a log record.
func DumperError(kind ErrorKind, format string, args ...any) *RPCError {
	switch kind {
	case ErrKindEarlyTermination, ErrKindFileOpenFailed, ErrKindTransportError:
		return NewRPCError(kind, format, args...)
	default:
		panic(fmt.Sprintf("model: %s is not a DumperError kind", kind))
	}
}
