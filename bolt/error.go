package bolt

import "fmt"

// Kind classifies an Error without requiring callers to type-switch on
// a deep hierarchy of error types.
type Kind int

const (
	KindTransport Kind = iota
	KindHandshakeFailed
	KindCodec
	KindProtocol
	KindServerFailure
	KindSessionBroken
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindHandshakeFailed:
		return "HandshakeFailed"
	case KindCodec:
		return "CodecError"
	case KindProtocol:
		return "ProtocolError"
	case KindServerFailure:
		return "ServerFailure"
	case KindSessionBroken:
		return "SessionBroken"
	}
	return "Unknown"
}

// Error is the single error type the bolt package returns. Op names
// the operation that failed ("open", "handshake", "hello", "run",
// "pull", "sync", "take", "fetch", "close"); Code carries the server-supplied error code when
// Kind is KindServerFailure; Err wraps the underlying cause, if any.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Code    string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bolt: %s: %s [%s]: %s", e.Op, e.Kind, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("bolt: %s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("bolt: %s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func errTransport(op, message string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: message, Err: err}
}

func errHandshake(op, message string) *Error {
	return &Error{Kind: KindHandshakeFailed, Op: op, Message: message}
}

func errCodec(op, message string, err error) *Error {
	return &Error{Kind: KindCodec, Op: op, Message: message, Err: err}
}

func errProtocol(op, message string) *Error {
	return &Error{Kind: KindProtocol, Op: op, Message: message}
}

func errServerFailure(op, code, message string) *Error {
	return &Error{Kind: KindServerFailure, Op: op, Code: code, Message: message}
}

func errBroken(op string, cause error) *Error {
	return &Error{Kind: KindSessionBroken, Op: op, Message: "session is broken or closed", Err: cause}
}
