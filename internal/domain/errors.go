package domain

import "fmt"

// Kind classifies a session failure so callers can branch on the class
// of fault without inspecting message text.
type Kind string

const (
	KindCredential         Kind = "credential"
	KindMediaAccess        Kind = "media_access"
	KindNegotiation        Kind = "negotiation"
	KindTransport          Kind = "transport"
	KindChannelNotOpen     Kind = "channel_not_open"
	KindCapture            Kind = "capture"
	KindPrecondition       Kind = "precondition"
	KindDescriptionService Kind = "description_service"
)

// Error is the failure type produced by session components. Op names the
// operation that failed ("signal.negotiate"), Err holds the underlying
// cause when one exists.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err into a classified Error.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Errorf builds a classified Error with a formatted message and no cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf reports the Kind carried by err, unwrapping as needed. Errors
// that did not originate here report the empty Kind.
func KindOf(err error) Kind {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// IsKind reports whether err carries kind at any level of wrapping.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
