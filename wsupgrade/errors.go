package wsupgrade

import "github.com/cockroachdb/errors"

// Kind closes the taxonomy of reasons an upgrade attempt is rejected.
type Kind uint8

const (
	_ Kind = iota
	// KindInvalidUpgradeHeader means a required header was missing,
	// duplicated where a single value was required, or malformed.
	KindInvalidUpgradeHeader
	// KindUnsupportedWebSocketTarget means the request was well-formed and
	// named websocket, but the caller-supplied predicate rejected it.
	KindUnsupportedWebSocketTarget
)

func (k Kind) String() string {
	switch k {
	case KindInvalidUpgradeHeader:
		return "invalid upgrade header"
	case KindUnsupportedWebSocketTarget:
		return "unsupported websocket target"
	default:
		return "unknown"
	}
}

// Error is the concrete error type BuildUpgradeResponse and Upgrade reject
// their futures with. It carries a Kind so callers can branch with
// errors.As without string-matching the message.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return "wsupgrade: " + e.Kind.String()
	}
	return "wsupgrade: " + e.Kind.String() + ": " + e.Reason
}

func newError(kind Kind, reason string) error {
	return errors.WithStack(&Error{Kind: kind, Reason: reason})
}

// ErrInvalidUpgradeHeader reports whether err is a header-validation
// rejection, for use with errors.Is.
var ErrInvalidUpgradeHeader = &Error{Kind: KindInvalidUpgradeHeader}

// ErrUnsupportedWebSocketTarget reports whether err is a predicate or
// target rejection, for use with errors.Is.
var ErrUnsupportedWebSocketTarget = &Error{Kind: KindUnsupportedWebSocketTarget}

// Is implements errors.Is's interface, comparing by Kind only: two *Error
// values are equivalent regardless of Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
