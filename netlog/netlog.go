// Package netlog provides the structured logging seam shared by the
// wsupgrade and virtualtime packages. It intentionally has no opinion on
// the backing implementation: callers plug in a logiface.Logger built
// against a slog.Handler (via NewSlogWriter) or any other logiface.Writer.
// When no logger is configured, logging is a no-op, matching the teacher's
// eventloop.NewNoOpLogger default (eventloop/logging.go).
package netlog

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// field is a single structured key/value pair attached to an Event.
type field struct {
	key string
	val any
}

// Event is the logiface event type used throughout netloop. Unlike a bare
// logiface.UnimplementedEvent, it actually captures the message and fields
// so a real Writer (e.g. the slog-backed one in slog.go) has something to emit.
type Event struct {
	logiface.UnimplementedEvent
	level   logiface.Level
	msg     string
	err     error
	fields  []field
}

// Level implements logiface.Event.
func (e *Event) Level() logiface.Level { return e.level }

// AddField implements the mandatory half of logiface.Event.
func (e *Event) AddField(key string, val any) {
	e.fields = append(e.fields, field{key: key, val: val})
}

// AddMessage captures the log message instead of falling back to a "msg"
// field, per logiface's optional-method convention.
func (e *Event) AddMessage(msg string) bool {
	e.msg = msg
	return true
}

// AddError captures the error under a dedicated field instead of falling
// back to Event.AddField(`err`, err).
func (e *Event) AddError(err error) bool {
	e.err = err
	return true
}

type eventFactory struct{}

func (eventFactory) NewEvent(level logiface.Level) *Event { return &Event{level: level} }

// Logger is the type every netloop component logs through.
type Logger = logiface.Logger[*Event]

var (
	current atomic.Pointer[Logger]
	initMu  sync.Mutex
)

// SetLogger installs the process-wide logger used by wsupgrade and
// virtualtime. Passing nil restores the no-op default.
func SetLogger(l *Logger) {
	current.Store(l)
}

// NewLogger builds a Logger writing through the supplied logiface.Writer at
// the given minimum level.
func NewLogger(writer logiface.Writer[*Event], level logiface.Level) *Logger {
	return logiface.New[*Event](
		logiface.WithEventFactory[*Event](eventFactory{}),
		logiface.WithWriter[*Event](writer),
		logiface.WithLevel[*Event](level),
	)
}

// L returns the currently installed logger, or a no-op logger if none has
// been configured via SetLogger.
func L() *Logger {
	if l := current.Load(); l != nil {
		return l
	}
	initMu.Lock()
	defer initMu.Unlock()
	if l := current.Load(); l != nil {
		return l
	}
	noop := logiface.New[*Event](
		logiface.WithEventFactory[*Event](eventFactory{}),
	)
	current.Store(noop)
	return noop
}
