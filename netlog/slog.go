package netlog

import (
	"context"
	"log/slog"

	"github.com/joeycumines/logiface"
)

// slogLevel maps a logiface.Level onto the nearest slog.Level. logiface's
// syslog-derived scale has more granularity than slog's four levels, so
// Notice/Informational collapse onto LevelInfo and Emergency/Alert/Critical
// all collapse onto LevelError, same as the standalone logiface-slog
// adapter in the teacher's monorepo did (dropped here, see DESIGN.md, and
// reassembled locally since it is small and netloop's only slog dependency).
func slogLevel(l logiface.Level) slog.Level {
	switch {
	case l >= logiface.LevelDebug:
		return slog.LevelDebug
	case l >= logiface.LevelNotice:
		return slog.LevelInfo
	case l >= logiface.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// NewSlogWriter adapts a *slog.Logger into a logiface.Writer[*Event], so
// netlog.NewLogger can be backed by any slog.Handler (text, JSON, or a
// third-party one).
func NewSlogWriter(l *slog.Logger) logiface.Writer[*Event] {
	return logiface.NewWriterFunc[*Event](func(e *Event) error {
		lvl := slogLevel(e.Level())
		if !l.Enabled(context.Background(), lvl) {
			return nil
		}
		args := make([]any, 0, len(e.fields)*2+2)
		if e.err != nil {
			args = append(args, "err", e.err)
		}
		for _, f := range e.fields {
			args = append(args, f.key, f.val)
		}
		l.Log(context.Background(), lvl, e.msg, args...)
		return nil
	})
}
