package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// LogAppender дублирует записи в лог процесса
type LogAppender struct {
	log   zerolog.Logger
	level Level
}

func NewLogAppender(log zerolog.Logger, level Level) *LogAppender {
	return &LogAppender{log: log, level: level}
}

// Append пишет запись одним событием: info для успеха, warn для ошибки
func (la *LogAppender) Append(_ context.Context, entry *Entry) error {
	e := entry.Redact(la.level)

	ev := la.log.Info()
	if e.Failed() {
		ev = la.log.Warn().Str("error_class", e.ErrorClass)
		if e.Error != "" {
			ev = ev.Str("error", e.Error)
		}
	}
	ev = ev.Str("operation", string(e.Operation)).Str("status", string(e.Status))

	for _, f := range [...]struct{ key, val string }{
		{"dump_id", e.DumpID},
		{"database", e.Database},
		{"object", e.Object},
		{"target", e.Target},
	} {
		if f.val != "" {
			ev = ev.Str(f.key, f.val)
		}
	}
	if e.Rows > 0 {
		ev = ev.Int64("rows", e.Rows)
	}
	if e.Bytes > 0 {
		ev = ev.Int64("bytes", e.Bytes)
	}
	if e.Duration > 0 {
		ev = ev.Dur("duration", e.Duration)
	}
	if len(e.Metadata) > 0 {
		ev = ev.Fields(e.Metadata)
	}
	ev.Msg("audit")
	return nil
}

func (la *LogAppender) Close() error { return nil }
