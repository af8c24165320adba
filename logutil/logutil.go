// logutil.go - slog-Hilfsfunktionen
//
// Dieses Modul enthaelt:
// - LevelTrace: zusaetzliches Log-Level unterhalb von DEBUG
// - NewLogger: TextHandler mit TRACE-Namen und kurzen Quellpfaden
// - Trace/TraceContext: Logging auf TRACE-Level ueber den Default-Logger
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const LevelTrace slog.Level = -8

// NewLogger erzeugt einen Logger, der ab level nach w schreibt
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if level, ok := attr.Value.Any().(slog.Level); ok && level == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// Discard ist ein Logger ohne Ausgabe
var Discard = slog.New(slog.DiscardHandler)

func Trace(msg string, args ...any) {
	trace(context.Background(), msg, args...)
}

func TraceContext(ctx context.Context, msg string, args ...any) {
	trace(ctx, msg, args...)
}

func trace(ctx context.Context, msg string, args ...any) {
	if logger := slog.Default(); logger.Enabled(ctx, LevelTrace) {
		var pc uintptr
		if !testing.Testing() {
			// runtime.Callers, trace und Trace/TraceContext ueberspringen
			var pcs [1]uintptr
			runtime.Callers(3, pcs[:])
			pc = pcs[0]
		}
		r := slog.NewRecord(time.Now(), LevelTrace, msg, pc)
		r.Add(args...)
		_ = logger.Handler().Handle(ctx, r)
	}
}
