package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)
	logger.Log(context.Background(), LevelTrace, "folding", "key", "abc")

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("erwartet level=TRACE, bekommen %q", out)
	}
	if !strings.Contains(out, "source=logutil_test.go:") {
		t.Errorf("erwartet kurzen Quellpfad, bekommen %q", out)
	}
}

func TestTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(NewLogger(&buf, slog.LevelDebug))
	Trace("hidden")
	if buf.Len() != 0 {
		t.Errorf("erwartet keine Ausgabe unterhalb von TRACE, bekommen %q", buf.String())
	}

	slog.SetDefault(NewLogger(&buf, LevelTrace))
	TraceContext(context.Background(), "visible", "n", 1)
	if !strings.Contains(buf.String(), "msg=visible n=1") {
		t.Errorf("erwartet Trace-Ausgabe, bekommen %q", buf.String())
	}
}
