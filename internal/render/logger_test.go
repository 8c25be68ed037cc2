package render

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs(nil).(nopHandler); !ok {
		t.Error("WithAttrs did not return a nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup did not return a nopHandler")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)

	if Logger() != custom {
		t.Fatal("Logger() did not return the logger passed to SetLogger")
	}

	Logger().Info("swapchain created", "width", 800)
	if !strings.Contains(buf.String(), "swapchain created") {
		t.Errorf("log output = %q, want the message", buf.String())
	}

	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should silence the package")
	}
}

func TestValidationMessagesRoutedBySeverity(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	tests := []struct {
		severity ext_debug_utils.DebugUtilsMessageSeverityFlags
		want     string
	}{
		{ext_debug_utils.SeverityError, "level=ERROR"},
		{ext_debug_utils.SeverityWarning, "level=WARN"},
	}

	for _, tt := range tests {
		buf.Reset()
		keepGoing := logValidationMessage(ext_debug_utils.TypeValidation, tt.severity, &ext_debug_utils.DebugUtilsMessengerCallbackData{
			Message: "bad barrier",
		})
		if keepGoing {
			t.Error("validation callback must return false")
		}
		out := buf.String()
		if !strings.Contains(out, tt.want) || !strings.Contains(out, "bad barrier") {
			t.Errorf("severity %v logged %q, want %s", tt.severity, out, tt.want)
		}
	}
}
