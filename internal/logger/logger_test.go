package logger

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(s string) string { return ansi.ReplaceAllString(s, "") }

func TestSetup(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		format string
		level  string
		debug  bool
		want   string
		quiet  bool
	}{
		{"json-info", "json", "info", false, `"msg":"hello"`, false},
		{"text-warn", "text", "warn", false, "", true},
		{"pretty-default", "", "", false, "INF hello", false},
		{"debug-overrides", "json", "error", true, `"msg":"hello"`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log, err := Setup(&buf, tc.format, tc.level, tc.debug)
			if err != nil {
				t.Fatalf("setup: %v", err)
			}
			log.Info("hello", "variant", "gemv-i32-lmac8")
			out := plain(buf.String())
			if tc.quiet {
				if out != "" {
					t.Fatalf("expected no output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, tc.want) {
				t.Fatalf("expected %q in %q", tc.want, out)
			}
		})
	}
}

func TestSetupRejects(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if _, err := Setup(&buf, "xml", "info", false); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := Setup(&buf, "json", "loud", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q): got %v want %v", in, got, want)
		}
	}
}

func TestPrettyAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelDebug).With("graph", "gemv").WithGroup("inv")
	log.Debug("done", "index", 3, "elapsed", 1500*time.Microsecond, "note", "two words")

	out := plain(buf.String())
	for _, want := range []string{"DBG done", "graph=gemv", "inv.index=3", "inv.elapsed=1.5ms", `inv.note="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestPrettyLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Pretty(&buf, slog.LevelWarn)
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info at warn level wrote %q", buf.String())
	}
	if log.Enabled(slog.LevelInfo) {
		t.Fatal("info reported enabled at warn level")
	}
	log.Error("shown")
	if !strings.Contains(plain(buf.String()), "ERR shown") {
		t.Fatalf("expected error line, got %q", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelInfo))
	FromContext(ctx).Info("roundtrip")
	if !strings.Contains(buf.String(), "roundtrip") {
		t.Fatalf("expected context logger to be used, got %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without logger returned nil")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	if log.Enabled(slog.LevelError) {
		t.Fatal("discard logger reports error enabled")
	}
	log.Error("dropped")
}

func TestNeedsQuoting(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want bool
	}{
		{"simple", false},
		{"has space", true},
		{"tab\there", true},
		{`quote"`, true},
		{"k=v", true},
		{"", false},
	}
	for _, tc := range cases {
		if got := needsQuoting(tc.in); got != tc.want {
			t.Errorf("needsQuoting(%q): got %v want %v", tc.in, got, tc.want)
		}
	}
}
