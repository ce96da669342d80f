package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(WARN)
	defer SetLevel(INFO)

	InfoC("test", "should be dropped")
	WarnC("test", "should be kept")

	got := buf.String()
	if strings.Contains(got, "dropped") {
		t.Fatalf("info record emitted at WARN level: %q", got)
	}
	if !strings.Contains(got, "should be kept") {
		t.Fatalf("warn record missing: %q", got)
	}
}

func TestFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(INFO)

	InfoCF("test", "msg", map[string]any{"b": 2, "a": 1})
	got := buf.String()
	if strings.Index(got, "a=1") > strings.Index(got, "b=2") {
		t.Fatalf("fields not sorted: %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"error":   ERROR,
		"bogus":   INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
