package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_FirstCallWins(t *testing.T) {
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	Init(Options{Level: "warn", Output: &first, Service: "whisper-api"})
	Init(Options{Level: "debug", Output: &second})

	log := Get()
	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	if second.Len() != 0 {
		t.Fatalf("second Init must not replace the logger")
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(first.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", first.String(), err)
	}
	if line["message"] != "kept" || line["service"] != "whisper-api" {
		t.Fatalf("unexpected line: %v", line)
	}
}

func TestComponent(t *testing.T) {
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Output: &buf})
	l := Component("ledger")
	l.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if line["component"] != "ledger" {
		t.Fatalf("expected component field, got %v", line)
	}
}

func TestGet_BeforeInitPanics(t *testing.T) {
	Reset()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Get()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"loud":    zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
