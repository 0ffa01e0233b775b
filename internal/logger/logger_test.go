package logger

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantInfo  bool
	}{
		{"off", LevelOff, false, false},
		{"normal", LevelNormal, false, true},
		{"verbose", LevelVerbose, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(tt.level, &buf)
			log.Debug("dbg line")
			log.Info("info line")

			out := buf.String()
			if got := strings.Contains(out, "dbg line"); got != tt.wantDebug {
				t.Fatalf("debug visible = %v, want %v (out=%q)", got, tt.wantDebug, out)
			}
			if got := strings.Contains(out, "info line"); got != tt.wantInfo {
				t.Fatalf("info visible = %v, want %v (out=%q)", got, tt.wantInfo, out)
			}
		})
	}
}

func TestNamedSharesLevelAndTags(t *testing.T) {
	var buf bytes.Buffer
	root := New(LevelNormal, &buf)
	asr := root.Named("ASR")

	asr.Warn("slow backend")
	if !strings.Contains(buf.String(), "[WRN]") || !strings.Contains(buf.String(), "[ASR] slow backend") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	root.SetLevel(LevelOff)
	asr.Error("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output after root SetLevel(off), got %q", buf.String())
	}
	if asr.GetLevel() != LevelOff {
		t.Fatalf("named logger level = %d, want off", asr.GetLevel())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"off":     LevelOff,
		"quiet":   LevelOff,
		"verbose": LevelVerbose,
		"debug":   LevelVerbose,
		"normal":  LevelNormal,
		"":        LevelNormal,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	log := New(LevelNormal, &buf)
	if log.Named("HTTP").Writer() != &buf {
		t.Fatal("expected the root output")
	}
	log.SetLevel(LevelOff)
	if w := log.Writer(); w == io.Writer(&buf) {
		t.Fatal("expected a discarding writer while off")
	}
}
