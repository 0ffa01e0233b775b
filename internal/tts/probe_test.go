package tts

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/voicechat/internal/wavfile"
)

const afinfoOut = `File:           output_turn_001.aiff
File type ID:   AIFF
Num Tracks:     1
----
Data format:     1 ch,  22050 Hz, 'lpcm' (0x0000000E) 16-bit big-endian signed integer
                no channel layout.
estimated duration: 2.345669 sec
audio bytes: 103446
`

func TestParseAfinfo(t *testing.T) {
	got, err := parseAfinfo(afinfoOut)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if math.Abs(got-2.345669) > 1e-9 {
		t.Fatalf("duration = %v", got)
	}

	if _, err := parseAfinfo("File: x\n"); err == nil {
		t.Fatal("expected error without duration line")
	}
	if _, err := parseAfinfo("estimated duration: abc sec\n"); err == nil {
		t.Fatal("expected error for unparseable number")
	}
}

func TestProberUsesAfinfoForAiff(t *testing.T) {
	p := NewProber()
	var gotPath string
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotPath = args[0]
		return []byte(afinfoOut), nil
	}
	d, err := p.Duration("out.aiff")
	if err != nil || gotPath != "out.aiff" || math.Abs(d-2.345669) > 1e-9 {
		t.Fatalf("duration = %v, %v (path %q)", d, err, gotPath)
	}
}

func TestProberReadsWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := wavfile.Write(path, make([]float32, 12000), 24000); err != nil {
		t.Fatalf("write: %v", err)
	}
	p := NewProber()
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatal("afinfo should not run for wav")
		return nil, nil
	}
	d, err := p.Duration(path)
	if err != nil || math.Abs(d-0.5) > 1e-6 {
		t.Fatalf("duration = %v, %v", d, err)
	}
}
