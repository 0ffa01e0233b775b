package wavfile

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sine(n, rate int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	const rate = 16000
	in := sine(4000, rate, 0.5)
	path := filepath.Join(t.TempDir(), "tone.wav")

	if err := Write(path, in, rate); err != nil {
		t.Fatalf("write: %v", err)
	}

	clip, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if clip.SampleRate != rate || clip.Channels != 1 || clip.BitDepth != 16 {
		t.Fatalf("unexpected format: rate=%d ch=%d bits=%d", clip.SampleRate, clip.Channels, clip.BitDepth)
	}

	out := clip.Float32()
	if len(out) != len(in) {
		t.Fatalf("sample count = %d, want %d", len(out), len(in))
	}
	const tol = 2.0 / 32767
	for i := range in {
		if d := math.Abs(float64(out[i] - in[i])); d > tol {
			t.Fatalf("sample %d: got %f want %f (diff %g)", i, out[i], in[i], d)
		}
	}

	secs, err := Duration(path)
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if math.Abs(secs-0.25) > 0.001 {
		t.Fatalf("duration = %f, want 0.25", secs)
	}
}

func TestQuantizeClips(t *testing.T) {
	got := Quantize([]float32{-2, -1, 0, 0.5, 1, 3})
	want := []int{-32767, -32767, 0, 16383, 32767, 32767}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Quantize[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPCM16LE(t *testing.T) {
	c := &Clip{Samples: []int{1, -1, 0x1234}, SampleRate: 8000, Channels: 1, BitDepth: 16}
	b, err := c.PCM16LE()
	if err != nil {
		t.Fatalf("pcm: %v", err)
	}
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x34, 0x12}
	if string(b) != string(want) {
		t.Fatalf("pcm bytes = %x, want %x", b, want)
	}

	c.BitDepth = 24
	if _, err := c.PCM16LE(); err == nil {
		t.Fatal("expected error for 24-bit clip")
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.wav")
	if err := os.WriteFile(path, []byte("definitely not a wav file, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected error reading garbage")
	}
}

func TestWriteClipKeepsRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joined.wav")
	in := &Clip{Samples: []int{0, 1000, -1000, 32767}, SampleRate: 24000, Channels: 1, BitDepth: 16}
	if err := WriteClip(path, in); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	out, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.SampleRate != 24000 || len(out.Samples) != 4 || out.Samples[3] != 32767 {
		t.Fatalf("unexpected clip %+v", out)
	}

	if err := WriteClip(path, &Clip{BitDepth: 8}); err == nil {
		t.Fatal("expected error for 8-bit clip")
	}
}
