// Package wavfile reads and writes mono 16-bit PCM WAV files.
package wavfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth  = 16
	pcmFormat = 1
	maxInt16  = 32767
)

// Clip is decoded PCM audio.
type Clip struct {
	Samples    []int // interleaved, at the file's bit depth
	SampleRate int
	Channels   int
	BitDepth   int
}

// Float32 converts the clip to [-1,1] float samples.
func (c *Clip) Float32() []float32 {
	scale := float32(int(1)<<(c.BitDepth-1) - 1)
	out := make([]float32, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = float32(s) / scale
	}
	return out
}

// PCM16LE returns the clip as little-endian signed 16-bit bytes, the format
// the audio player expects.
func (c *Clip) PCM16LE() ([]byte, error) {
	if c.BitDepth != bitDepth {
		return nil, fmt.Errorf("wavfile: want %d-bit audio, got %d-bit", bitDepth, c.BitDepth)
	}
	out := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		v := uint16(int16(s))
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out, nil
}

// Seconds returns the clip length.
func (c *Clip) Seconds() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)/c.Channels) / float64(c.SampleRate)
}

// Quantize clips samples to [-1,1] and scales them to the 16-bit range.
func Quantize(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int(s * maxInt16)
	}
	return out
}

// Encode writes samples as a mono 16-bit PCM WAV stream.
func Encode(w io.WriteSeeker, samples []float32, sampleRate int) error {
	return encodeInts(w, Quantize(samples), sampleRate, 1)
}

// EncodeClip writes a 16-bit clip as a WAV stream.
func EncodeClip(w io.WriteSeeker, c *Clip) error {
	if c.BitDepth != bitDepth {
		return fmt.Errorf("wavfile: want %d-bit audio, got %d-bit", bitDepth, c.BitDepth)
	}
	return encodeInts(w, c.Samples, c.SampleRate, c.Channels)
}

func encodeInts(w io.WriteSeeker, data []int, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, bitDepth, channels, pcmFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavfile: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavfile: finalize header: %w", err)
	}
	return nil
}

// Write saves samples to path as a mono 16-bit PCM WAV file.
func Write(path string, samples []float32, sampleRate int) error {
	return create(path, func(f *os.File) error { return Encode(f, samples, sampleRate) })
}

// WriteClip saves a 16-bit clip to path.
func WriteClip(path string, c *Clip) error {
	return create(path, func(f *os.File) error { return EncodeClip(f, c) })
}

func create(path string, encode func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavfile: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("wavfile: close %s: %w", path, cerr)
		}
	}()
	return encode(f)
}

// Decode reads a whole WAV stream.
func Decode(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("wavfile: not a valid WAV stream")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavfile: read pcm: %w", err)
	}
	return &Clip{
		Samples:    buf.Data,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

// Read decodes the WAV file at path.
func Read(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Duration returns the playback length of the WAV file at path in seconds.
func Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("wavfile: open %s: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return 0, fmt.Errorf("wavfile: %s is not a valid WAV file", path)
	}
	dur, err := d.Duration()
	if err != nil {
		return 0, fmt.Errorf("wavfile: duration %s: %w", path, err)
	}
	return dur.Seconds(), nil
}
