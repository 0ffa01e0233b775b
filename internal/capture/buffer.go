// Package capture owns the microphone input stream and the push-to-talk
// sample buffer fed from it.
//
// The stream is opened once when the Buffer is created and stays open for
// the life of the process; Start/Stop only toggle whether incoming chunks
// are kept. Shutdown releases the stream and must run on exit.
package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/hammamikhairi/voicechat/internal/logger"
)

// bytesPerSample is the size of one mono float32 frame.
const bytesPerSample = 4

// Stream is an open audio input. Open starts delivering raw little-endian
// float32 mono chunks to onData, possibly from another goroutine, until
// Close is called.
type Stream interface {
	Open(onData func(chunk []byte)) error
	Close() error
}

// Buffer accumulates audio chunks while armed. Safe for concurrent use:
// the stream callback runs on the audio thread.
type Buffer struct {
	stream Stream
	log    *logger.Logger

	mu     sync.Mutex
	armed  bool
	chunks [][]byte

	closeOnce sync.Once
}

// New opens stream and returns a disarmed buffer attached to it.
func New(stream Stream, log *logger.Logger) (*Buffer, error) {
	b := &Buffer{stream: stream, log: log}

	log.Debug("opening input stream (kept open until shutdown)")
	if err := stream.Open(b.onData); err != nil {
		return nil, fmt.Errorf("capture: open stream: %w", err)
	}
	log.Debug("input stream started")
	return b, nil
}

// onData is the stream callback. Chunks arriving while disarmed are dropped.
func (b *Buffer) onData(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.armed {
		return
	}
	// The driver reuses its buffer after the callback returns.
	b.chunks = append(b.chunks, append([]byte(nil), chunk...))
}

// Start clears any previously buffered audio and arms capture. Calling it
// while already armed just resets the buffer.
func (b *Buffer) Start() {
	b.mu.Lock()
	b.chunks = nil
	b.armed = true
	b.mu.Unlock()
	b.log.Debug("recording armed")
}

// Armed reports whether capture is currently armed.
func (b *Buffer) Armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armed
}

// Stop disarms capture and returns everything captured since Start as one
// flat sample slice in arrival order. It never fails: no audio, or audio
// that cannot be decoded, yields an empty slice.
func (b *Buffer) Stop() []float32 {
	b.mu.Lock()
	b.armed = false
	chunks := b.chunks
	b.chunks = nil
	b.mu.Unlock()

	b.log.Debug("recording stopped, %d chunks collected", len(chunks))
	if len(chunks) == 0 {
		return []float32{}
	}

	samples, err := concat(chunks)
	if err != nil {
		b.log.Error("concatenating chunks failed: %v", err)
		return []float32{}
	}
	b.log.Debug("returning %d samples", len(samples))
	return samples
}

// Shutdown closes the underlying stream. Only the first call has effect.
func (b *Buffer) Shutdown() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.armed = false
		b.chunks = nil
		b.mu.Unlock()

		b.log.Debug("shutting down input stream")
		if err := b.stream.Close(); err != nil {
			b.log.Error("closing input stream: %v", err)
			return
		}
		b.log.Debug("input stream closed")
	})
}

// concat decodes and joins float32 LE chunks.
func concat(chunks [][]byte) ([]float32, error) {
	total := 0
	for i, c := range chunks {
		if len(c)%bytesPerSample != 0 {
			return nil, fmt.Errorf("chunk %d has %d bytes, not a whole number of samples", i, len(c))
		}
		total += len(c) / bytesPerSample
	}

	out := make([]float32, 0, total)
	for _, c := range chunks {
		for off := 0; off < len(c); off += bytesPerSample {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(c[off:])))
		}
	}
	return out, nil
}

// EncodeFloat32 packs samples into the little-endian layout a Stream
// delivers. Used by tests and by replayed input.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*bytesPerSample:], math.Float32bits(s))
	}
	return out
}
