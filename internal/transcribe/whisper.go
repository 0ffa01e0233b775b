// Package transcribe turns captured samples into text. WhisperCLI runs a
// local whisper.cpp binary; HTTPBackend posts to an OpenAI-compatible
// transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/wavfile"
)

// Compile-time interface check.
var _ domain.Transcriber = (*WhisperCLI)(nil)

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// WhisperOption configures WhisperCLI.
type WhisperOption func(*WhisperCLI)

// WithLanguage sets the spoken language passed to whisper ("en", "auto").
func WithLanguage(lang string) WhisperOption {
	return func(w *WhisperCLI) { w.lang = lang }
}

// WithThreads sets the whisper thread count. Zero keeps whisper's default.
func WithThreads(n int) WhisperOption {
	return func(w *WhisperCLI) { w.threads = n }
}

// WithTempDir sets the directory for temporary WAV files.
func WithTempDir(dir string) WhisperOption {
	return func(w *WhisperCLI) { w.tempDir = dir }
}

// WhisperCLI transcribes by writing the samples to a WAV file and running
// whisper-cli on it. The model is loaded per call; for long sessions point
// it at a small GGML model.
type WhisperCLI struct {
	bin     string
	model   string
	lang    string
	threads int
	tempDir string
	run     runFunc
	log     *logger.Logger
}

// NewWhisperCLI creates a transcriber.
//
//   - bin:   path to the whisper-cli executable
//   - model: path to the GGML model file
func NewWhisperCLI(bin, model string, log *logger.Logger, opts ...WhisperOption) *WhisperCLI {
	w := &WhisperCLI{
		bin:   bin,
		model: model,
		lang:  "en",
		run:   runCommand,
		log:   log,
	}
	for _, o := range opts {
		o(w)
	}

	if _, err := exec.LookPath(w.bin); err != nil {
		log.Error("whisper binary %q not found in PATH: %v", w.bin, err)
	}
	return w
}

// Transcribe implements domain.Transcriber.
func (w *WhisperCLI) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	path, cleanup, err := writeTemp(w.tempDir, samples, sampleRate)
	if err != nil {
		return "", err
	}
	defer cleanup()

	args := []string{"-m", w.model, "-f", path, "-l", w.lang, "-nt", "-np"}
	if w.threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.threads))
	}

	start := time.Now()
	out, err := w.run(ctx, w.bin, args...)
	if err != nil {
		return "", fmt.Errorf("transcribe: whisper: %w", err)
	}

	text := Clean(string(out))
	w.log.Debug("whisper took %s: %q", time.Since(start).Round(time.Millisecond), text)
	return text, nil
}

// writeTemp saves samples to a temporary WAV and returns a func removing it.
func writeTemp(dir string, samples []float32, rate int) (string, func(), error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("transcribe: temp dir: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, "utterance-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("transcribe: temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if err := wavfile.Encode(f, samples, rate); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("transcribe: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("transcribe: close temp file: %w", err)
	}
	return path, cleanup, nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("%s exited %d: %s", name, ee.ExitCode(), strings.TrimSpace(lastLine(stderr.String())))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
