// Package tts renders assistant replies to audio files and plays them.
//
// Say shells out to the macOS say/afplay pair; Azure synthesizes through
// Azure Cognitive Services and plays through oto. Both write the rendered
// audio to the path they are given so its duration can be probed and
// logged afterwards.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

var _ domain.Renderer = (*Say)(nil)

// DefaultSayVoice is the macOS voice used when none is configured.
const DefaultSayVoice = "Samantha"

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Say renders with `say -o` and plays the file with `afplay`.
type Say struct {
	voice string
	play  bool
	run   runFunc
	log   *logger.Logger
}

// SayOption configures Say.
type SayOption func(*Say)

// WithSayVoice sets the macOS voice.
func WithSayVoice(v string) SayOption {
	return func(s *Say) {
		if v != "" {
			s.voice = v
		}
	}
}

// WithPlayback toggles playing the rendered file. Bridge mode disables it:
// the robot plays the file itself.
func WithPlayback(on bool) SayOption {
	return func(s *Say) { s.play = on }
}

// NewSay creates a say-based renderer.
func NewSay(log *logger.Logger, opts ...SayOption) *Say {
	s := &Say{voice: DefaultSayVoice, play: true, run: runCommand, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Render implements domain.Renderer.
func (s *Say) Render(ctx context.Context, text, outputPath string) error {
	text = cleanForSpeech(text)
	if text == "" {
		s.log.Debug("skipping empty text")
		return nil
	}

	start := time.Now()
	s.log.Debug("rendering %d chars to %s", len(text), outputPath)
	if _, err := s.run(ctx, "say", "-v", s.voice, "-o", outputPath, text); err != nil {
		return fmt.Errorf("tts: say: %w", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("tts: say produced no file: %w", err)
	}
	s.log.Debug("rendered in %s", time.Since(start).Round(time.Millisecond))

	if !s.play {
		return nil
	}
	if _, err := s.run(ctx, "afplay", outputPath); err != nil {
		return fmt.Errorf("tts: afplay: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, fmt.Errorf("%s exited %d: %s", name, ee.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
