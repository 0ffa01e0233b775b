package tts

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/wavfile"
)

var _ domain.DurationProber = (*Prober)(nil)

// Prober measures rendered replies. WAV files are read directly; anything
// else goes through macOS afinfo.
type Prober struct {
	run runFunc
}

// NewProber creates a duration prober.
func NewProber() *Prober {
	return &Prober{run: runCommand}
}

// Duration implements domain.DurationProber.
func (p *Prober) Duration(path string) (float64, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		return wavfile.Duration(path)
	}
	out, err := p.run(context.Background(), "afinfo", path)
	if err != nil {
		return 0, fmt.Errorf("tts: afinfo: %w", err)
	}
	return parseAfinfo(string(out))
}

// parseAfinfo finds the "estimated duration: 1.234 sec" line.
func parseAfinfo(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(strings.ToLower(line), "estimated duration") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		v, err := strconv.ParseFloat(fields[len(fields)-2], 64)
		if err != nil {
			return 0, fmt.Errorf("tts: afinfo duration %q: %w", line, err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("tts: afinfo output has no duration line")
}
