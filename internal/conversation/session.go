package conversation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// LogFileName is the per-session turn log.
	LogFileName = "conversation_log.jsonl"

	sessionStamp   = "20060102_150405"
	maxDirAttempts = 1000
)

// Session is one conversation run: a freshly created directory that holds
// the turn audio and the log. It is created once and never reopened.
type Session struct {
	ID        string
	Dir       string
	LogPath   string
	StartedAt time.Time
}

// OpenSession creates base/session_<YYYYMMDD_HHMMSS>. When that directory
// already exists a _2, _3, ... suffix is tried until one is free.
func OpenSession(base string, now time.Time) (*Session, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("session: create %s: %w", base, err)
	}

	name := "session_" + now.Format(sessionStamp)
	dir := filepath.Join(base, name)
	for n := 2; ; n++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("session: create %s: %w", dir, err)
		}
		if n > maxDirAttempts {
			return nil, fmt.Errorf("session: no free directory name for %s", name)
		}
		dir = filepath.Join(base, fmt.Sprintf("%s_%d", name, n))
	}

	return &Session{
		ID:        uuid.NewString(),
		Dir:       dir,
		LogPath:   filepath.Join(dir, LogFileName),
		StartedAt: now,
	}, nil
}

// InputPath is where the participant audio for a turn is saved.
func (s *Session) InputPath(turn int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("input_turn_%03d.wav", turn))
}

// OutputPath is where the synthesized reply for a turn is written. ext
// includes the dot.
func (s *Session) OutputPath(turn int, ext string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("output_turn_%03d%s", turn, ext))
}
