package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

var _ domain.TurnLog = (*FileLog)(nil)

// FileLog appends one JSON object per finalized turn to a file. The file is
// opened per append so a crash never leaves a half-open handle behind.
type FileLog struct {
	path string
	mu   sync.Mutex
	log  *logger.Logger
}

// NewFileLog returns a log writing to path. The file is created on the
// first append.
func NewFileLog(path string, log *logger.Logger) *FileLog {
	return &FileLog{path: path, log: log}
}

// Path returns the log file location.
func (f *FileLog) Path() string { return f.path }

// Append encodes rec as a single line and appends it.
func (f *FileLog) Append(ctx context.Context, rec *domain.TurnRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: encode turn %d: %w", rec.Turn, err)
	}
	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", f.path, err)
	}
	if _, err := fh.Write(line); err != nil {
		fh.Close()
		return fmt.Errorf("storage: write turn %d: %w", rec.Turn, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", f.path, err)
	}
	f.log.Debug("logged turn %d to %s", rec.Turn, f.path)
	return nil
}

// ReadAll decodes every record in the log at path. A missing file yields
// no records.
func ReadAll(path string) ([]domain.TurnRecord, error) {
	fh, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	defer fh.Close()

	var out []domain.TurnRecord
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; sc.Scan(); n++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec domain.TurnRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("storage: %s line %d: %w", path, n, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return out, nil
}
