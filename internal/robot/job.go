// Package robot hands finished participant turns to a robot peripheral by
// dropping JSON job files into a directory the robot side watches.
package robot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/voicechat/internal/logger"
)

// InputJob is the participant-input job consumed by the robot.
type InputJob struct {
	JobID                  string   `json:"job_id"`
	Robot                  string   `json:"robot"`
	CreatedAt              string   `json:"created_at"`
	TurnID                 int      `json:"turn_id"`
	User                   string   `json:"user"`
	ParticipantDurationSec *float64 `json:"participant_duration_sec"`
	InputAudioPath         *string  `json:"input_audio_path"`
}

// Writer writes jobs into dir.
type Writer struct {
	dir   string
	robot string
	now   func() time.Time
	log   *logger.Logger
}

// NewWriter creates a writer for the named robot. dir is created lazily.
func NewWriter(dir, robotName string, log *logger.Logger) *Writer {
	return &Writer{dir: dir, robot: robotName, now: time.Now, log: log}
}

// Dir returns the directory jobs are written to.
func (w *Writer) Dir() string { return w.dir }

// WriteInputJob writes turn_NNNN_input.json and returns its path. The file
// appears atomically: it is written under a temporary name and renamed.
func (w *Writer) WriteInputJob(turnID int, participantText, inputAudioPath string, duration *float64) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.log.Error("create %s: %v", w.dir, err)
		return "", fmt.Errorf("robot: create %s: %w", w.dir, err)
	}

	job := InputJob{
		JobID:                  uuid.NewString(),
		Robot:                  w.robot,
		CreatedAt:              w.now().Format("2006-01-02T15:04:05"),
		TurnID:                 turnID,
		User:                   participantText,
		ParticipantDurationSec: duration,
	}
	if inputAudioPath != "" {
		job.InputAudioPath = &inputAudioPath
	}

	path := filepath.Join(w.dir, fmt.Sprintf("turn_%04d_input.json", turnID))
	if err := writeAtomic(path, job); err != nil {
		w.log.Error("write input job: %v", err)
		return "", err
	}
	w.log.Debug("wrote input job %s", path)
	return path, nil
}

func writeAtomic(path string, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("robot: encode job: %w", err)
	}

	tmp := path + ".tmp"
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("robot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("robot: rename %s: %w", tmp, err)
	}
	return nil
}
