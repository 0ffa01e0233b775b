// Package domain defines the core types and interfaces for the voice chat.
// All other packages depend on domain; domain depends on nothing.
package domain

import "time"

// Role tags a history entry.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAssistant   Role = "assistant"
)

// Message is one role-tagged utterance in the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TurnStatus tracks where a turn is in its lifecycle.
type TurnStatus int

const (
	TurnNew TurnStatus = iota
	TurnTranscribed
	TurnReplied
	TurnLogged
)

// String returns a human-readable turn status.
func (s TurnStatus) String() string {
	switch s {
	case TurnNew:
		return "new"
	case TurnTranscribed:
		return "transcribed"
	case TurnReplied:
		return "replied"
	case TurnLogged:
		return "logged"
	default:
		return "unknown"
	}
}

// TurnRecord is the pending-turn slot and, once finalized, the log line.
// Pointer fields serialise as null until the phase that fills them runs.
type TurnRecord struct {
	Turn                   int        `json:"turn"`
	ParticipantText        string     `json:"participant_text"`
	AIText                 *string    `json:"ai_text"`
	ParticipantDurationSec *float64   `json:"participant_duration_sec"`
	AIDurationSec          *float64   `json:"ai_duration_sec"`
	Timestamp              time.Time  `json:"timestamp"`
	SessionID              string     `json:"session_id,omitempty"`
	InputAudio             string     `json:"input_audio,omitempty"`
	OutputAudio            string     `json:"output_audio,omitempty"`
	Status                 TurnStatus `json:"-"`
}

// TurnResult summarises a completed turn for UI callers.
type TurnResult struct {
	TurnID          int
	ParticipantText string
	ReplyText       string
	OutputPath      string // empty when no speech was rendered
	AIDurationSec   *float64
	LogErr          error // non-nil when finalize could not write the log line
}

// Skipped reports whether the turn had no usable speech.
func (r *TurnResult) Skipped() bool { return r.ParticipantText == "" }
