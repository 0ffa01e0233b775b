package domain

import "context"

// Transcriber turns raw mono float samples into text. Implementations are
// constructed once and reused across turns. Errors are fatal to the turn.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// Replier generates an assistant reply for prompt given the prior
// conversation. Failures should wrap one of the backend sentinels in
// errors.go so the coordinator can degrade them into a placeholder.
type Replier interface {
	Reply(ctx context.Context, prompt string, history []Message) (string, error)
}

// Renderer synthesizes text to outputPath and plays it. Empty text is a
// no-op. Failures are reported but never abort the turn.
type Renderer interface {
	Render(ctx context.Context, text, outputPath string) error
}

// DurationProber measures the playback length of an audio file in seconds.
type DurationProber interface {
	Duration(path string) (float64, error)
}

// TurnLog persists finalized turns. Implementations are append-only.
type TurnLog interface {
	Append(ctx context.Context, rec *TurnRecord) error
}
