// Package conversation runs the phased turn protocol: transcribe the
// participant, ask for a reply, then log the finished turn once the caller
// has spoken it.
//
// A Coordinator holds a single pending-turn slot and the running history.
// It does no locking: callers must not start a turn until the previous one
// has been finalized (see package pipeline for the gate).
package conversation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/wavfile"
)

// HistoryPolicy decides which turns feed the context of later replies.
type HistoryPolicy int

const (
	// HistoryStrict records the participant line for every turn with speech
	// and the assistant line only when a real reply was produced. Skipped
	// turns add nothing.
	HistoryStrict HistoryPolicy = iota
	// HistoryPairs appends a participant/assistant pair for every turn,
	// including empty transcripts and placeholder replies.
	HistoryPairs
)

// String returns the policy name used in config.
func (p HistoryPolicy) String() string {
	if p == HistoryPairs {
		return "pairs"
	}
	return "strict"
}

// ParseHistoryPolicy maps "strict" or "pairs" to a policy.
func ParseHistoryPolicy(s string) (HistoryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return HistoryStrict, nil
	case "pairs", "loose":
		return HistoryPairs, nil
	default:
		return HistoryStrict, fmt.Errorf("unknown history policy %q", s)
	}
}

const (
	DefaultSampleRate   = 16000
	DefaultMinUtterance = 200 * time.Millisecond
	DefaultOutputExt    = ".aiff"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSampleRate sets the rate of the samples passed to Transcribe.
func WithSampleRate(rate int) Option {
	return func(c *Coordinator) {
		if rate > 0 {
			c.sampleRate = rate
		}
	}
}

// WithMinUtterance sets the shortest recording that is transcribed. Zero
// disables the threshold; empty input is still skipped.
func WithMinUtterance(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.minUtterance = d
		}
	}
}

// WithHistoryPolicy selects how turns are recorded in the history.
func WithHistoryPolicy(p HistoryPolicy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithOutputExt sets the extension of synthesized reply files, e.g. ".wav".
func WithOutputExt(ext string) Option {
	return func(c *Coordinator) {
		if ext != "" {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			c.outputExt = ext
		}
	}
}

// WithClock overrides the time source used for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// Coordinator owns per-session turn state.
type Coordinator struct {
	session *Session
	asr     domain.Transcriber
	llm     domain.Replier
	turnLog domain.TurnLog
	log     *logger.Logger

	sampleRate   int
	minUtterance time.Duration
	policy       HistoryPolicy
	outputExt    string
	now          func() time.Time

	turnCounter int
	history     []domain.Message
	pending     *domain.TurnRecord
}

// New creates a coordinator for session. The collaborators are used for
// every turn and are never swapped.
func New(session *Session, asr domain.Transcriber, llm domain.Replier, turnLog domain.TurnLog, log *logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:      session,
		asr:          asr,
		llm:          llm,
		turnLog:      turnLog,
		log:          log,
		sampleRate:   DefaultSampleRate,
		minUtterance: DefaultMinUtterance,
		policy:       HistoryStrict,
		outputExt:    DefaultOutputExt,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	log.Debug("coordinator ready: session=%s rate=%d min=%s history=%s ext=%s",
		session.Dir, c.sampleRate, c.minUtterance, c.policy, c.outputExt)
	return c
}

// Transcribe starts a new turn from captured samples and returns its id and
// the participant text. Recordings that are empty or shorter than the
// minimum utterance are not saved or transcribed and yield "". Only
// failures to save or transcribe the audio are returned.
func (c *Coordinator) Transcribe(ctx context.Context, samples []float32) (int, string, error) {
	c.turnCounter++
	id := c.turnCounter

	if c.pending != nil {
		c.log.Warn("turn %d starting while turn %d (%s) was never finalized; dropping it",
			id, c.pending.Turn, c.pending.Status)
		c.pending = nil
	}

	dur := float64(len(samples)) / float64(c.sampleRate)
	rec := &domain.TurnRecord{
		Turn:                   id,
		ParticipantDurationSec: &dur,
		SessionID:              c.session.ID,
		Status:                 domain.TurnTranscribed,
	}

	if len(samples) == 0 || dur < c.minUtterance.Seconds() {
		c.log.Info("turn %d: %.3fs of audio, below %s, skipping transcription", id, dur, c.minUtterance)
		c.pending = rec
		return id, "", nil
	}

	path := c.session.InputPath(id)
	if err := wavfile.Write(path, samples, c.sampleRate); err != nil {
		return id, "", fmt.Errorf("conversation: save turn %d audio: %w", id, err)
	}
	c.log.Debug("turn %d: saved %.2fs of audio to %s", id, dur, path)

	start := time.Now()
	text, err := c.asr.Transcribe(ctx, samples, c.sampleRate)
	if err != nil {
		return id, "", fmt.Errorf("conversation: transcribe turn %d: %w", id, err)
	}
	text = strings.TrimSpace(text)
	c.log.Info("turn %d: transcribed in %s: %q", id, time.Since(start).Round(time.Millisecond), text)

	rec.ParticipantText = text
	rec.InputAudio = path
	c.pending = rec
	return id, text, nil
}

// Reply produces the assistant's answer for turn id. It never fails: a
// backend failure becomes a placeholder reply with an empty output path,
// meaning nothing should be spoken. A non-empty output path is where the
// caller should render the reply.
func (c *Coordinator) Reply(ctx context.Context, id int, text string) (string, string) {
	var reply, outputPath string

	if text == "" {
		reply = LineNoSpeech
	} else {
		start := time.Now()
		got, err := c.llm.Reply(ctx, text, c.History())
		got = strings.TrimSpace(got)
		switch {
		case err != nil:
			reply = replyPlaceholder(err)
			c.log.Warn("turn %d: reply failed after %s: %v", id, time.Since(start).Round(time.Millisecond), err)
		case got == "":
			reply = LineError
			c.log.Warn("turn %d: backend returned an empty reply", id)
		default:
			reply = got
			outputPath = c.session.OutputPath(id, c.outputExt)
			c.log.Info("turn %d: reply in %s (%d chars)", id, time.Since(start).Round(time.Millisecond), len(reply))
		}
	}

	c.record(text, reply, outputPath != "")

	if c.pending != nil && c.pending.Turn == id {
		c.pending.AIText = &reply
		c.pending.OutputAudio = outputPath
		c.pending.Status = domain.TurnReplied
	} else {
		if c.pending != nil {
			c.log.Warn("reply for turn %d but turn %d is pending; replacing it", id, c.pending.Turn)
		} else {
			c.log.Warn("reply for turn %d with no pending turn; recovering", id)
		}
		c.pending = &domain.TurnRecord{
			Turn:            id,
			ParticipantText: text,
			AIText:          &reply,
			SessionID:       c.session.ID,
			OutputAudio:     outputPath,
			Status:          domain.TurnReplied,
		}
	}
	return reply, outputPath
}

// record appends the exchange to the history according to the policy.
func (c *Coordinator) record(text, reply string, produced bool) {
	switch c.policy {
	case HistoryPairs:
		c.history = append(c.history,
			domain.Message{Role: domain.RoleParticipant, Content: text},
			domain.Message{Role: domain.RoleAssistant, Content: reply})
	default:
		if text != "" {
			c.history = append(c.history, domain.Message{Role: domain.RoleParticipant, Content: text})
		}
		if produced {
			c.history = append(c.history, domain.Message{Role: domain.RoleAssistant, Content: reply})
		}
	}
}

// Finalize writes the pending turn to the log and clears the slot. aiDur is
// nil when nothing was spoken or its length is unknown. The output path is
// only recorded if the reply audio was actually written. Calling it for a
// turn that is not pending, or before Reply, writes nothing.
func (c *Coordinator) Finalize(ctx context.Context, id int, aiDur *float64) error {
	switch {
	case c.pending == nil:
		c.log.Warn("finalize turn %d: no pending turn, not logging", id)
		return fmt.Errorf("conversation: finalize turn %d: %w", id, domain.ErrNoPendingTurn)
	case c.pending.Turn != id:
		c.log.Warn("finalize turn %d: pending turn is %d, not logging", id, c.pending.Turn)
		return fmt.Errorf("conversation: finalize turn %d (pending %d): %w", id, c.pending.Turn, domain.ErrTurnMismatch)
	case c.pending.Status != domain.TurnReplied:
		c.log.Warn("finalize turn %d: turn is %s, not replied yet", id, c.pending.Status)
		return fmt.Errorf("conversation: finalize turn %d: %w", id, domain.ErrTurnOutOfOrder)
	}

	rec := c.pending
	c.pending = nil

	if aiDur != nil {
		d := *aiDur
		rec.AIDurationSec = &d
	}
	rec.Timestamp = c.now()
	if rec.OutputAudio != "" {
		if _, err := os.Stat(rec.OutputAudio); err != nil {
			c.log.Debug("turn %d: no reply audio at %s, not recording it", id, rec.OutputAudio)
			rec.OutputAudio = ""
		}
	}

	if err := c.turnLog.Append(ctx, rec); err != nil {
		c.log.Error("finalize turn %d: %v", id, err)
		return fmt.Errorf("conversation: log turn %d: %w", id, err)
	}
	rec.Status = domain.TurnLogged
	c.log.Debug("turn %d logged", id)
	return nil
}

// Abandon drops pending turn id without logging it, for callers that gave
// up on a turn before finalizing. The history keeps whatever Reply added.
func (c *Coordinator) Abandon(id int) error {
	switch {
	case c.pending == nil:
		return fmt.Errorf("conversation: abandon turn %d: %w", id, domain.ErrNoPendingTurn)
	case c.pending.Turn != id:
		return fmt.Errorf("conversation: abandon turn %d (pending %d): %w", id, c.pending.Turn, domain.ErrTurnMismatch)
	}
	c.log.Warn("turn %d abandoned while %s, not logging", id, c.pending.Status)
	c.pending = nil
	return nil
}

// Pending returns a copy of the pending turn, if any.
func (c *Coordinator) Pending() (domain.TurnRecord, bool) {
	if c.pending == nil {
		return domain.TurnRecord{}, false
	}
	return *c.pending, true
}

// History returns a copy of the conversation so far.
func (c *Coordinator) History() []domain.Message {
	out := make([]domain.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Session returns the session this coordinator writes into.
func (c *Coordinator) Session() *Session { return c.session }

// SampleRate returns the rate Transcribe expects.
func (c *Coordinator) SampleRate() int { return c.sampleRate }
