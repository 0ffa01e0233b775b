// Package pipeline drives whole turns: it gates push-to-talk input so only
// one turn runs at a time, runs the conversation phases, speaks the reply
// and finalizes the log line. UI callers get the turn's progress as a
// stream of events; the synchronous loop calls Run directly.
package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

// ErrAlreadyListening is returned by Begin when capture is already armed.
var ErrAlreadyListening = errors.New("already listening")

// Capture is the push-to-talk input.
type Capture interface {
	Start()
	Stop() []float32
	Armed() bool
}

// Turns runs the phased turn protocol.
type Turns interface {
	Transcribe(ctx context.Context, samples []float32) (int, string, error)
	Reply(ctx context.Context, id int, text string) (string, string)
	Finalize(ctx context.Context, id int, aiDur *float64) error
}

// EventKind identifies a step of a running turn.
type EventKind int

const (
	EventTranscribed EventKind = iota
	EventReplied
	EventSpoken
	EventDone
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventTranscribed:
		return "transcribed"
	case EventReplied:
		return "replied"
	case EventSpoken:
		return "spoken"
	case EventDone:
		return "done"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports turn progress. Fields are filled as the turn advances.
type Event struct {
	Kind       EventKind
	TurnID     int
	Text       string
	Reply      string
	OutputPath string
	Result     *domain.TurnResult // EventDone only
	Err        error              // EventFailed only
}

// Runner owns the "turn in flight" gate.
type Runner struct {
	turns    Turns
	capture  Capture
	renderer domain.Renderer
	prober   domain.DurationProber
	log      *logger.Logger

	mu       sync.Mutex
	inFlight atomic.Bool
}

// New creates a runner. prober may be nil, in which case spoken turns are
// logged without an AI duration.
func New(turns Turns, capture Capture, renderer domain.Renderer, prober domain.DurationProber, log *logger.Logger) *Runner {
	return &Runner{turns: turns, capture: capture, renderer: renderer, prober: prober, log: log}
}

// InFlight reports whether a turn is being processed.
func (r *Runner) InFlight() bool { return r.inFlight.Load() }

// Listening reports whether capture is armed.
func (r *Runner) Listening() bool { return r.capture.Armed() }

// Begin arms capture for a new turn.
func (r *Runner) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight.Load() {
		return domain.ErrTurnInFlight
	}
	if r.capture.Armed() {
		return ErrAlreadyListening
	}
	r.capture.Start()
	r.log.Debug("listening")
	return nil
}

// End stops capture and processes the recording in the background. The
// returned channel yields the turn's events and is closed once the gate
// has been released.
func (r *Runner) End(ctx context.Context) (<-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.capture.Armed() {
		return nil, domain.ErrNotListening
	}
	samples := r.capture.Stop()
	r.inFlight.Store(true)

	events := make(chan Event, 8)
	go func() {
		defer close(events)
		defer r.inFlight.Store(false)
		r.Run(ctx, samples, func(e Event) { events <- e })
	}()
	return events, nil
}

// Run processes one recording synchronously. Only a transcription failure
// is returned; every other failure degrades the turn and it still gets
// logged.
func (r *Runner) Run(ctx context.Context, samples []float32, emit func(Event)) (*domain.TurnResult, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	id, text, err := r.turns.Transcribe(ctx, samples)
	if err != nil {
		r.log.Error("turn %d: %v", id, err)
		emit(Event{Kind: EventFailed, TurnID: id, Err: err})
		return nil, err
	}
	emit(Event{Kind: EventTranscribed, TurnID: id, Text: text})

	reply, out := r.turns.Reply(ctx, id, text)
	emit(Event{Kind: EventReplied, TurnID: id, Text: text, Reply: reply, OutputPath: out})

	res := &domain.TurnResult{TurnID: id, ParticipantText: text, ReplyText: reply, OutputPath: out}
	if out != "" {
		start := time.Now()
		if err := r.renderer.Render(ctx, reply, out); err != nil {
			r.log.Warn("turn %d: speech failed: %v", id, err)
			res.OutputPath = ""
		} else {
			res.AIDurationSec = r.probe(out)
			r.log.Debug("turn %d: spoke in %s", id, time.Since(start).Round(time.Millisecond))
		}
		emit(Event{Kind: EventSpoken, TurnID: id, Text: text, Reply: reply, OutputPath: out})
	}

	res.LogErr = r.turns.Finalize(ctx, id, res.AIDurationSec)
	emit(Event{Kind: EventDone, TurnID: id, Text: text, Reply: reply, OutputPath: out, Result: res})
	return res, nil
}

// probe returns the rendered file's length, or nil when unknown.
func (r *Runner) probe(path string) *float64 {
	if r.prober == nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		r.log.Debug("no rendered audio at %s", path)
		return nil
	}
	d, err := r.prober.Duration(path)
	if err != nil {
		r.log.Warn("could not measure %s: %v", path, err)
		return nil
	}
	return &d
}
