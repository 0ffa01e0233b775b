package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/voicechat/internal/conversation"
	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/pipeline"
	"github.com/hammamikhairi/voicechat/internal/storage"
	"github.com/hammamikhairi/voicechat/internal/tts"
)

var quiet = logger.New(logger.LevelOff, nil)

type fakeCapture struct {
	armed  bool
	starts int
}

func (f *fakeCapture) Start() {
	f.armed = true
	f.starts++
}

func (f *fakeCapture) Armed() bool { return f.armed }

func (f *fakeCapture) Stop() []float32 {
	f.armed = false
	return make([]float32, 8000)
}

type scriptedASR struct {
	texts []string
	err   error
}

func (s *scriptedASR) Transcribe(ctx context.Context, samples []float32, rate int) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	t := s.texts[0]
	s.texts = s.texts[1:]
	return t, nil
}

type echoLLM struct{}

func (echoLLM) Reply(ctx context.Context, prompt string, h []domain.Message) (string, error) {
	return "you said " + prompt, nil
}

func newLoopRunner(t *testing.T, asr domain.Transcriber) (*pipeline.Runner, *fakeCapture, *storage.MemoryLog) {
	t.Helper()
	sess, err := conversation.OpenSession(t.TempDir(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	rec := &fakeCapture{}
	store := storage.NewMemoryLog(quiet)
	coord := conversation.New(sess, asr, echoLLM{}, store, quiet)
	return pipeline.New(coord, rec, tts.NewNoOp(quiet), nil, quiet), rec, store
}

func TestLoopRunsRequestedTurns(t *testing.T) {
	r, rec, store := newLoopRunner(t, &scriptedASR{texts: []string{"hello", "bye"}})
	var out bytes.Buffer

	err := runLoop(context.Background(), 2, rec, r, strings.NewReader("\n\n\n\n"), &out)
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if rec.starts != 2 {
		t.Fatalf("starts = %d, want 2", rec.starts)
	}
	for _, want := range []string{"Turn 1/2", "You: hello", "AI:  you said hello", "You: bye", "Conversation ended."} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if got := len(store.Records()); got != 2 {
		t.Fatalf("logged %d turns, want 2", got)
	}
}

func TestLoopStopsAtEOF(t *testing.T) {
	r, rec, store := newLoopRunner(t, &scriptedASR{texts: []string{"hello"}})
	var out bytes.Buffer

	// One Enter starts recording, then input ends.
	if err := runLoop(context.Background(), 3, rec, r, strings.NewReader("\n"), &out); err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if rec.armed {
		t.Fatal("capture left armed")
	}
	if store.Len() != 0 {
		t.Fatalf("logged %d turns, want 0", store.Len())
	}
}

func TestLoopReportsTranscriptionFailure(t *testing.T) {
	r, rec, store := newLoopRunner(t, &scriptedASR{err: errors.New("whisper missing")})
	var out bytes.Buffer

	if err := runLoop(context.Background(), 1, rec, r, strings.NewReader("\n\n"), &out); err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if !strings.Contains(out.String(), "transcription failed") {
		t.Fatalf("output:\n%s", out.String())
	}
	if store.Len() != 0 {
		t.Fatal("failed turn should not be logged")
	}
}

func TestLoopShowsNoSpeechForEmptyTranscript(t *testing.T) {
	r, rec, _ := newLoopRunner(t, &scriptedASR{texts: []string{""}})
	var out bytes.Buffer

	if err := runLoop(context.Background(), 1, rec, r, strings.NewReader("\n\n"), &out); err != nil {
		t.Fatalf("runLoop: %v", err)
	}
	if !strings.Contains(out.String(), "You: "+conversation.LineNoSpeech) {
		t.Fatalf("output:\n%s", out.String())
	}
}
