package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/voicechat/internal/logger"
)

var quiet = logger.New(logger.LevelOff, nil)

type call struct {
	name string
	args []string
}

func TestSayRendersThenPlays(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output_turn_001.aiff")
	var calls []call
	s := NewSay(quiet, WithSayVoice("Alex"))
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name, args})
		if name == "say" {
			os.WriteFile(args[3], []byte("FORM"), 0o644)
		}
		return nil, nil
	}

	if err := s.Render(context.Background(), "**Hi** there", out); err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected say then afplay, got %+v", calls)
	}
	want := []string{"-v", "Alex", "-o", out, "Hi there"}
	for i, a := range want {
		if calls[0].args[i] != a {
			t.Fatalf("say args = %q, want %q", calls[0].args, want)
		}
	}
	if calls[1].name != "afplay" || calls[1].args[0] != out {
		t.Fatalf("afplay call = %+v", calls[1])
	}
}

func TestSayEmptyTextIsNoop(t *testing.T) {
	s := NewSay(quiet)
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatalf("unexpected %s call", name)
		return nil, nil
	}
	if err := s.Render(context.Background(), "  ", "x.aiff"); err != nil {
		t.Fatalf("render: %v", err)
	}
}

func TestSayFailure(t *testing.T) {
	boom := errors.New("say exited 1")
	s := NewSay(quiet)
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) { return nil, boom }

	if err := s.Render(context.Background(), "hello", filepath.Join(t.TempDir(), "o.aiff")); !errors.Is(err, boom) {
		t.Fatalf("expected say error, got %v", err)
	}
}

func TestSayWithoutPlayback(t *testing.T) {
	out := filepath.Join(t.TempDir(), "o.aiff")
	n := 0
	s := NewSay(quiet, WithPlayback(false))
	s.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		n++
		os.WriteFile(out, nil, 0o644)
		return nil, nil
	}
	if err := s.Render(context.Background(), "hello", out); err != nil || n != 1 {
		t.Fatalf("err=%v calls=%d, want only the say call", err, n)
	}
}
