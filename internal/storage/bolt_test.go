package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

func openTestBolt(t *testing.T) *BoltLog {
	t.Helper()
	b, err := OpenBoltLog(filepath.Join(t.TempDir(), "db", "turns.db"), "default", logger.New(logger.LevelOff, nil))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBoltLogOrdersTurnsPerSession(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	reply := "hi"
	for _, rec := range []*domain.TurnRecord{
		{Turn: 10, ParticipantText: "ten", SessionID: "s1"},
		{Turn: 2, ParticipantText: "two", AIText: &reply, SessionID: "s1"},
		{Turn: 1, ParticipantText: "other", SessionID: "s2"},
		{Turn: 1, ParticipantText: "unsessioned"},
	} {
		if err := b.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := b.Turns("s1")
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(got) != 2 || got[0].Turn != 2 || got[1].Turn != 10 {
		t.Fatalf("s1 turns = %+v", got)
	}
	if got[0].AIText == nil || *got[0].AIText != "hi" || got[1].AIText != nil {
		t.Fatalf("ai text not preserved: %+v", got)
	}

	def, err := b.Turns("default")
	if err != nil || len(def) != 1 || def[0].ParticipantText != "unsessioned" {
		t.Fatalf("default session = %+v, %v", def, err)
	}

	sessions, err := b.Sessions()
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("sessions = %v", sessions)
	}
}

func TestBoltLogUnknownSession(t *testing.T) {
	b := openTestBolt(t)
	got, err := b.Turns("nope")
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestMirror(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	ctx := context.Background()

	t.Run("secondary failure is not fatal", func(t *testing.T) {
		primary, secondary := NewMemoryLog(log), NewMemoryLog(log)
		secondary.FailOn(1, errors.New("locked"))
		m := NewMirror(primary, secondary, log)
		if err := m.Append(ctx, &domain.TurnRecord{Turn: 1}); err != nil {
			t.Fatalf("append: %v", err)
		}
		if primary.Len() != 1 || secondary.Len() != 0 {
			t.Fatalf("primary=%d secondary=%d", primary.Len(), secondary.Len())
		}
	})

	t.Run("primary failure skips secondary", func(t *testing.T) {
		primary, secondary := NewMemoryLog(log), NewMemoryLog(log)
		boom := errors.New("disk full")
		primary.FailOn(1, boom)
		m := NewMirror(primary, secondary, log)
		if err := m.Append(ctx, &domain.TurnRecord{Turn: 1}); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
		if secondary.Len() != 0 {
			t.Fatal("secondary written after primary failure")
		}
	})
}
