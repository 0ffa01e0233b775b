package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hammamikhairi/voicechat/internal/config"
	"github.com/hammamikhairi/voicechat/internal/conversation"
	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/storage"
)

func TestHistoryFromSessionDir(t *testing.T) {
	dir := t.TempDir()
	fl := storage.NewFileLog(filepath.Join(dir, conversation.LogFileName), quiet)
	reply := "hello human"
	if err := fl.Append(context.Background(), &domain.TurnRecord{Turn: 1, ParticipantText: "hello robot", AIText: &reply}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := printHistory(&out, config.Defaults(), dir, quiet); err != nil {
		t.Fatalf("printHistory: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "[1] You: hello robot") || !strings.Contains(got, "AI:  hello human") {
		t.Fatalf("output:\n%s", got)
	}
}

func TestHistoryFromTurnDB(t *testing.T) {
	cfg := config.Defaults()
	cfg.TurnDB = filepath.Join(t.TempDir(), "turns.db")

	db, err := storage.OpenBoltLog(cfg.TurnDB, "", quiet)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, rec := range []*domain.TurnRecord{
		{Turn: 1, ParticipantText: "one", SessionID: "s1"},
		{Turn: 2, ParticipantText: "two", SessionID: "s1"},
		{Turn: 1, ParticipantText: "other", SessionID: "s2"},
	} {
		if err := db.Append(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	var out bytes.Buffer
	if err := printHistory(&out, cfg, "", quiet); err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "s1  2 turn(s)") || !strings.Contains(got, "s2  1 turn(s)") {
		t.Fatalf("listing:\n%s", got)
	}

	out.Reset()
	if err := printHistory(&out, cfg, "s1", quiet); err != nil {
		t.Fatalf("session: %v", err)
	}
	if got := out.String(); !strings.Contains(got, "[1] You: one") || !strings.Contains(got, "[2] You: two") {
		t.Fatalf("session turns:\n%s", got)
	}

	if err := printHistory(&out, cfg, "missing", quiet); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestHistoryNeedsSource(t *testing.T) {
	if err := printHistory(&bytes.Buffer{}, config.Defaults(), "", quiet); err == nil {
		t.Fatal("expected error without a session dir or TURN_DB")
	}
}
