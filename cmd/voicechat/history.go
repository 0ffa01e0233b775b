package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hammamikhairi/voicechat/internal/config"
	"github.com/hammamikhairi/voicechat/internal/conversation"
	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/storage"
)

// printHistory prints logged turns. A session directory is read from its
// JSONL log; otherwise session is looked up by id in TURN_DB, and an empty
// session lists the ids stored there.
func printHistory(w io.Writer, cfg config.Config, session string, log *logger.Logger) error {
	if session != "" {
		if fi, err := os.Stat(session); err == nil && fi.IsDir() {
			recs, err := storage.ReadAll(filepath.Join(session, conversation.LogFileName))
			if err != nil {
				return err
			}
			writeTurns(w, recs)
			return nil
		}
	}

	if cfg.TurnDB == "" {
		return errors.New("history: -session must be a session directory when TURN_DB is unset")
	}
	db, err := storage.OpenBoltLog(cfg.TurnDB, "", log)
	if err != nil {
		return err
	}
	defer db.Close()

	if session == "" {
		ids, err := db.Sessions()
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		for _, id := range ids {
			recs, err := db.Turns(id)
			if err != nil {
				return fmt.Errorf("history: session %s: %w", id, err)
			}
			fmt.Fprintf(w, "%s  %d turn(s)\n", id, len(recs))
		}
		return nil
	}

	recs, err := db.Turns(session)
	if err != nil {
		return fmt.Errorf("history: session %s: %w", session, err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("history: no turns for session %q", session)
	}
	writeTurns(w, recs)
	return nil
}

func writeTurns(w io.Writer, recs []domain.TurnRecord) {
	for _, r := range recs {
		ai := ""
		if r.AIText != nil {
			ai = *r.AIText
		}
		fmt.Fprintf(w, "[%d] You: %s\n    AI:  %s\n", r.Turn, r.ParticipantText, ai)
	}
}
