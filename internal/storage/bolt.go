package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

var turnsBucket = []byte("turns")

// BoltLog keeps turn records in a BoltDB file, one nested bucket per
// session keyed by turn id. Unlike the JSONL log it can be queried across
// sessions.
type BoltLog struct {
	db      *bolt.DB
	session string
	log     *logger.Logger
}

var _ domain.TurnLog = (*BoltLog)(nil)

// OpenBoltLog opens (creating if needed) the database at path. Records
// without a session id are filed under session.
func OpenBoltLog(path, session string, log *logger.Logger) (*BoltLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &BoltLog{db: db, session: session, log: log}, nil
}

// Append stores rec, replacing any earlier record for the same turn.
func (b *BoltLog) Append(_ context.Context, rec *domain.TurnRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: encode turn %d: %w", rec.Turn, err)
	}
	session := rec.SessionID
	if session == "" {
		session = b.session
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(turnsBucket)
		if err != nil {
			return err
		}
		sb, err := root.CreateBucketIfNotExists([]byte(session))
		if err != nil {
			return err
		}
		return sb.Put(turnKey(rec.Turn), raw)
	})
	if err != nil {
		return fmt.Errorf("storage: put turn %d: %w", rec.Turn, err)
	}
	b.log.Debug("turn %d stored in %s", rec.Turn, b.db.Path())
	return nil
}

// Turns returns a session's records in turn order.
func (b *BoltLog) Turns(session string) ([]domain.TurnRecord, error) {
	var out []domain.TurnRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(turnsBucket)
		if root == nil {
			return nil
		}
		sb := root.Bucket([]byte(session))
		if sb == nil {
			return nil
		}
		return sb.ForEach(func(k, v []byte) error {
			var rec domain.TurnRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("turn %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Sessions lists the session ids that have at least one stored turn.
func (b *BoltLog) Sessions() ([]string, error) {
	var out []string
	err := b.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(turnsBucket)
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			if v == nil {
				out = append(out, string(k))
			}
			return nil
		})
	})
	return out, err
}

// Close releases the database file lock.
func (b *BoltLog) Close() error { return b.db.Close() }

// turnKey sorts numerically under bolt's byte ordering.
func turnKey(turn int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(turn))
	return k
}

// Mirror writes every record to a primary log and then to secondary.
// Only primary failures are returned; secondary failures are logged.
type Mirror struct {
	primary   domain.TurnLog
	secondary domain.TurnLog
	log       *logger.Logger
}

var _ domain.TurnLog = (*Mirror)(nil)

// NewMirror creates a mirrored log.
func NewMirror(primary, secondary domain.TurnLog, log *logger.Logger) *Mirror {
	return &Mirror{primary: primary, secondary: secondary, log: log}
}

func (m *Mirror) Append(ctx context.Context, rec *domain.TurnRecord) error {
	if err := m.primary.Append(ctx, rec); err != nil {
		return err
	}
	if err := m.secondary.Append(ctx, rec); err != nil {
		m.log.Warn("turn %d: secondary store: %v", rec.Turn, err)
	}
	return nil
}
