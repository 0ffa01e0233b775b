// Package storage provides turn log implementations.
package storage

import (
	"context"
	"sync"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

// Compile-time interface check.
var _ domain.TurnLog = (*MemoryLog)(nil)

// MemoryLog is an in-memory turn log. Safe for concurrent access.
type MemoryLog struct {
	mu      sync.RWMutex
	records []domain.TurnRecord
	failOn  map[int]error
	log     *logger.Logger
}

// NewMemoryLog creates an empty in-memory turn log.
func NewMemoryLog(log *logger.Logger) *MemoryLog {
	return &MemoryLog{log: log}
}

// Append stores a copy of rec.
func (m *MemoryLog) Append(ctx context.Context, rec *domain.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[rec.Turn]; ok {
		m.log.Debug("append turn %d: injected failure", rec.Turn)
		return err
	}
	m.log.Debug("appending turn %d (status=%s)", rec.Turn, rec.Status)
	m.records = append(m.records, cloneRecord(rec))
	return nil
}

// FailOn makes Append return err for the given turn id. Used to exercise
// callers' handling of a failed write.
func (m *MemoryLog) FailOn(turn int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == nil {
		m.failOn = make(map[int]error)
	}
	m.failOn[turn] = err
}

// Records returns a copy of everything appended so far, in order.
func (m *MemoryLog) Records() []domain.TurnRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.TurnRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of appended records.
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func cloneRecord(rec *domain.TurnRecord) domain.TurnRecord {
	c := *rec
	if rec.AIText != nil {
		v := *rec.AIText
		c.AIText = &v
	}
	if rec.ParticipantDurationSec != nil {
		v := *rec.ParticipantDurationSec
		c.ParticipantDurationSec = &v
	}
	if rec.AIDurationSec != nil {
		v := *rec.AIDurationSec
		c.AIDurationSec = &v
	}
	return c
}
