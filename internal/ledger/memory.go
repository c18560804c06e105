package ledger

import (
	"context"
	"sync"

	"reminders/internal/domain"
)

// MemoryLedger keeps sent records in process memory for single-instance mode.
// Params: guarded record map.
// Returns: ledger implementation without external dependencies; state is lost on restart.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]domain.SentMessageRecord
}

// NewMemoryLedger creates an empty in-memory ledger.
// Params: none.
// Returns: initialized ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]domain.SentMessageRecord)}
}

// IsSent reports whether the message id has a record.
// Params: message id.
// Returns: presence flag or ErrInvalidID.
func (l *MemoryLedger) IsSent(_ context.Context, messageID string) (bool, error) {
	id, err := normalizeID(messageID)
	if err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[id]
	return ok, nil
}

// Get returns the record for one message id.
// Params: message id.
// Returns: stored record or ErrNotFound.
func (l *MemoryLedger) Get(_ context.Context, messageID string) (domain.SentMessageRecord, error) {
	id, err := normalizeID(messageID)
	if err != nil {
		return domain.SentMessageRecord{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.records[id]
	if !ok {
		return domain.SentMessageRecord{}, ErrNotFound
	}
	return record, nil
}

// MarkSent stores or refreshes one record.
// Params: record with message id and hand-off time.
// Returns: ErrInvalidID for empty ids.
func (l *MemoryLedger) MarkSent(_ context.Context, record domain.SentMessageRecord) error {
	id, err := normalizeID(record.MessageID)
	if err != nil {
		return err
	}
	record.MessageID = id
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[id] = record
	return nil
}

// UnmarkSent removes one record; absent ids are a no-op.
// Params: message id.
// Returns: ErrInvalidID for empty ids.
func (l *MemoryLedger) UnmarkSent(_ context.Context, messageID string) error {
	id, err := normalizeID(messageID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, id)
	return nil
}

// List returns all records, most recent first.
// Params: none.
// Returns: record snapshot.
func (l *MemoryLedger) List(_ context.Context) ([]domain.SentMessageRecord, error) {
	l.mu.RLock()
	out := make([]domain.SentMessageRecord, 0, len(l.records))
	for _, record := range l.records {
		out = append(out, record)
	}
	l.mu.RUnlock()
	sortRecords(out)
	return out, nil
}

// Close releases memory ledger resources.
// Params: none.
// Returns: nil.
func (l *MemoryLedger) Close() error {
	return nil
}
