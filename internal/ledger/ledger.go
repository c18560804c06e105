package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"

	"reminders/internal/domain"
)

var (
	// ErrNotFound indicates the message id has no sent record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID indicates an empty message id.
	ErrInvalidID = errors.New("message id is required")
)

// Ledger tracks which compiled messages were handed off for delivery.
// Params: idempotent mark/unmark operations keyed by message id.
// Returns: backend persistence behavior with read-after-write consistency for one caller.
type Ledger interface {
	IsSent(ctx context.Context, messageID string) (bool, error)
	Get(ctx context.Context, messageID string) (domain.SentMessageRecord, error)
	MarkSent(ctx context.Context, record domain.SentMessageRecord) error
	UnmarkSent(ctx context.Context, messageID string) error
	List(ctx context.Context) ([]domain.SentMessageRecord, error)
	Close() error
}

func normalizeID(messageID string) (string, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return "", ErrInvalidID
	}
	return messageID, nil
}

// sortRecords orders records by most recent hand-off first, then by id.
func sortRecords(records []domain.SentMessageRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].SentAt.Equal(records[j].SentAt) {
			return records[i].SentAt.After(records[j].SentAt)
		}
		return records[i].MessageID < records[j].MessageID
	})
}
