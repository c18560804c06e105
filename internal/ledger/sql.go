package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reminders/internal/domain"

	"github.com/jmoiron/sqlx"
)

const (
	sqliteSchema = `CREATE TABLE IF NOT EXISTS sent_messages (
	message_id TEXT PRIMARY KEY,
	sent_at    TIMESTAMP NOT NULL,
	sent_by    TEXT NOT NULL DEFAULT ''
)`
	postgresSchema = `CREATE TABLE IF NOT EXISTS sent_messages (
	message_id TEXT PRIMARY KEY,
	sent_at    TIMESTAMPTZ NOT NULL,
	sent_by    TEXT NOT NULL DEFAULT ''
)`

	upsertQuery = `INSERT INTO sent_messages (message_id, sent_at, sent_by) VALUES (?, ?, ?)
ON CONFLICT (message_id) DO UPDATE SET sent_at = excluded.sent_at, sent_by = excluded.sent_by`
	existsQuery = `SELECT COUNT(1) FROM sent_messages WHERE message_id = ?`
	getQuery    = `SELECT message_id, sent_at, sent_by FROM sent_messages WHERE message_id = ?`
	deleteQuery = `DELETE FROM sent_messages WHERE message_id = ?`
	listQuery   = `SELECT message_id, sent_at, sent_by FROM sent_messages ORDER BY sent_at DESC, message_id`
)

// SQLLedger persists sent records in the sent_messages table of the workshop database.
// Params: shared sqlx handle; the ledger does not own the connection pool.
// Returns: durable ledger for sqlite and postgres drivers.
type SQLLedger struct {
	db *sqlx.DB
}

// NewSQLLedger wraps an open database handle.
// Params: sqlx handle opened with the gateway driver.
// Returns: SQL ledger.
func NewSQLLedger(db *sqlx.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

// Migrate creates the sent_messages table when missing.
// Params: context.
// Returns: DDL error.
func (l *SQLLedger) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if sqlx.BindType(l.db.DriverName()) == sqlx.DOLLAR {
		schema = postgresSchema
	}
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create sent_messages: %w", err)
	}
	return nil
}

// IsSent reports whether the message id has a row.
// Params: message id.
// Returns: presence flag or query error.
func (l *SQLLedger) IsSent(ctx context.Context, messageID string) (bool, error) {
	id, err := normalizeID(messageID)
	if err != nil {
		return false, err
	}
	var count int
	if err := l.db.GetContext(ctx, &count, l.db.Rebind(existsQuery), id); err != nil {
		return false, fmt.Errorf("check sent message: %w", err)
	}
	return count > 0, nil
}

// Get returns the row for one message id.
// Params: message id.
// Returns: record or ErrNotFound.
func (l *SQLLedger) Get(ctx context.Context, messageID string) (domain.SentMessageRecord, error) {
	id, err := normalizeID(messageID)
	if err != nil {
		return domain.SentMessageRecord{}, err
	}
	var record domain.SentMessageRecord
	if err := l.db.GetContext(ctx, &record, l.db.Rebind(getQuery), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SentMessageRecord{}, ErrNotFound
		}
		return domain.SentMessageRecord{}, fmt.Errorf("get sent message: %w", err)
	}
	return record, nil
}

// MarkSent upserts one row; repeated calls refresh sent_at.
// Params: record to store.
// Returns: exec error.
func (l *SQLLedger) MarkSent(ctx context.Context, record domain.SentMessageRecord) error {
	id, err := normalizeID(record.MessageID)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, l.db.Rebind(upsertQuery), id, record.SentAt.UTC(), record.SentBy); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// UnmarkSent deletes one row; absent ids are a no-op.
// Params: message id.
// Returns: exec error.
func (l *SQLLedger) UnmarkSent(ctx context.Context, messageID string) error {
	id, err := normalizeID(messageID)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, l.db.Rebind(deleteQuery), id); err != nil {
		return fmt.Errorf("unmark sent: %w", err)
	}
	return nil
}

// List returns all rows, most recent first.
// Params: context.
// Returns: records or query error.
func (l *SQLLedger) List(ctx context.Context) ([]domain.SentMessageRecord, error) {
	records := make([]domain.SentMessageRecord, 0)
	if err := l.db.SelectContext(ctx, &records, listQuery); err != nil {
		return nil, fmt.Errorf("list sent messages: %w", err)
	}
	return records, nil
}

// Close is a no-op; the gateway owns the database handle.
// Params: none.
// Returns: nil.
func (l *SQLLedger) Close() error {
	return nil
}
