package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reminders/internal/config"
	"reminders/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisLedger stores sent records as fields of one Redis hash.
// Params: redis client and hash key.
// Returns: shared ledger for deployments that already run Redis.
type RedisLedger struct {
	client *redis.Client
	key    string
}

// NewRedisLedger connects and pings Redis.
// Params: context for the initial ping and Redis settings.
// Returns: ledger or connection error.
func NewRedisLedger(ctx context.Context, settings config.RedisLedgerConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     settings.Addr,
		Password: settings.Password,
		DB:       settings.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", settings.Addr, err)
	}
	return &RedisLedger{client: client, key: settings.Key}, nil
}

// IsSent checks hash field presence.
// Params: message id.
// Returns: presence flag or redis error.
func (l *RedisLedger) IsSent(ctx context.Context, messageID string) (bool, error) {
	id, err := normalizeID(messageID)
	if err != nil {
		return false, err
	}
	ok, err := l.client.HExists(ctx, l.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("hexists: %w", err)
	}
	return ok, nil
}

// Get reads one hash field.
// Params: message id.
// Returns: record or ErrNotFound.
func (l *RedisLedger) Get(ctx context.Context, messageID string) (domain.SentMessageRecord, error) {
	id, err := normalizeID(messageID)
	if err != nil {
		return domain.SentMessageRecord{}, err
	}
	raw, err := l.client.HGet(ctx, l.key, id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.SentMessageRecord{}, ErrNotFound
		}
		return domain.SentMessageRecord{}, fmt.Errorf("hget: %w", err)
	}
	var record domain.SentMessageRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.SentMessageRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

// MarkSent sets one hash field.
// Params: record to store.
// Returns: encode or redis error.
func (l *RedisLedger) MarkSent(ctx context.Context, record domain.SentMessageRecord) error {
	id, err := normalizeID(record.MessageID)
	if err != nil {
		return err
	}
	record.MessageID = id
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := l.client.HSet(ctx, l.key, id, body).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}

// UnmarkSent deletes one hash field; absent fields are a no-op.
// Params: message id.
// Returns: redis error.
func (l *RedisLedger) UnmarkSent(ctx context.Context, messageID string) error {
	id, err := normalizeID(messageID)
	if err != nil {
		return err
	}
	if err := l.client.HDel(ctx, l.key, id).Err(); err != nil {
		return fmt.Errorf("hdel: %w", err)
	}
	return nil
}

// List reads the whole hash.
// Params: context.
// Returns: records, most recent first.
func (l *RedisLedger) List(ctx context.Context) ([]domain.SentMessageRecord, error) {
	fields, err := l.client.HGetAll(ctx, l.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}
	out := make([]domain.SentMessageRecord, 0, len(fields))
	for field, raw := range fields {
		var record domain.SentMessageRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", field, err)
		}
		out = append(out, record)
	}
	sortRecords(out)
	return out, nil
}

// Close closes the redis client.
// Params: none.
// Returns: close error.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
