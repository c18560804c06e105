package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"reminders/internal/config"
	"reminders/internal/domain"

	"github.com/nats-io/nats.go"
)

const encodedKeyPrefix = "b64."

var validKVKey = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

// NATSLedger persists sent records in one JetStream KV bucket.
// Params: NATS connection and KV bucket handle.
// Returns: KV-backed ledger shared by every service instance.
type NATSLedger struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSLedger opens or creates the ledger bucket.
// Params: NATS ledger settings from config.
// Returns: initialized ledger or setup error.
func NewNATSLedger(settings config.NATSLedgerConfig) (*NATSLedger, error) {
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		if !settings.AllowCreateBucket {
			nc.Close()
			return nil, fmt.Errorf("open ledger bucket %q: %w", settings.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "sent reminder messages",
			History:     1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create ledger bucket %q: %w", settings.Bucket, err)
		}
	}

	return &NATSLedger{nc: nc, kv: kv}, nil
}

// kvKey maps a message id onto the KV key alphabet.
// Params: message id.
// Returns: the id itself when valid, otherwise a base64url form behind a fixed prefix.
func kvKey(messageID string) string {
	if validKVKey.MatchString(messageID) && !strings.HasPrefix(messageID, encodedKeyPrefix) {
		return messageID
	}
	return encodedKeyPrefix + base64.RawURLEncoding.EncodeToString([]byte(messageID))
}

// IsSent checks whether the key exists.
// Params: message id.
// Returns: presence flag or KV error.
func (l *NATSLedger) IsSent(ctx context.Context, messageID string) (bool, error) {
	if _, err := l.Get(ctx, messageID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Get reads one record.
// Params: message id.
// Returns: record or ErrNotFound.
func (l *NATSLedger) Get(_ context.Context, messageID string) (domain.SentMessageRecord, error) {
	id, err := normalizeID(messageID)
	if err != nil {
		return domain.SentMessageRecord{}, err
	}
	entry, err := l.kv.Get(kvKey(id))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return domain.SentMessageRecord{}, ErrNotFound
		}
		return domain.SentMessageRecord{}, fmt.Errorf("get record: %w", err)
	}
	var record domain.SentMessageRecord
	if err := json.Unmarshal(entry.Value(), &record); err != nil {
		return domain.SentMessageRecord{}, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

// MarkSent writes one record unconditionally.
// Params: record to store.
// Returns: encode or put error.
func (l *NATSLedger) MarkSent(_ context.Context, record domain.SentMessageRecord) error {
	id, err := normalizeID(record.MessageID)
	if err != nil {
		return err
	}
	record.MessageID = id
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if _, err := l.kv.Put(kvKey(id), body); err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// UnmarkSent purges one key; absent keys are a no-op.
// Params: message id.
// Returns: purge error.
func (l *NATSLedger) UnmarkSent(_ context.Context, messageID string) error {
	id, err := normalizeID(messageID)
	if err != nil {
		return err
	}
	if err := l.kv.Purge(kvKey(id)); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("purge record: %w", err)
	}
	return nil
}

// List reads every live key in the bucket.
// Params: context.
// Returns: records, most recent first.
func (l *NATSLedger) List(_ context.Context) ([]domain.SentMessageRecord, error) {
	keys, err := l.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return []domain.SentMessageRecord{}, nil
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}
	out := make([]domain.SentMessageRecord, 0, len(keys))
	for _, key := range keys {
		entry, err := l.kv.Get(key)
		if err != nil {
			if errors.Is(err, nats.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get record %q: %w", key, err)
		}
		var record domain.SentMessageRecord
		if err := json.Unmarshal(entry.Value(), &record); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", key, err)
		}
		out = append(out, record)
	}
	sortRecords(out)
	return out, nil
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (l *NATSLedger) Close() error {
	l.nc.Close()
	return nil
}
