package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"reminders/internal/domain"
)

// maxBatchEvents bounds one array payload.
const maxBatchEvents = 4096

// DecodeEvent decodes exactly one event object.
// Params: raw JSON bytes.
// Returns: validated event or decode error; trailing tokens are rejected.
func DecodeEvent(raw []byte) (domain.EntityEvent, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return domain.EntityEvent{}, errors.New("empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	event, err := domain.DecodeEntityEventReader(decoder)
	if err != nil {
		return domain.EntityEvent{}, err
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return domain.EntityEvent{}, err
	}
	return event, nil
}

// DecodeEvents auto-detects one event object or an array of events.
// Params: raw JSON bytes.
// Returns: validated events in payload order.
func DecodeEvents(raw []byte) ([]domain.EntityEvent, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	if payload[0] != '[' {
		event, err := DecodeEvent(payload)
		if err != nil {
			return nil, err
		}
		return []domain.EntityEvent{event}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	var events []domain.EntityEvent
	if err := decoder.Decode(&events); err != nil {
		return nil, fmt.Errorf("decode event batch: %w", err)
	}
	if len(events) == 0 {
		return nil, errors.New("event batch must contain at least one event")
	}
	if len(events) > maxBatchEvents {
		return nil, fmt.Errorf("event batch has %d events, limit is %d", len(events), maxBatchEvents)
	}
	for i := range events {
		events[i].Normalize()
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("event[%d]: %w", i, err)
		}
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	return events, nil
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}
