package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrInvalidEvent indicates a point-mode event that failed validation.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrUnknownTransition indicates an event whose transition has no trigger.
	ErrUnknownTransition = errors.New("unknown transition")
	// ErrNotApplicable indicates a known trigger that produced no message.
	ErrNotApplicable = errors.New("no message applies")
)

// EventKind identifies one point-mode state transition.
// Params: constants for supported transitions.
// Returns: normalized event kind used by the orchestrator lookup.
type EventKind string

const (
	// EventQuoteStatusChanged reports a quote moving between statuses.
	EventQuoteStatusChanged EventKind = "quote_status_changed"
	// EventClientCreated reports a newly registered client.
	EventClientCreated EventKind = "client_created"
)

// EntityEvent is one explicit state transition observed elsewhere in the application.
// Params: kind, subject id, previous/next status, and optional observation time.
// Returns: validated point-mode input.
type EntityEvent struct {
	Kind           EventKind `json:"kind"`
	SubjectID      string    `json:"subject_id"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Status         string    `json:"status,omitempty"`
	At             time.Time `json:"at,omitempty"`
}

// DecodeEntityEvent decodes and validates one event payload.
// Params: JSON document bytes.
// Returns: validated event or decode/validation error.
func DecodeEntityEvent(raw []byte) (EntityEvent, error) {
	var event EntityEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return EntityEvent{}, fmt.Errorf("decode event: %w", err)
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		return EntityEvent{}, err
	}
	return event, nil
}

// DecodeEntityEventReader decodes and validates one event payload from stream.
// Params: decoder positioned on one JSON object.
// Returns: validated event or decode/validation error.
func DecodeEntityEventReader(reader *json.Decoder) (EntityEvent, error) {
	var event EntityEvent
	if err := reader.Decode(&event); err != nil {
		return EntityEvent{}, fmt.Errorf("decode event: %w", err)
	}
	event.Normalize()
	if err := event.Validate(); err != nil {
		return EntityEvent{}, err
	}
	return event, nil
}

// Normalize lower-cases statuses and trims identifiers in place.
// Params: none.
// Returns: none.
func (e *EntityEvent) Normalize() {
	e.Kind = EventKind(strings.ToLower(strings.TrimSpace(string(e.Kind))))
	e.SubjectID = strings.TrimSpace(e.SubjectID)
	e.PreviousStatus = strings.ToLower(strings.TrimSpace(e.PreviousStatus))
	e.Status = strings.ToLower(strings.TrimSpace(e.Status))
}

// Validate checks the event against the point-mode contract.
// Params: event fields parsed from transport.
// Returns: validation error when required fields are missing.
func (e EntityEvent) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Kind, validation.Required, validation.In(EventQuoteStatusChanged, EventClientCreated)),
		validation.Field(&e.SubjectID, validation.Required, validation.Length(1, 128)),
		validation.Field(&e.Status, validation.When(e.Kind == EventQuoteStatusChanged, validation.Required)),
	)
	if err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if e.Kind == EventQuoteStatusChanged && e.PreviousStatus == e.Status {
		return errors.New("invalid event: status did not change")
	}
	return nil
}
