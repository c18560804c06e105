package domain

import "time"

// TriggerType names one reminder condition from the rule table.
type TriggerType string

const (
	TriggerQuoteProcessed          TriggerType = "quote_processed"
	TriggerQuoteStaleReminder      TriggerType = "quote_stale_reminder"
	TriggerAppointmentConfirmation TriggerType = "appointment_confirmation"
	TriggerReminderToday           TriggerType = "reminder_today"
	TriggerReminderTomorrow        TriggerType = "reminder_tomorrow"
	TriggerNewClientCredentials    TriggerType = "new_client_credentials"
	TriggerWorkClosed              TriggerType = "work_closed"
	TriggerFeedbackRequest         TriggerType = "feedback_request"
	TriggerBirthday                TriggerType = "birthday"
)

// Priority orders compiled messages inside the pending and sent groups.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns sort rank where lower means more urgent.
// Params: none.
// Returns: 0 for high, 1 for medium, 2 for low, 3 for unknown values.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// ContextData carries entities referenced by one candidate event.
// Params: optional client, quote, and appointment records.
// Returns: data bag consumed by the message compiler.
type ContextData struct {
	Client      *Client      `json:"client,omitempty"`
	Quote       *Quote       `json:"quote,omitempty"`
	Appointment *Appointment `json:"appointment,omitempty"`
}

// CandidateEvent notes that one trigger condition holds for one entity.
// Params: trigger type, subject identity, and contextual data.
// Returns: ephemeral scan output, never persisted.
type CandidateEvent struct {
	TriggerType       TriggerType
	SubjectEntityID   string
	SubjectEntityKind EntityKind
	ContextData       ContextData
}

// CompiledMessage is final text ready for manual delivery.
// Params: deterministic id, recipient, subject label, template title, text, priority, and ledger state.
// Returns: immutable presentation item; Sent/SentAt reflect the ledger at assembly time.
type CompiledMessage struct {
	ID             string      `json:"id"`
	TriggerType    TriggerType `json:"trigger_type"`
	SubjectID      string      `json:"subject_id"`
	SubjectKind    EntityKind  `json:"subject_kind"`
	RecipientName  string      `json:"recipient_name"`
	RecipientPhone string      `json:"recipient_phone"`
	SubjectLabel   string      `json:"subject_label"`
	TemplateTitle  string      `json:"template_title"`
	Text           string      `json:"text"`
	Priority       Priority    `json:"priority"`
	Sent           bool        `json:"sent"`
	SentAt         *time.Time  `json:"sent_at,omitempty"`
}

// SentMessageRecord marks one compiled message id as handed off.
// Params: message id, hand-off timestamp, and operator label.
// Returns: persisted delivery ledger entry.
type SentMessageRecord struct {
	MessageID string    `json:"message_id" db:"message_id"`
	SentAt    time.Time `json:"sent_at" db:"sent_at"`
	SentBy    string    `json:"sent_by" db:"sent_by"`
}

// SweepResult is one batch-mode output.
// Params: run id, scan time, ordered messages, counters, and failure flags.
// Returns: list ready for presentation; with LedgerUnavailable set the sent state
// of every message is unknown and Partial is set too.
type SweepResult struct {
	RunID             string            `json:"run_id"`
	At                time.Time         `json:"at"`
	Messages          []CompiledMessage `json:"messages"`
	Pending           int               `json:"pending"`
	Sent              int               `json:"sent"`
	Partial           bool              `json:"partial"`
	LedgerUnavailable bool              `json:"ledger_unavailable"`
}
