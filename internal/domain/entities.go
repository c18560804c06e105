package domain

import (
	"strings"
	"time"
)

// EntityKind names one business entity type read by the reminder engine.
// Params: client/quote/appointment constants.
// Returns: subject kind used by rules and candidate events.
type EntityKind string

const (
	// EntityClient identifies workshop customers.
	EntityClient EntityKind = "client"
	// EntityQuote identifies repair quotes.
	EntityQuote EntityKind = "quote"
	// EntityAppointment identifies workshop appointments.
	EntityAppointment EntityKind = "appointment"
)

// Quote status values stored by the workshop application.
const (
	QuoteStatusDraft     = "draft"
	QuoteStatusSent      = "sent"
	QuoteStatusAccepted  = "accepted"
	QuoteStatusRejected  = "rejected"
	QuoteStatusCompleted = "completed"
)

// Appointment status values stored by the workshop application.
const (
	AppointmentStatusScheduled = "scheduled"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusCancelled = "cancelled"
)

// Client is one workshop customer.
// Params: contact data, credentials, optional birth date, and audit timestamps.
// Returns: read-only record owned by the data store.
type Client struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Email     string     `json:"email"`
	Password  string     `json:"password,omitempty"`
	Address   string     `json:"address"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FirstName returns the part of the full name before the first space.
// Params: none.
// Returns: first name or the whole trimmed name when it has no space.
func (c Client) FirstName() string {
	first, _ := SplitName(c.Name)
	return first
}

// LastName returns the part of the full name after the first space.
// Params: none.
// Returns: last name or empty string.
func (c Client) LastName() string {
	_, last := SplitName(c.Name)
	return last
}

// SplitName splits a full name on its first space.
// Params: full name string.
// Returns: first and last name; last is empty when no space exists.
func SplitName(full string) (string, string) {
	trimmed := strings.TrimSpace(full)
	first, last, found := strings.Cut(trimmed, " ")
	if !found {
		return trimmed, ""
	}
	return first, strings.TrimSpace(last)
}

// Quote is one repair estimate.
// Params: identity, linked client, vehicle data, lifecycle status, and timestamps.
// Returns: read-only record owned by the data store.
type Quote struct {
	ID           string    `json:"id"`
	Number       string    `json:"number"`
	ClientID     string    `json:"client_id"`
	Plate        string    `json:"plate"`
	VehicleModel string    `json:"vehicle_model"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Appointment is one workshop booking.
// Params: identity, client/quote links, vehicle data, calendar day, slot time, and status.
// Returns: read-only record owned by the data store.
type Appointment struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	QuoteID      string    `json:"quote_id,omitempty"`
	Plate        string    `json:"plate"`
	VehicleModel string    `json:"vehicle_model"`
	Date         time.Time `json:"date"`
	Time         string    `json:"time"`
	Status       string    `json:"status"`
}

// Active reports whether the appointment still expects the customer.
// Params: none.
// Returns: false for completed or cancelled appointments.
func (a Appointment) Active() bool {
	switch strings.ToLower(strings.TrimSpace(a.Status)) {
	case AppointmentStatusCompleted, AppointmentStatusCancelled:
		return false
	default:
		return true
	}
}

// MessageTemplate is operator-authored text with placeholders.
// Params: identity, title, category tag, content, and catalog ordering key.
// Returns: read-only template owned by the external catalog.
type MessageTemplate struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Content     string `json:"content"`
	OrderingKey int    `json:"ordering_key"`
}

// SameDay reports whether two timestamps fall on the same calendar day.
// Params: calendar value as stored and reference time in the workshop location.
// Returns: true when year, month, and day match.
func SameDay(day time.Time, ref time.Time) bool {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := ref.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
