package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reminders/internal/domain"
)

const dayLayout = "2006-01-02"

// ErrNotFound indicates the requested entity is absent from the data store.
var ErrNotFound = errors.New("not found")

// Gateway reads workshop entities and the template catalog.
// Params: read-only list operations against the external data store.
// Returns: domain records with calendar days bound to the workshop location.
type Gateway interface {
	ListClients(ctx context.Context) ([]domain.Client, error)
	ListQuotes(ctx context.Context) ([]domain.Quote, error)
	ListAppointments(ctx context.Context) ([]domain.Appointment, error)
	ListTemplates(ctx context.Context) ([]domain.MessageTemplate, error)
	AppointmentsOn(ctx context.Context, day time.Time) ([]domain.Appointment, error)
	Ping(ctx context.Context) error
	Close() error
}

// parseDay reads a calendar day from DATE text or an RFC3339 timestamp.
// Params: raw value and workshop location.
// Returns: midnight of that day in loc; zero time for empty values.
func parseDay(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if len(raw) > len(dayLayout) {
		raw = raw[:len(dayLayout)]
	}
	day, err := time.ParseInLocation(dayLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", raw, err)
	}
	return day, nil
}

// parseTimestamp reads an RFC3339 timestamp as emitted by JSON APIs.
// Params: raw value.
// Returns: parsed instant; zero time for empty values.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", raw)
}

// skipRow logs one record that cannot be mapped; the rest of the listing is kept.
func skipRow(logger *slog.Logger, kind, id string, err error) {
	logger.Warn("skipping malformed row", "kind", kind, "id", id, "error", err.Error())
}

// formatDay renders the calendar day of t in loc for equality filters.
func formatDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}
