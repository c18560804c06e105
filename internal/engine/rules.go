package engine

import (
	"strings"
	"time"

	"reminders/internal/domain"
)

const (
	recentWindow   = 48 * time.Hour
	feedbackWindow = 72 * time.Hour
	staleAfter     = 15 * 24 * time.Hour
)

// Rule describes one trigger in the reminder taxonomy.
// Params: trigger identity, subject kind, template matching hints, priority, id prefix,
// and exactly one condition matching the subject kind.
// Returns: immutable table row evaluated by Scan.
type Rule struct {
	Trigger          domain.TriggerType
	Subject          domain.EntityKind
	Category         string
	PrimaryKeywords  []string
	FallbackKeywords []string
	Priority         domain.Priority
	IDPrefix         string

	Quote       func(quote domain.Quote, now time.Time) bool
	Appointment func(appointment domain.Appointment, now time.Time) bool
	Client      func(client domain.Client, now time.Time) bool
}

// rules is the single authoritative trigger table.
var rules = []Rule{
	{
		Trigger:          domain.TriggerQuoteProcessed,
		Subject:          domain.EntityQuote,
		Category:         "preventivi",
		PrimaryKeywords:  []string{"elaborato", "pronto"},
		FallbackKeywords: []string{"preventivo"},
		Priority:         domain.PriorityMedium,
		IDPrefix:         "preventivo_elaborato",
		Quote: func(quote domain.Quote, now time.Time) bool {
			return hasStatus(quote.Status, domain.QuoteStatusSent) && within(quote.UpdatedAt, now, recentWindow)
		},
	},
	{
		Trigger:          domain.TriggerQuoteStaleReminder,
		Subject:          domain.EntityQuote,
		Category:         "preventivi",
		PrimaryKeywords:  []string{"sollecito", "promemoria"},
		FallbackKeywords: []string{"attesa", "preventivo"},
		Priority:         domain.PriorityLow,
		IDPrefix:         "preventivo_sollecito",
		Quote: func(quote domain.Quote, now time.Time) bool {
			if !hasStatus(quote.Status, domain.QuoteStatusSent) || quote.UpdatedAt.IsZero() {
				return false
			}
			return !quote.UpdatedAt.After(now.Add(-staleAfter))
		},
	},
	{
		Trigger:          domain.TriggerAppointmentConfirmation,
		Subject:          domain.EntityQuote,
		Category:         "appuntamenti",
		PrimaryKeywords:  []string{"conferma"},
		FallbackKeywords: []string{"accettato", "appuntamento"},
		Priority:         domain.PriorityHigh,
		IDPrefix:         "conferma_appuntamento",
		Quote: func(quote domain.Quote, now time.Time) bool {
			return hasStatus(quote.Status, domain.QuoteStatusAccepted) && within(quote.UpdatedAt, now, recentWindow)
		},
	},
	{
		Trigger:          domain.TriggerReminderToday,
		Subject:          domain.EntityAppointment,
		Category:         "appuntamenti",
		PrimaryKeywords:  []string{"oggi"},
		FallbackKeywords: []string{"promemoria", "reminder"},
		Priority:         domain.PriorityHigh,
		IDPrefix:         "reminder_oggi",
		Appointment: func(appointment domain.Appointment, now time.Time) bool {
			return appointment.Active() && domain.SameDay(appointment.Date, now)
		},
	},
	{
		Trigger:          domain.TriggerReminderTomorrow,
		Subject:          domain.EntityAppointment,
		Category:         "appuntamenti",
		PrimaryKeywords:  []string{"domani"},
		FallbackKeywords: []string{"promemoria", "reminder"},
		Priority:         domain.PriorityMedium,
		IDPrefix:         "reminder_domani",
		Appointment: func(appointment domain.Appointment, now time.Time) bool {
			return appointment.Active() && domain.SameDay(appointment.Date, now.AddDate(0, 0, 1))
		},
	},
	{
		Trigger:          domain.TriggerNewClientCredentials,
		Subject:          domain.EntityClient,
		Category:         "clienti",
		PrimaryKeywords:  []string{"credenziali", "accesso"},
		FallbackKeywords: []string{"benvenuto", "password"},
		Priority:         domain.PriorityHigh,
		IDPrefix:         "credenziali_cliente",
		Client: func(client domain.Client, now time.Time) bool {
			return within(client.CreatedAt, now, recentWindow) || within(client.UpdatedAt, now, recentWindow)
		},
	},
	{
		Trigger:          domain.TriggerWorkClosed,
		Subject:          domain.EntityQuote,
		Category:         "lavori",
		PrimaryKeywords:  []string{"completat", "chiuso", "ritiro"},
		FallbackKeywords: []string{"pronta", "pronto"},
		Priority:         domain.PriorityMedium,
		IDPrefix:         "lavoro_chiuso",
		Quote: func(quote domain.Quote, now time.Time) bool {
			return hasStatus(quote.Status, domain.QuoteStatusCompleted) && within(quote.UpdatedAt, now, recentWindow)
		},
	},
	{
		Trigger:          domain.TriggerFeedbackRequest,
		Subject:          domain.EntityQuote,
		Category:         "lavori",
		PrimaryKeywords:  []string{"feedback", "recensione"},
		FallbackKeywords: []string{"opinione", "soddisf"},
		Priority:         domain.PriorityLow,
		IDPrefix:         "richiesta_feedback",
		Quote: func(quote domain.Quote, now time.Time) bool {
			if !hasStatus(quote.Status, domain.QuoteStatusCompleted) || quote.UpdatedAt.IsZero() {
				return false
			}
			elapsed := now.Sub(quote.UpdatedAt)
			return elapsed > recentWindow && elapsed <= feedbackWindow
		},
	},
	{
		Trigger:          domain.TriggerBirthday,
		Subject:          domain.EntityClient,
		Category:         "auguri",
		PrimaryKeywords:  []string{"compleanno"},
		FallbackKeywords: []string{"auguri"},
		Priority:         domain.PriorityLow,
		IDPrefix:         "auguri_compleanno",
		Client: func(client domain.Client, now time.Time) bool {
			if client.BirthDate == nil {
				return false
			}
			_, bm, bd := client.BirthDate.Date()
			_, m, d := now.Date()
			return bm == m && bd == d
		},
	},
}

// Rules returns a copy of the trigger table in declaration order.
// Params: none.
// Returns: rule slice safe for caller mutation.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// RuleFor returns the table row for one trigger type.
// Params: trigger type.
// Returns: rule and existence flag.
func RuleFor(trigger domain.TriggerType) (Rule, bool) {
	for _, rule := range rules {
		if rule.Trigger == trigger {
			return rule, true
		}
	}
	return Rule{}, false
}

// within reports whether ts lies no further than window before now.
// Params: timestamp, reference time, and window width.
// Returns: false for zero timestamps.
func within(ts, now time.Time, window time.Duration) bool {
	if ts.IsZero() {
		return false
	}
	return now.Sub(ts) <= window
}

func hasStatus(value, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(value), expected)
}
