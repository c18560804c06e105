package engine

import "reminders/internal/domain"

// quoteTransitions maps the status a quote moved into to its point-mode trigger.
var quoteTransitions = map[string]domain.TriggerType{
	domain.QuoteStatusSent:      domain.TriggerQuoteProcessed,
	domain.QuoteStatusAccepted:  domain.TriggerAppointmentConfirmation,
	domain.QuoteStatusCompleted: domain.TriggerWorkClosed,
}

// TriggerForEvent maps one explicit state transition to a trigger type.
// Params: normalized entity event.
// Returns: trigger type and true when the transition produces a message.
func TriggerForEvent(event domain.EntityEvent) (domain.TriggerType, bool) {
	switch event.Kind {
	case domain.EventQuoteStatusChanged:
		if event.PreviousStatus == event.Status {
			return "", false
		}
		trigger, ok := quoteTransitions[event.Status]
		return trigger, ok
	case domain.EventClientCreated:
		return domain.TriggerNewClientCredentials, true
	default:
		return "", false
	}
}
