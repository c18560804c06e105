package engine

import (
	"strings"
	"time"

	"reminders/internal/domain"
)

// Snapshot is the entity set one scan evaluates.
// Params: clients, quotes, and appointments fetched from the data gateway.
// Returns: read-only scan input.
type Snapshot struct {
	Clients      []domain.Client
	Quotes       []domain.Quote
	Appointments []domain.Appointment
}

// Scan evaluates the full rule table over one snapshot.
// Params: entity snapshot and scan time in the workshop location.
// Returns: candidate events in rule-table order; the slice is never shared between calls.
func Scan(snapshot Snapshot, now time.Time) []domain.CandidateEvent {
	return ScanRules(rules, snapshot, now)
}

// ScanRules evaluates selected rules over one snapshot.
// Params: rule subset, entity snapshot, and scan time.
// Returns: candidate events for every entity whose rule condition holds.
func ScanRules(selected []Rule, snapshot Snapshot, now time.Time) []domain.CandidateEvent {
	index := newSnapshotIndex(snapshot)
	candidates := make([]domain.CandidateEvent, 0)
	for _, rule := range selected {
		switch rule.Subject {
		case domain.EntityQuote:
			if rule.Quote == nil {
				continue
			}
			for i := range snapshot.Quotes {
				if rule.Quote(snapshot.Quotes[i], now) {
					candidates = append(candidates, index.quoteCandidate(rule.Trigger, snapshot.Quotes[i]))
				}
			}
		case domain.EntityAppointment:
			if rule.Appointment == nil {
				continue
			}
			for i := range snapshot.Appointments {
				if rule.Appointment(snapshot.Appointments[i], now) {
					candidates = append(candidates, index.appointmentCandidate(rule.Trigger, snapshot.Appointments[i]))
				}
			}
		case domain.EntityClient:
			if rule.Client == nil {
				continue
			}
			for i := range snapshot.Clients {
				if rule.Client(snapshot.Clients[i], now) {
					candidates = append(candidates, clientCandidate(rule.Trigger, snapshot.Clients[i]))
				}
			}
		}
	}
	return candidates
}

// RulesForSubject filters the table by subject kind.
// Params: subject kind.
// Returns: matching rules in declaration order.
func RulesForSubject(kind domain.EntityKind) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Subject == kind {
			out = append(out, rule)
		}
	}
	return out
}

// NewCandidate builds a candidate for one known subject without evaluating the condition.
// Params: trigger type, snapshot holding the subject, and subject id.
// Returns: candidate and true when the subject exists in the snapshot.
func NewCandidate(trigger domain.TriggerType, snapshot Snapshot, subjectID string) (domain.CandidateEvent, bool) {
	rule, ok := RuleFor(trigger)
	if !ok {
		return domain.CandidateEvent{}, false
	}
	index := newSnapshotIndex(snapshot)
	switch rule.Subject {
	case domain.EntityQuote:
		for i := range snapshot.Quotes {
			if snapshot.Quotes[i].ID == subjectID {
				return index.quoteCandidate(trigger, snapshot.Quotes[i]), true
			}
		}
	case domain.EntityAppointment:
		for i := range snapshot.Appointments {
			if snapshot.Appointments[i].ID == subjectID {
				return index.appointmentCandidate(trigger, snapshot.Appointments[i]), true
			}
		}
	case domain.EntityClient:
		for i := range snapshot.Clients {
			if snapshot.Clients[i].ID == subjectID {
				return clientCandidate(trigger, snapshot.Clients[i]), true
			}
		}
	}
	return domain.CandidateEvent{}, false
}

// snapshotIndex stores lookup maps shared by one scan pass.
type snapshotIndex struct {
	clients      map[string]*domain.Client
	appointments []domain.Appointment
}

func newSnapshotIndex(snapshot Snapshot) snapshotIndex {
	clients := make(map[string]*domain.Client, len(snapshot.Clients))
	for i := range snapshot.Clients {
		client := snapshot.Clients[i]
		clients[client.ID] = &client
	}
	return snapshotIndex{clients: clients, appointments: snapshot.Appointments}
}

func (idx snapshotIndex) client(id string) *domain.Client {
	client, ok := idx.clients[id]
	if !ok {
		return nil
	}
	copied := *client
	return &copied
}

func (idx snapshotIndex) quoteCandidate(trigger domain.TriggerType, quote domain.Quote) domain.CandidateEvent {
	quoteCopy := quote
	data := domain.ContextData{
		Client: idx.client(quote.ClientID),
		Quote:  &quoteCopy,
	}
	if trigger == domain.TriggerAppointmentConfirmation {
		data.Appointment = idx.linkedAppointment(quote)
	}
	return domain.CandidateEvent{
		TriggerType:       trigger,
		SubjectEntityID:   quote.ID,
		SubjectEntityKind: domain.EntityQuote,
		ContextData:       data,
	}
}

func (idx snapshotIndex) appointmentCandidate(trigger domain.TriggerType, appointment domain.Appointment) domain.CandidateEvent {
	appointmentCopy := appointment
	return domain.CandidateEvent{
		TriggerType:       trigger,
		SubjectEntityID:   appointment.ID,
		SubjectEntityKind: domain.EntityAppointment,
		ContextData: domain.ContextData{
			Client:      idx.client(appointment.ClientID),
			Appointment: &appointmentCopy,
		},
	}
}

func clientCandidate(trigger domain.TriggerType, client domain.Client) domain.CandidateEvent {
	clientCopy := client
	return domain.CandidateEvent{
		TriggerType:       trigger,
		SubjectEntityID:   client.ID,
		SubjectEntityKind: domain.EntityClient,
		ContextData:       domain.ContextData{Client: &clientCopy},
	}
}

// linkedAppointment finds the appointment booked for one quote.
// Params: quote to link.
// Returns: appointment by quote id, else by plate and client, preferring active ones; nil when none.
func (idx snapshotIndex) linkedAppointment(quote domain.Quote) *domain.Appointment {
	byQuote := func(a domain.Appointment) bool {
		return quote.ID != "" && a.QuoteID == quote.ID
	}
	byPlate := func(a domain.Appointment) bool {
		plate := normalizePlate(quote.Plate)
		return plate != "" && normalizePlate(a.Plate) == plate && a.ClientID == quote.ClientID
	}
	for _, match := range []func(domain.Appointment) bool{byQuote, byPlate} {
		var fallback *domain.Appointment
		for i := range idx.appointments {
			appointment := idx.appointments[i]
			if !match(appointment) {
				continue
			}
			if appointment.Active() {
				return &appointment
			}
			if fallback == nil {
				fallback = &appointment
			}
		}
		if fallback != nil {
			return fallback
		}
	}
	return nil
}

func normalizePlate(plate string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(plate), " ", ""))
}
