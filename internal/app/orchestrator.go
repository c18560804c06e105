package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reminders/internal/clock"
	"reminders/internal/domain"
	"reminders/internal/engine"
	"reminders/internal/gateway"
	"reminders/internal/ledger"
	"reminders/internal/logging"
	"reminders/internal/metrics"
	"reminders/internal/permanent"
	"reminders/internal/templatefmt"
)

// Point-mode sentinels, shared with transports through domain.
var (
	ErrUnknownTransition = domain.ErrUnknownTransition
	ErrNotApplicable     = domain.ErrNotApplicable
	ErrInvalidEvent      = domain.ErrInvalidEvent
)

const (
	sourceClients      = "clients"
	sourceQuotes       = "quotes"
	sourceAppointments = "appointments"
	sourceTemplates    = "templates"
)

// Orchestrator runs the scan, resolve, and compile pipeline in batch and point mode.
// Params: data gateway, delivery ledger, clock, logger, metrics, and operator label.
// Returns: sweep/point entrypoints and the sent toggle used by the presentation layer.
type Orchestrator struct {
	gateway gateway.Gateway
	ledger  ledger.Ledger
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	sentBy  string
}

// fetched is one gateway snapshot plus its template catalog.
type fetched struct {
	snapshot  engine.Snapshot
	templates []domain.MessageTemplate
	failed    map[string]error
}

// NewOrchestrator creates an orchestrator.
// Params: gateway, ledger, clock, logger, optional metrics, and sent_by label.
// Returns: initialized orchestrator.
func NewOrchestrator(gw gateway.Gateway, led ledger.Ledger, clk clock.Clock, logger *slog.Logger, m *metrics.Metrics, sentBy string) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		gateway: gw,
		ledger:  led,
		clock:   clk,
		logger:  logger,
		metrics: m,
		sentBy:  sentBy,
	}
}

// Sweep runs batch mode over every entity.
// Params: context for gateway and ledger reads.
// Returns: ordered compiled messages; failed sources shorten the list and set Partial.
func (o *Orchestrator) Sweep(ctx context.Context) domain.SweepResult {
	runID := uuid.NewString()
	logger := logging.WithRun(o.logger, runID, "sweep")
	started := o.clock.Now()

	data := o.fetch(ctx, logger, o.gateway.ListAppointments)
	candidates := engine.Scan(data.snapshot, started)
	messages := o.compileAll(logger, candidates, data.templates, started)
	ledgerErr := o.attachLedger(ctx, messages)
	if ledgerErr != nil {
		logger.Error("ledger read failed", "error", ledgerErr.Error())
	}
	sortMessages(messages)

	result := domain.SweepResult{
		RunID:             runID,
		At:                started,
		Messages:          messages,
		Partial:           len(data.failed) > 0 || ledgerErr != nil,
		LedgerUnavailable: ledgerErr != nil,
	}
	for _, message := range messages {
		if message.Sent {
			result.Sent++
		} else {
			result.Pending++
		}
	}

	finished := o.clock.Now()
	o.metrics.ObserveSweep(started, finished, result.Pending, result.Sent, result.Partial)
	logger.Info("sweep finished",
		"candidates", len(candidates),
		"pending", result.Pending,
		"sent", result.Sent,
		"partial", result.Partial,
		"ledger_unavailable", result.LedgerUnavailable,
	)
	return result
}

// HandleEvent runs point mode for one explicit state transition.
// Params: context and transition event.
// Returns: compiled message with the same id a sweep would produce, or an error;
// invalid, unknown, and not-applicable events are marked permanent, fetch and lookup failures are retryable.
func (o *Orchestrator) HandleEvent(ctx context.Context, event domain.EntityEvent) (*domain.CompiledMessage, error) {
	event.Normalize()
	if err := event.Validate(); err != nil {
		o.metrics.Event(string(event.Kind), "invalid")
		return nil, permanent.Errorf(ErrInvalidEvent, "%v", err)
	}

	trigger, ok := engine.TriggerForEvent(event)
	if !ok {
		o.metrics.Event(string(event.Kind), "skipped")
		return nil, permanent.Errorf(ErrUnknownTransition, "%s %s->%s", event.Kind, event.PreviousStatus, event.Status)
	}
	rule, _ := engine.RuleFor(trigger)

	logger := logging.WithRun(o.logger, uuid.NewString(), "event").With(logging.Candidate(string(trigger), event.SubjectID, "")...)
	now := o.clock.Now()

	data := o.fetch(ctx, logger, o.gateway.ListAppointments)
	if err := data.failed[sourceFor(rule.Subject)]; err != nil {
		o.metrics.Event(string(event.Kind), "error")
		return nil, fmt.Errorf("fetch %s: %w", sourceFor(rule.Subject), err)
	}
	if err := data.failed[sourceTemplates]; err != nil {
		o.metrics.Event(string(event.Kind), "error")
		return nil, fmt.Errorf("fetch %s: %w", sourceTemplates, err)
	}

	candidate, ok := engine.NewCandidate(trigger, data.snapshot, event.SubjectID)
	if !ok {
		o.metrics.Event(string(event.Kind), "error")
		return nil, fmt.Errorf("%s %q: %w", rule.Subject, event.SubjectID, gateway.ErrNotFound)
	}

	messages := o.compileAll(logger, []domain.CandidateEvent{candidate}, data.templates, now)
	if len(messages) == 0 {
		o.metrics.Event(string(event.Kind), "skipped")
		return nil, permanent.Errorf(ErrNotApplicable, "%s", trigger)
	}
	message := messages[0]
	if err := o.attachRecord(ctx, &message); err != nil {
		o.metrics.Event(string(event.Kind), "error")
		logger.Error("ledger read failed", logging.KeyMessageID, message.ID, "error", err.Error())
		return nil, err
	}

	o.metrics.Event(string(event.Kind), "compiled")
	logger.Info("event compiled", logging.KeyMessageID, message.ID, "sent", message.Sent)
	return &message, nil
}

// DayReminders compiles appointment reminders for one calendar day.
// Params: context and day in the workshop location.
// Returns: ordered messages; today uses reminder_today, tomorrow reminder_tomorrow, any other day none.
func (o *Orchestrator) DayReminders(ctx context.Context, day time.Time) ([]domain.CompiledMessage, error) {
	logger := logging.WithRun(o.logger, uuid.NewString(), "day")
	now := o.clock.Now()

	today := startOfDay(now)
	target := startOfDay(day.In(now.Location()))
	var trigger domain.TriggerType
	switch {
	case target.Equal(today):
		trigger = domain.TriggerReminderToday
	case target.Equal(today.AddDate(0, 0, 1)):
		trigger = domain.TriggerReminderTomorrow
	default:
		return []domain.CompiledMessage{}, nil
	}

	listOn := func(ctx context.Context) ([]domain.Appointment, error) {
		return o.gateway.AppointmentsOn(ctx, target)
	}
	data := o.fetch(ctx, logger, listOn)
	if err := data.failed[sourceAppointments]; err != nil {
		return nil, fmt.Errorf("fetch appointments on %s: %w", target.Format(time.DateOnly), err)
	}

	candidates := make([]domain.CandidateEvent, 0, len(data.snapshot.Appointments))
	for _, appointment := range data.snapshot.Appointments {
		if !appointment.Active() {
			continue
		}
		candidate, ok := engine.NewCandidate(trigger, data.snapshot, appointment.ID)
		if ok {
			candidates = append(candidates, candidate)
		}
	}

	messages := o.compileAll(logger, candidates, data.templates, now)
	if err := o.attachLedger(ctx, messages); err != nil {
		logger.Error("ledger read failed", "error", err.Error())
		return nil, err
	}
	sortMessages(messages)
	return messages, nil
}

// MarkSent records one message id as handed off.
// Params: context and message id.
// Returns: stored record or ledger error.
func (o *Orchestrator) MarkSent(ctx context.Context, messageID string) (domain.SentMessageRecord, error) {
	if err := validateMessageID(messageID); err != nil {
		return domain.SentMessageRecord{}, err
	}
	record := domain.SentMessageRecord{MessageID: messageID, SentAt: o.clock.Now(), SentBy: o.sentBy}
	err := o.ledger.MarkSent(ctx, record)
	o.metrics.LedgerOp("mark", err)
	if err != nil {
		o.logger.Error("mark sent failed", logging.KeyMessageID, messageID, "error", err.Error())
		return domain.SentMessageRecord{}, fmt.Errorf("mark sent %q: %w", messageID, err)
	}
	o.logger.Info("message marked sent", logging.KeyMessageID, messageID)
	return record, nil
}

// UnmarkSent removes the sent record of one message id.
// Params: context and message id.
// Returns: ledger error; an unmarked id is not an error.
func (o *Orchestrator) UnmarkSent(ctx context.Context, messageID string) error {
	if err := validateMessageID(messageID); err != nil {
		return err
	}
	err := o.ledger.UnmarkSent(ctx, messageID)
	o.metrics.LedgerOp("unmark", err)
	if err != nil {
		o.logger.Error("unmark sent failed", logging.KeyMessageID, messageID, "error", err.Error())
		return fmt.Errorf("unmark sent %q: %w", messageID, err)
	}
	o.logger.Info("message unmarked", logging.KeyMessageID, messageID)
	return nil
}

// ToggleSent flips the sent state of one message id.
// Params: context and message id.
// Returns: state after the flip and, when it ends sent, the stored record.
func (o *Orchestrator) ToggleSent(ctx context.Context, messageID string) (domain.SentMessageRecord, bool, error) {
	if err := validateMessageID(messageID); err != nil {
		return domain.SentMessageRecord{}, false, err
	}
	sent, err := o.ledger.IsSent(ctx, messageID)
	if err != nil {
		o.metrics.LedgerOp("toggle", err)
		return domain.SentMessageRecord{}, false, fmt.Errorf("read sent state %q: %w", messageID, err)
	}
	if sent {
		return domain.SentMessageRecord{}, false, o.UnmarkSent(ctx, messageID)
	}
	record, err := o.MarkSent(ctx, messageID)
	if err != nil {
		return domain.SentMessageRecord{}, false, err
	}
	return record, true, nil
}

// SentMessages lists ledger records.
// Params: context.
// Returns: records ordered by most recent hand-off.
func (o *Orchestrator) SentMessages(ctx context.Context) ([]domain.SentMessageRecord, error) {
	records, err := o.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sent messages: %w", err)
	}
	return records, nil
}

// fetch reads all sources concurrently; a failed source is logged and left empty.
func (o *Orchestrator) fetch(ctx context.Context, logger *slog.Logger, appointments func(context.Context) ([]domain.Appointment, error)) fetched {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result = fetched{failed: make(map[string]error)}
	)
	record := func(source string, err error) {
		mu.Lock()
		result.failed[source] = err
		mu.Unlock()
		o.metrics.FetchError(source)
		logger.Warn("source fetch failed", logging.KeySource, source, "error", err.Error())
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		clients, err := o.gateway.ListClients(ctx)
		if err != nil {
			record(sourceClients, err)
			return
		}
		result.snapshot.Clients = clients
	}()
	go func() {
		defer wg.Done()
		quotes, err := o.gateway.ListQuotes(ctx)
		if err != nil {
			record(sourceQuotes, err)
			return
		}
		result.snapshot.Quotes = quotes
	}()
	go func() {
		defer wg.Done()
		items, err := appointments(ctx)
		if err != nil {
			record(sourceAppointments, err)
			return
		}
		result.snapshot.Appointments = items
	}()
	go func() {
		defer wg.Done()
		templates, err := o.gateway.ListTemplates(ctx)
		if err != nil {
			record(sourceTemplates, err)
			return
		}
		result.templates = templates
	}()
	wg.Wait()
	return result
}

// compileAll resolves and compiles candidates; unresolved ones are dropped.
func (o *Orchestrator) compileAll(logger *slog.Logger, candidates []domain.CandidateEvent, templates []domain.MessageTemplate, now time.Time) []domain.CompiledMessage {
	messages := make([]domain.CompiledMessage, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		o.metrics.Candidate(string(candidate.TriggerType))
		attrs := logging.Candidate(string(candidate.TriggerType), candidate.SubjectEntityID, "")

		rule, ok := engine.RuleFor(candidate.TriggerType)
		if !ok {
			logger.Warn("candidate has no rule", attrs...)
			continue
		}
		id, err := engine.BuildMessageID(candidate.TriggerType, candidate.SubjectEntityID)
		if err != nil {
			logger.Warn("message id build failed", append(attrs, "error", err.Error())...)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}

		tpl, tier, ok := templatefmt.Resolve(templates, templatefmt.Hints{
			Category:         rule.Category,
			PrimaryKeywords:  rule.PrimaryKeywords,
			FallbackKeywords: rule.FallbackKeywords,
		})
		if !ok {
			o.metrics.Unresolved(string(candidate.TriggerType))
			logger.Info("template unresolved", append(attrs, "category", rule.Category)...)
			continue
		}
		seen[id] = struct{}{}
		logger.Debug("template resolved", append(attrs, logging.KeyTier, string(tier), "template", tpl.Title)...)

		message := domain.CompiledMessage{
			ID:            id,
			TriggerType:   candidate.TriggerType,
			SubjectID:     candidate.SubjectEntityID,
			SubjectKind:   candidate.SubjectEntityKind,
			SubjectLabel:  templatefmt.SubjectLabel(candidate),
			TemplateTitle: tpl.Title,
			Text:          templatefmt.Compile(tpl.Content, templatefmt.BuildVars(candidate.ContextData, now)),
			Priority:      rule.Priority,
		}
		if client := candidate.ContextData.Client; client != nil {
			message.RecipientName = client.Name
			message.RecipientPhone = client.Phone
		}
		messages = append(messages, message)
	}
	return messages
}

// attachLedger copies sent state from one ledger listing.
// On error every message is left pending and the caller must flag the result.
func (o *Orchestrator) attachLedger(ctx context.Context, messages []domain.CompiledMessage) error {
	if len(messages) == 0 {
		return nil
	}
	records, err := o.ledger.List(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	byID := make(map[string]domain.SentMessageRecord, len(records))
	for _, record := range records {
		byID[record.MessageID] = record
	}
	for i := range messages {
		if record, ok := byID[messages[i].ID]; ok {
			markFrom(&messages[i], record)
		}
	}
	return nil
}

func (o *Orchestrator) attachRecord(ctx context.Context, message *domain.CompiledMessage) error {
	record, err := o.ledger.Get(ctx, message.ID)
	switch {
	case err == nil:
		markFrom(message, record)
	case errors.Is(err, ledger.ErrNotFound):
	default:
		return fmt.Errorf("read ledger %q: %w", message.ID, err)
	}
	return nil
}

func markFrom(message *domain.CompiledMessage, record domain.SentMessageRecord) {
	message.Sent = true
	if !record.SentAt.IsZero() {
		sentAt := record.SentAt
		message.SentAt = &sentAt
	}
}

// sortMessages puts pending before sent, pending by priority, sent by most recent hand-off.
func sortMessages(messages []domain.CompiledMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i], messages[j]
		if a.Sent != b.Sent {
			return !a.Sent
		}
		if a.Sent {
			switch {
			case a.SentAt != nil && b.SentAt == nil:
				return true
			case a.SentAt == nil && b.SentAt != nil:
				return false
			case a.SentAt != nil && !a.SentAt.Equal(*b.SentAt):
				return a.SentAt.After(*b.SentAt)
			}
		}
		return a.Priority.Rank() < b.Priority.Rank()
	})
}

func validateMessageID(messageID string) error {
	if _, _, ok := engine.ParseMessageID(messageID); !ok {
		return fmt.Errorf("%w: unrecognized id %q", ledger.ErrInvalidID, messageID)
	}
	return nil
}

func sourceFor(kind domain.EntityKind) string {
	switch kind {
	case domain.EntityQuote:
		return sourceQuotes
	case domain.EntityAppointment:
		return sourceAppointments
	default:
		return sourceClients
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
