package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"reminders/internal/clock"
	"reminders/internal/domain"
	"reminders/internal/gateway"
	"reminders/internal/ledger"
	"reminders/internal/permanent"
)

var workshopZone = time.FixedZone("CEST", 2*3600)

type fakeGateway struct {
	clients      []domain.Client
	quotes       []domain.Quote
	appointments []domain.Appointment
	templates    []domain.MessageTemplate
	errs         map[string]error
}

func (g *fakeGateway) ListClients(context.Context) ([]domain.Client, error) {
	return g.clients, g.errs[sourceClients]
}

func (g *fakeGateway) ListQuotes(context.Context) ([]domain.Quote, error) {
	return g.quotes, g.errs[sourceQuotes]
}

func (g *fakeGateway) ListAppointments(context.Context) ([]domain.Appointment, error) {
	return g.appointments, g.errs[sourceAppointments]
}

func (g *fakeGateway) ListTemplates(context.Context) ([]domain.MessageTemplate, error) {
	return g.templates, g.errs[sourceTemplates]
}

func (g *fakeGateway) AppointmentsOn(_ context.Context, day time.Time) ([]domain.Appointment, error) {
	if err := g.errs[sourceAppointments]; err != nil {
		return nil, err
	}
	out := make([]domain.Appointment, 0)
	for _, appointment := range g.appointments {
		if domain.SameDay(appointment.Date, day) {
			out = append(out, appointment)
		}
	}
	return out, nil
}

func (g *fakeGateway) Ping(context.Context) error {
	return nil
}

func (g *fakeGateway) Close() error {
	return nil
}

type failingLedger struct {
	ledger.Ledger
	err error
}

func (l failingLedger) MarkSent(context.Context, domain.SentMessageRecord) error {
	return l.err
}

func (l failingLedger) Get(context.Context, string) (domain.SentMessageRecord, error) {
	return domain.SentMessageRecord{}, l.err
}

func (l failingLedger) List(context.Context) ([]domain.SentMessageRecord, error) {
	return nil, l.err
}

func fixtureNow() time.Time {
	return time.Date(2025, 7, 1, 10, 0, 0, 0, workshopZone)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, workshopZone)
}

func fixtureGateway() *fakeGateway {
	now := fixtureNow()
	old := time.Date(2024, 1, 10, 9, 0, 0, 0, workshopZone)
	birth := day(1985, 7, 1)
	return &fakeGateway{
		clients: []domain.Client{
			{ID: "C1", Name: "Mario Rossi", Phone: "+39 333 1111111", CreatedAt: old, UpdatedAt: old},
			{ID: "C3", Name: "Anna Bianchi", Phone: "+39 333 3333333", BirthDate: &birth, CreatedAt: old, UpdatedAt: old},
		},
		quotes: []domain.Quote{
			{ID: "Q1", Number: "2025/041", ClientID: "C1", Plate: "AB123CD", Status: domain.QuoteStatusSent, CreatedAt: old, UpdatedAt: now.Add(-10 * time.Hour)},
			{ID: "Q2", Number: "2025/017", ClientID: "C1", Plate: "XY987ZW", Status: domain.QuoteStatusSent, CreatedAt: old, UpdatedAt: now.Add(-16 * 24 * time.Hour)},
		},
		appointments: []domain.Appointment{
			{ID: "A9", ClientID: "C1", Plate: "AB123CD", Date: day(2025, 7, 1), Time: "09:30", Status: domain.AppointmentStatusScheduled},
			{ID: "A10", ClientID: "C3", Plate: "GG555HH", Date: day(2025, 7, 2), Time: "15:00", Status: domain.AppointmentStatusScheduled},
			{ID: "A11", ClientID: "C3", Plate: "GG555HH", Date: day(2025, 7, 2), Time: "16:00", Status: domain.AppointmentStatusCancelled},
		},
		templates: []domain.MessageTemplate{
			{ID: "T1", Title: "Preventivo elaborato", Category: "preventivi", Content: "Ciao {{nome}}, il preventivo per *targa* è pronto.", OrderingKey: 1},
			{ID: "T2", Title: "Sollecito preventivo", Category: "preventivi", Content: "Ciao {{nome}}, hai valutato il preventivo per {{targa}}?", OrderingKey: 2},
			{ID: "T3", Title: "Promemoria oggi", Category: "appuntamenti", Content: "Ciao {{nome}}, ti aspettiamo oggi alle {{ora_appuntamento}}.", OrderingKey: 3},
			{ID: "T4", Title: "Promemoria domani", Category: "appuntamenti", Content: "Ciao {{nome}}, ti aspettiamo domani {{data_appuntamento}} alle {{ora_appuntamento}}.", OrderingKey: 4},
			{ID: "T5", Title: "Buon compleanno", Category: "auguri", Content: "Tanti auguri {{nome}} per i tuoi {{anni}} anni!", OrderingKey: 5},
		},
		errs: map[string]error{},
	}
}

func newTestOrchestrator(gw gateway.Gateway, led ledger.Ledger) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(gw, led, clock.Fixed(fixtureNow()), logger, nil, "banco")
}

func messageIDs(messages []domain.CompiledMessage) []string {
	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}
	return ids
}

func findMessage(messages []domain.CompiledMessage, id string) (domain.CompiledMessage, bool) {
	for _, message := range messages {
		if message.ID == id {
			return message, true
		}
	}
	return domain.CompiledMessage{}, false
}

func TestSweepProducesOrderedMessages(t *testing.T) {
	t.Parallel()

	orchestrator := newTestOrchestrator(fixtureGateway(), ledger.NewMemoryLedger())
	result := orchestrator.Sweep(context.Background())

	want := []string{"reminder_oggi_A9", "preventivo_elaborato_Q1", "reminder_domani_A10", "preventivo_sollecito_Q2", "auguri_compleanno_C3"}
	got := messageIDs(result.Messages)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected ids: got %v want %v", got, want)
	}
	if result.Partial || result.Pending != 5 || result.Sent != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.RunID == "" {
		t.Fatalf("expected run id")
	}

	processed, _ := findMessage(result.Messages, "preventivo_elaborato_Q1")
	if processed.Text != "Ciao Mario, il preventivo per AB123CD è pronto." {
		t.Fatalf("unexpected text: %q", processed.Text)
	}
	if processed.RecipientName != "Mario Rossi" || processed.TemplateTitle != "Preventivo elaborato" {
		t.Fatalf("unexpected message: %+v", processed)
	}

	birthday, _ := findMessage(result.Messages, "auguri_compleanno_C3")
	if birthday.Text != "Tanti auguri Anna per i tuoi 40 anni!" {
		t.Fatalf("unexpected birthday text: %q", birthday.Text)
	}
}

func TestSweepIsDeterministic(t *testing.T) {
	t.Parallel()

	orchestrator := newTestOrchestrator(fixtureGateway(), ledger.NewMemoryLedger())
	first := orchestrator.Sweep(context.Background())
	second := orchestrator.Sweep(context.Background())

	if len(first.Messages) != len(second.Messages) {
		t.Fatalf("different lengths: %d vs %d", len(first.Messages), len(second.Messages))
	}
	for i := range first.Messages {
		if first.Messages[i].ID != second.Messages[i].ID || first.Messages[i].Text != second.Messages[i].Text {
			t.Fatalf("sweeps differ at %d: %+v vs %+v", i, first.Messages[i], second.Messages[i])
		}
	}
	if first.RunID == second.RunID {
		t.Fatalf("expected distinct run ids")
	}
}

func TestSweepMovesMarkedMessageToSentGroup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	orchestrator := newTestOrchestrator(fixtureGateway(), ledger.NewMemoryLedger())
	if _, err := orchestrator.MarkSent(ctx, "reminder_oggi_A9"); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	result := orchestrator.Sweep(ctx)
	last := result.Messages[len(result.Messages)-1]
	if last.ID != "reminder_oggi_A9" || !last.Sent || last.SentAt == nil {
		t.Fatalf("expected marked message last and sent, got %+v", last)
	}
	if result.Pending != 4 || result.Sent != 1 {
		t.Fatalf("unexpected counters: pending=%d sent=%d", result.Pending, result.Sent)
	}
	for _, message := range result.Messages[:len(result.Messages)-1] {
		if message.Sent {
			t.Fatalf("unexpected sent message in pending group: %s", message.ID)
		}
	}
}

func TestSweepIsolatesSourceFailure(t *testing.T) {
	t.Parallel()

	gw := fixtureGateway()
	gw.errs[sourceQuotes] = errors.New("connection reset")
	orchestrator := newTestOrchestrator(gw, ledger.NewMemoryLedger())

	result := orchestrator.Sweep(context.Background())
	if !result.Partial {
		t.Fatalf("expected partial sweep")
	}
	want := "reminder_oggi_A9,reminder_domani_A10,auguri_compleanno_C3"
	if got := strings.Join(messageIDs(result.Messages), ","); got != want {
		t.Fatalf("unexpected ids: %s", got)
	}
}

func TestSweepLedgerFailureKeepsMessagesPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backing := ledger.NewMemoryLedger()
	if err := backing.MarkSent(ctx, domain.SentMessageRecord{MessageID: "preventivo_elaborato_Q1", SentAt: fixtureNow()}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	led := failingLedger{Ledger: backing, err: errors.New("ledger down")}
	orchestrator := newTestOrchestrator(fixtureGateway(), led)

	result := orchestrator.Sweep(ctx)
	if result.Pending != 5 || result.Sent != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if !result.LedgerUnavailable || !result.Partial {
		t.Fatalf("unreadable ledger must flag the result: ledger_unavailable=%v partial=%v", result.LedgerUnavailable, result.Partial)
	}

	healthy := newTestOrchestrator(fixtureGateway(), backing).Sweep(ctx)
	if healthy.LedgerUnavailable || healthy.Partial || healthy.Sent != 1 {
		t.Fatalf("readable ledger: %+v", healthy)
	}
}

func TestLedgerReadFailureFailsDayRemindersAndEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led := failingLedger{Ledger: ledger.NewMemoryLedger(), err: errors.New("ledger down")}
	orchestrator := newTestOrchestrator(fixtureGateway(), led)

	if _, err := orchestrator.DayReminders(ctx, day(2025, 7, 2)); err == nil || !strings.Contains(err.Error(), "ledger down") {
		t.Fatalf("day reminders must surface the ledger error, got %v", err)
	}

	event := domain.EntityEvent{Kind: domain.EventQuoteStatusChanged, SubjectID: "Q1", PreviousStatus: "draft", Status: "sent"}
	message, err := orchestrator.HandleEvent(ctx, event)
	if err == nil || message != nil {
		t.Fatalf("point mode must fail on ledger read error, got %+v %v", message, err)
	}
	if permanent.Is(err) {
		t.Fatalf("ledger read error must stay retryable")
	}
}

func TestSweepDropsUnresolvedTemplate(t *testing.T) {
	t.Parallel()

	gw := fixtureGateway()
	kept := gw.templates[:0]
	for _, tpl := range gw.templates {
		if tpl.Category != "auguri" {
			kept = append(kept, tpl)
		}
	}
	gw.templates = kept
	orchestrator := newTestOrchestrator(gw, ledger.NewMemoryLedger())

	result := orchestrator.Sweep(context.Background())
	if _, ok := findMessage(result.Messages, "auguri_compleanno_C3"); ok {
		t.Fatalf("birthday message must be dropped without template")
	}
	if len(result.Messages) != 4 {
		t.Fatalf("expected other messages to survive, got %v", messageIDs(result.Messages))
	}
}

func TestHandleEventMatchesSweepID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	orchestrator := newTestOrchestrator(fixtureGateway(), ledger.NewMemoryLedger())
	message, err := orchestrator.HandleEvent(ctx, domain.EntityEvent{
		Kind:           domain.EventQuoteStatusChanged,
		SubjectID:      "Q1",
		PreviousStatus: "draft",
		Status:         "SENT",
	})
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}

	sweep := orchestrator.Sweep(ctx)
	scanned, ok := findMessage(sweep.Messages, message.ID)
	if !ok {
		t.Fatalf("point-mode id %q missing from sweep %v", message.ID, messageIDs(sweep.Messages))
	}
	if scanned.Text != message.Text {
		t.Fatalf("texts differ: %q vs %q", scanned.Text, message.Text)
	}

	if _, err := orchestrator.MarkSent(ctx, message.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	again, err := orchestrator.HandleEvent(ctx, domain.EntityEvent{
		Kind:           domain.EventQuoteStatusChanged,
		SubjectID:      "Q1",
		PreviousStatus: "draft",
		Status:         "sent",
	})
	if err != nil {
		t.Fatalf("handle event again: %v", err)
	}
	if !again.Sent || again.SentAt == nil {
		t.Fatalf("expected point-mode message to carry ledger state, got %+v", again)
	}
}

func TestHandleEventErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event domain.EntityEvent
		want  error
	}{
		{
			name:  "unknown transition",
			event: domain.EntityEvent{Kind: domain.EventQuoteStatusChanged, SubjectID: "Q1", PreviousStatus: "sent", Status: "rejected"},
			want:  ErrUnknownTransition,
		},
		{
			name:  "missing subject",
			event: domain.EntityEvent{Kind: domain.EventQuoteStatusChanged, SubjectID: "Q404", PreviousStatus: "draft", Status: "sent"},
			want:  gateway.ErrNotFound,
		},
		{
			name:  "invalid",
			event: domain.EntityEvent{Kind: domain.EventClientCreated},
			want:  ErrInvalidEvent,
		},
		{
			name:  "no template",
			event: domain.EntityEvent{Kind: domain.EventClientCreated, SubjectID: "C1"},
			want:  ErrNotApplicable,
		},
	}

	orchestrator := newTestOrchestrator(fixtureGateway(), ledger.NewMemoryLedger())
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			message, err := orchestrator.HandleEvent(context.Background(), tt.event)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if message != nil {
				t.Fatalf("expected no message, got %+v", message)
			}
		})
	}
}

func TestHandleEventFailsWhenSubjectSourceFails(t *testing.T) {
	t.Parallel()

	gw := fixtureGateway()
	gw.errs[sourceQuotes] = errors.New("timeout")
	orchestrator := newTestOrchestrator(gw, ledger.NewMemoryLedger())

	_, err := orchestrator.HandleEvent(context.Background(), domain.EntityEvent{
		Kind: domain.EventQuoteStatusChanged, SubjectID: "Q1", PreviousStatus: "draft", Status: "sent",
	})
	if err == nil || !strings.Contains(err.Error(), "fetch quotes") {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestDayReminders(t *testing.T) {
	t.Parallel()

	gw := fixtureGateway()
	gw.appointments = append(gw.appointments, domain.Appointment{
		ID: "A20", ClientID: "C1", Plate: "AB123CD", Date: day(2025, 7, 6), Time: "11:00", Status: domain.AppointmentStatusScheduled,
	})
	orchestrator := newTestOrchestrator(gw, ledger.NewMemoryLedger())
	tests := []struct {
		name string
		day  time.Time
		want string
	}{
		{name: "today", day: day(2025, 7, 1), want: "reminder_oggi_A9"},
		{name: "tomorrow skips cancelled", day: day(2025, 7, 2), want: "reminder_domani_A10"},
		{name: "past", day: day(2025, 6, 30), want: ""},
		{name: "booked day after tomorrow", day: day(2025, 7, 6), want: ""},
		{name: "empty day", day: day(2025, 7, 20), want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			messages, err := orchestrator.DayReminders(context.Background(), tt.day)
			if err != nil {
				t.Fatalf("day reminders: %v", err)
			}
			if got := strings.Join(messageIDs(messages), ","); got != tt.want {
				t.Fatalf("unexpected ids: got %q want %q", got, tt.want)
			}
		})
	}
}

func TestDayRemindersFailsWhenAppointmentsFail(t *testing.T) {
	t.Parallel()

	gw := fixtureGateway()
	gw.errs[sourceAppointments] = errors.New("boom")
	orchestrator := newTestOrchestrator(gw, ledger.NewMemoryLedger())
	if _, err := orchestrator.DayReminders(context.Background(), day(2025, 7, 1)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSentToggleIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	led := ledger.NewMemoryLedger()
	orchestrator := newTestOrchestrator(fixtureGateway(), led)
	const id = "preventivo_elaborato_Q1"

	for i := 0; i < 2; i++ {
		record, err := orchestrator.MarkSent(ctx, id)
		if err != nil {
			t.Fatalf("mark sent #%d: %v", i, err)
		}
		if record.SentBy != "banco" || !record.SentAt.Equal(fixtureNow()) {
			t.Fatalf("unexpected record: %+v", record)
		}
	}
	if sent, _ := led.IsSent(ctx, id); !sent {
		t.Fatalf("expected sent after double mark")
	}
	records, _ := orchestrator.SentMessages(ctx)
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}

	for i := 0; i < 2; i++ {
		if err := orchestrator.UnmarkSent(ctx, id); err != nil {
			t.Fatalf("unmark #%d: %v", i, err)
		}
	}
	if sent, _ := led.IsSent(ctx, id); sent {
		t.Fatalf("expected not sent after double unmark")
	}

	record, sent, err := orchestrator.ToggleSent(ctx, id)
	if err != nil || !sent {
		t.Fatalf("first toggle: sent=%v err=%v", sent, err)
	}
	if record.MessageID != id || record.SentBy != "banco" || !record.SentAt.Equal(fixtureNow()) {
		t.Fatalf("toggle to sent must return the stored record, got %+v", record)
	}
	record, sent, err = orchestrator.ToggleSent(ctx, id)
	if err != nil || sent {
		t.Fatalf("second toggle: sent=%v err=%v", sent, err)
	}
	if record.MessageID != "" {
		t.Fatalf("toggle to pending must return no record, got %+v", record)
	}
}

func TestSentActionsRejectUnknownIDs(t *testing.T) {
	t.Parallel()

	orchestrator := newTestOrchestrator(fixtureGateway(), ledger.NewMemoryLedger())
	if _, err := orchestrator.MarkSent(context.Background(), "bogus"); !errors.Is(err, ledger.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, _, err := orchestrator.ToggleSent(context.Background(), "preventivo_elaborato_"); !errors.Is(err, ledger.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestMarkSentSurfacesLedgerFailure(t *testing.T) {
	t.Parallel()

	led := failingLedger{Ledger: ledger.NewMemoryLedger(), err: errors.New("disk full")}
	orchestrator := newTestOrchestrator(fixtureGateway(), led)
	if _, err := orchestrator.MarkSent(context.Background(), "reminder_oggi_A9"); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected ledger error, got %v", err)
	}
}

func TestSortMessages(t *testing.T) {
	t.Parallel()

	older := fixtureNow().Add(-2 * time.Hour)
	newer := fixtureNow().Add(-time.Hour)
	messages := []domain.CompiledMessage{
		{ID: "sent-no-ts", Sent: true, Priority: domain.PriorityHigh},
		{ID: "sent-old", Sent: true, SentAt: &older, Priority: domain.PriorityHigh},
		{ID: "low", Priority: domain.PriorityLow},
		{ID: "sent-new", Sent: true, SentAt: &newer, Priority: domain.PriorityLow},
		{ID: "high", Priority: domain.PriorityHigh},
		{ID: "medium", Priority: domain.PriorityMedium},
		{ID: "high-2", Priority: domain.PriorityHigh},
	}
	sortMessages(messages)

	want := "high,high-2,medium,low,sent-new,sent-old,sent-no-ts"
	if got := strings.Join(messageIDs(messages), ","); got != want {
		t.Fatalf("unexpected order: got %s want %s", got, want)
	}
}
