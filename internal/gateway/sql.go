package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reminders/internal/config"
	"reminders/internal/domain"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	clientColumns      = `id, name, phone, email, password, address, birth_date, created_at, updated_at`
	quoteColumns       = `id, number, client_id, plate, vehicle_model, status, created_at, updated_at`
	appointmentColumns = `id, client_id, quote_id, plate, vehicle_model, date, time, status`
	templateColumns    = `id, title, category, content, ordering_key`
)

// SQLGateway reads entities from the workshop database.
// Params: sqlx handle and workshop location for calendar columns.
// Returns: gateway for sqlite and postgres drivers.
type SQLGateway struct {
	db     *sqlx.DB
	loc    *time.Location
	logger *slog.Logger
}

// OpenSQL opens and pings the configured database.
// Params: context, gateway settings, and workshop location.
// Returns: gateway owning the connection pool, or open/ping error.
func OpenSQL(ctx context.Context, settings config.GatewayConfig, loc *time.Location) (*SQLGateway, error) {
	db, err := sqlx.Open(settings.Driver, settings.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", settings.Driver, err)
	}
	if settings.Driver == config.GatewayDriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", settings.Driver, err)
	}
	return NewSQLGateway(db, loc), nil
}

// NewSQLGateway wraps an open database handle.
// Params: sqlx handle and workshop location (nil means UTC).
// Returns: SQL gateway.
func NewSQLGateway(db *sqlx.DB, loc *time.Location) *SQLGateway {
	if loc == nil {
		loc = time.UTC
	}
	return &SQLGateway{db: db, loc: loc, logger: slog.Default()}
}

// WithLogger sets the logger that reports skipped rows.
// Params: logger (nil keeps the current one).
// Returns: the same gateway.
func (g *SQLGateway) WithLogger(logger *slog.Logger) *SQLGateway {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// DB exposes the handle so the SQL ledger can share the pool.
// Params: none.
// Returns: sqlx handle.
func (g *SQLGateway) DB() *sqlx.DB {
	return g.db
}

// ListClients reads every client.
// Params: context.
// Returns: clients ordered by name; rows with malformed dates are logged and skipped.
func (g *SQLGateway) ListClients(ctx context.Context) ([]domain.Client, error) {
	var rows []clientRow
	if err := g.db.SelectContext(ctx, &rows, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]domain.Client, 0, len(rows))
	for _, row := range rows {
		client, err := row.toDomain(g.loc)
		if err != nil {
			skipRow(g.logger, "client", row.ID, err)
			continue
		}
		out = append(out, client)
	}
	return out, nil
}

// ListQuotes reads every quote.
// Params: context.
// Returns: quotes, most recently updated first.
func (g *SQLGateway) ListQuotes(ctx context.Context) ([]domain.Quote, error) {
	var rows []quoteRow
	if err := g.db.SelectContext(ctx, &rows, `SELECT `+quoteColumns+` FROM quotes ORDER BY updated_at DESC, id`); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	out := make([]domain.Quote, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// ListAppointments reads every appointment.
// Params: context.
// Returns: appointments ordered by day and slot.
func (g *SQLGateway) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return g.selectAppointments(ctx, `SELECT `+appointmentColumns+` FROM appointments ORDER BY date, time, id`)
}

// AppointmentsOn reads appointments of one calendar day.
// Params: context and any instant on the requested day.
// Returns: appointments ordered by slot.
func (g *SQLGateway) AppointmentsOn(ctx context.Context, day time.Time) ([]domain.Appointment, error) {
	query := g.db.Rebind(`SELECT ` + appointmentColumns + ` FROM appointments WHERE date = ? ORDER BY time, id`)
	return g.selectAppointments(ctx, query, formatDay(day, g.loc))
}

func (g *SQLGateway) selectAppointments(ctx context.Context, query string, args ...any) ([]domain.Appointment, error) {
	var rows []appointmentRow
	if err := g.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := make([]domain.Appointment, 0, len(rows))
	for _, row := range rows {
		appointment, err := row.toDomain(g.loc)
		if err != nil {
			skipRow(g.logger, "appointment", row.ID, err)
			continue
		}
		out = append(out, appointment)
	}
	return out, nil
}

// ListTemplates reads the template catalog.
// Params: context.
// Returns: templates in catalog order.
func (g *SQLGateway) ListTemplates(ctx context.Context) ([]domain.MessageTemplate, error) {
	var rows []templateRow
	if err := g.db.SelectContext(ctx, &rows, `SELECT `+templateColumns+` FROM message_templates ORDER BY ordering_key, id`); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]domain.MessageTemplate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Ping checks database reachability for readiness probes.
// Params: context.
// Returns: ping error.
func (g *SQLGateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Close closes the connection pool.
// Params: none.
// Returns: close error.
func (g *SQLGateway) Close() error {
	return g.db.Close()
}
