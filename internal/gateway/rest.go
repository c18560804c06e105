package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"reminders/internal/config"
	"reminders/internal/domain"

	"github.com/go-resty/resty/v2"
)

// RESTGateway reads entities from a PostgREST-style HTTP API.
// Params: resty client bound to the API base URL and workshop location.
// Returns: gateway for hosted databases that only expose HTTP.
type RESTGateway struct {
	client *resty.Client
	loc    *time.Location
	logger *slog.Logger
}

type restClient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Address   string `json:"address"`
	BirthDate string `json:"birth_date"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type restQuote struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	ClientID     string `json:"client_id"`
	Plate        string `json:"plate"`
	VehicleModel string `json:"vehicle_model"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type restAppointment struct {
	ID           string `json:"id"`
	ClientID     string `json:"client_id"`
	QuoteID      string `json:"quote_id"`
	Plate        string `json:"plate"`
	VehicleModel string `json:"vehicle_model"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Status       string `json:"status"`
}

// fill copies the timestamp and birth date columns into client.
func (r restClient) fill(client *domain.Client, loc *time.Location) error {
	var err error
	if client.CreatedAt, err = parseTimestamp(r.CreatedAt); err != nil {
		return err
	}
	if client.UpdatedAt, err = parseTimestamp(r.UpdatedAt); err != nil {
		return err
	}
	if r.BirthDate != "" {
		birth, err := parseDay(r.BirthDate, loc)
		if err != nil {
			return err
		}
		client.BirthDate = &birth
	}
	return nil
}

// NewRESTGateway builds the HTTP client.
// Params: REST settings and workshop location (nil means UTC).
// Returns: REST gateway.
func NewRESTGateway(settings config.RESTGatewayConfig, loc *time.Location) *RESTGateway {
	if loc == nil {
		loc = time.UTC
	}
	client := resty.New().
		SetBaseURL(settings.BaseURL).
		SetTimeout(settings.Timeout()).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")
	if settings.APIKey != "" {
		client.SetHeader("apikey", settings.APIKey).SetAuthToken(settings.APIKey)
	}
	return &RESTGateway{client: client, loc: loc, logger: slog.Default()}
}

// WithLogger sets the logger that reports skipped records.
// Params: logger (nil keeps the current one).
// Returns: the same gateway.
func (g *RESTGateway) WithLogger(logger *slog.Logger) *RESTGateway {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *RESTGateway) fetch(ctx context.Context, path string, params map[string]string, result any) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

// ListClients reads every client.
// Params: context.
// Returns: clients ordered by name.
func (g *RESTGateway) ListClients(ctx context.Context) ([]domain.Client, error) {
	var rows []restClient
	if err := g.fetch(ctx, "/clients", map[string]string{"select": "*", "order": "name.asc"}, &rows); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]domain.Client, 0, len(rows))
	for _, row := range rows {
		client := domain.Client{
			ID: row.ID, Name: row.Name, Phone: row.Phone, Email: row.Email,
			Password: row.Password, Address: row.Address,
		}
		if err := row.fill(&client, g.loc); err != nil {
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
func (g *RESTGateway) ListQuotes(ctx context.Context) ([]domain.Quote, error) {
	var rows []restQuote
	if err := g.fetch(ctx, "/quotes", map[string]string{"select": "*", "order": "updated_at.desc"}, &rows); err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	out := make([]domain.Quote, 0, len(rows))
	for _, row := range rows {
		quote := domain.Quote{
			ID: row.ID, Number: row.Number, ClientID: row.ClientID, Plate: row.Plate,
			VehicleModel: row.VehicleModel, Status: row.Status,
		}
		var err error
		if quote.CreatedAt, err = parseTimestamp(row.CreatedAt); err == nil {
			quote.UpdatedAt, err = parseTimestamp(row.UpdatedAt)
		}
		if err != nil {
			skipRow(g.logger, "quote", row.ID, err)
			continue
		}
		out = append(out, quote)
	}
	return out, nil
}

// ListAppointments reads every appointment.
// Params: context.
// Returns: appointments ordered by day and slot.
func (g *RESTGateway) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return g.appointments(ctx, map[string]string{"select": "*", "order": "date.asc,time.asc"})
}

// AppointmentsOn reads appointments of one calendar day.
// Params: context and any instant on the requested day.
// Returns: appointments ordered by slot.
func (g *RESTGateway) AppointmentsOn(ctx context.Context, day time.Time) ([]domain.Appointment, error) {
	return g.appointments(ctx, map[string]string{
		"select": "*",
		"date":   "eq." + formatDay(day, g.loc),
		"order":  "time.asc",
	})
}

func (g *RESTGateway) appointments(ctx context.Context, params map[string]string) ([]domain.Appointment, error) {
	var rows []restAppointment
	if err := g.fetch(ctx, "/appointments", params, &rows); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := make([]domain.Appointment, 0, len(rows))
	for _, row := range rows {
		day, err := parseDay(row.Date, g.loc)
		if err != nil {
			skipRow(g.logger, "appointment", row.ID, err)
			continue
		}
		slot := row.Time
		if len(slot) > 5 {
			slot = slot[:5]
		}
		out = append(out, domain.Appointment{
			ID: row.ID, ClientID: row.ClientID, QuoteID: row.QuoteID, Plate: row.Plate,
			VehicleModel: row.VehicleModel, Date: day, Time: slot, Status: row.Status,
		})
	}
	return out, nil
}

// ListTemplates reads the template catalog.
// Params: context.
// Returns: templates in catalog order.
func (g *RESTGateway) ListTemplates(ctx context.Context) ([]domain.MessageTemplate, error) {
	var rows []domain.MessageTemplate
	if err := g.fetch(ctx, "/message_templates", map[string]string{"select": "*", "order": "ordering_key.asc"}, &rows); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return rows, nil
}

// Ping issues a HEAD request against the API root.
// Params: context.
// Returns: transport error or non-2xx status.
func (g *RESTGateway) Ping(ctx context.Context) error {
	resp, err := g.client.R().SetContext(ctx).Head("/")
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("ping: status %d", resp.StatusCode())
	}
	return nil
}

// Close releases idle HTTP connections.
// Params: none.
// Returns: nil.
func (g *RESTGateway) Close() error {
	g.client.GetClient().CloseIdleConnections()
	return nil
}
