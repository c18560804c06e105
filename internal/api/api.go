package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"reminders/internal/domain"
	"reminders/internal/gateway"
	"reminders/internal/ingest"
	"reminders/internal/ledger"
)

const dateLayout = "2006-01-02"

// Orchestrator is the reminder pipeline exposed to the presentation layer.
// Params: batch sweep, point event, day reminders, and ledger actions.
// Returns: compiled messages and sent records.
type Orchestrator interface {
	Sweep(ctx context.Context) domain.SweepResult
	HandleEvent(ctx context.Context, event domain.EntityEvent) (*domain.CompiledMessage, error)
	DayReminders(ctx context.Context, day time.Time) ([]domain.CompiledMessage, error)
	MarkSent(ctx context.Context, messageID string) (domain.SentMessageRecord, error)
	UnmarkSent(ctx context.Context, messageID string) error
	ToggleSent(ctx context.Context, messageID string) (domain.SentMessageRecord, bool, error)
	SentMessages(ctx context.Context) ([]domain.SentMessageRecord, error)
}

// Options tunes the API router.
// Params: path prefix, request body limit, workshop location, and logger.
// Returns: router settings.
type Options struct {
	Prefix       string
	MaxBodyBytes int64
	Location     *time.Location
	Logger       *slog.Logger
}

type handler struct {
	orchestrator Orchestrator
	maxBodyBytes int64
	location     *time.Location
	logger       *slog.Logger
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

type sentState struct {
	ID     string     `json:"id"`
	Sent   bool       `json:"sent"`
	SentAt *time.Time `json:"sent_at,omitempty"`
	SentBy string     `json:"sent_by,omitempty"`
}

// Register mounts API routes under opts.Prefix on router.
// Params: target router, orchestrator, and options.
// Returns: none.
func Register(router *mux.Router, orchestrator Orchestrator, opts Options) {
	h := &handler{
		orchestrator: orchestrator,
		maxBodyBytes: opts.MaxBodyBytes,
		location:     opts.Location,
		logger:       opts.Logger,
	}
	if h.location == nil {
		h.location = time.Local
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = 1 << 20
	}

	sub := router.PathPrefix("/" + strings.Trim(opts.Prefix, "/")).Subrouter()
	sub.HandleFunc("/messages", h.listMessages).Methods(http.MethodGet)
	sub.HandleFunc("/messages/{id}/sent", h.markSent).Methods(http.MethodPost)
	sub.HandleFunc("/messages/{id}/sent", h.unmarkSent).Methods(http.MethodDelete)
	sub.HandleFunc("/messages/{id}/toggle", h.toggleSent).Methods(http.MethodPost)
	sub.HandleFunc("/events", h.handleEvent).Methods(http.MethodPost)
	sub.HandleFunc("/appointments/{date}/reminders", h.dayReminders).Methods(http.MethodGet)
	sub.HandleFunc("/ledger", h.listLedger).Methods(http.MethodGet)
}

// NewRouter builds a standalone router with API routes only.
// Params: orchestrator and options.
// Returns: gorilla/mux router.
func NewRouter(orchestrator Orchestrator, opts Options) *mux.Router {
	router := mux.NewRouter()
	Register(router, orchestrator, opts)
	return router
}

func (h *handler) listMessages(writer http.ResponseWriter, request *http.Request) {
	status := strings.ToLower(strings.TrimSpace(request.URL.Query().Get("status")))
	if status != "" && status != "pending" && status != "sent" {
		respondError(writer, http.StatusBadRequest, "status must be pending or sent", false)
		return
	}

	result := h.orchestrator.Sweep(request.Context())
	if status != "" {
		wantSent := status == "sent"
		filtered := make([]domain.CompiledMessage, 0, len(result.Messages))
		for _, message := range result.Messages {
			if message.Sent == wantSent {
				filtered = append(filtered, message)
			}
		}
		result.Messages = filtered
	}
	respondJSON(writer, http.StatusOK, result)
}

func (h *handler) markSent(writer http.ResponseWriter, request *http.Request) {
	id := mux.Vars(request)["id"]
	record, err := h.orchestrator.MarkSent(request.Context(), id)
	if err != nil {
		h.respondLedgerError(writer, err)
		return
	}
	sentAt := record.SentAt
	respondJSON(writer, http.StatusOK, sentState{ID: record.MessageID, Sent: true, SentAt: &sentAt, SentBy: record.SentBy})
}

func (h *handler) unmarkSent(writer http.ResponseWriter, request *http.Request) {
	id := mux.Vars(request)["id"]
	if err := h.orchestrator.UnmarkSent(request.Context(), id); err != nil {
		h.respondLedgerError(writer, err)
		return
	}
	respondJSON(writer, http.StatusOK, sentState{ID: id, Sent: false})
}

func (h *handler) toggleSent(writer http.ResponseWriter, request *http.Request) {
	id := mux.Vars(request)["id"]
	record, sent, err := h.orchestrator.ToggleSent(request.Context(), id)
	if err != nil {
		h.respondLedgerError(writer, err)
		return
	}
	if !sent {
		respondJSON(writer, http.StatusOK, sentState{ID: id, Sent: false})
		return
	}
	sentAt := record.SentAt
	respondJSON(writer, http.StatusOK, sentState{ID: record.MessageID, Sent: true, SentAt: &sentAt, SentBy: record.SentBy})
}

func (h *handler) handleEvent(writer http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodyBytes)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		respondError(writer, http.StatusRequestEntityTooLarge, "request body too large", false)
		return
	}
	event, err := ingest.DecodeEvent(body)
	if err != nil {
		respondError(writer, http.StatusBadRequest, err.Error(), false)
		return
	}

	message, err := h.orchestrator.HandleEvent(request.Context(), event)
	switch {
	case err == nil && message != nil:
		respondJSON(writer, http.StatusOK, message)
	case err == nil, errors.Is(err, domain.ErrUnknownTransition), errors.Is(err, domain.ErrNotApplicable):
		writer.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrInvalidEvent):
		respondError(writer, http.StatusBadRequest, err.Error(), false)
	case errors.Is(err, gateway.ErrNotFound):
		respondError(writer, http.StatusNotFound, err.Error(), true)
	default:
		h.logger.Error("event handling failed", "error", err.Error())
		respondError(writer, http.StatusServiceUnavailable, err.Error(), true)
	}
}

func (h *handler) dayReminders(writer http.ResponseWriter, request *http.Request) {
	raw := mux.Vars(request)["date"]
	day, err := time.ParseInLocation(dateLayout, raw, h.location)
	if err != nil {
		respondError(writer, http.StatusBadRequest, "date must be YYYY-MM-DD", false)
		return
	}
	messages, err := h.orchestrator.DayReminders(request.Context(), day)
	if err != nil {
		h.logger.Error("day reminders failed", "date", raw, "error", err.Error())
		respondError(writer, http.StatusServiceUnavailable, err.Error(), true)
		return
	}
	respondJSON(writer, http.StatusOK, map[string]any{"date": raw, "messages": messages})
}

func (h *handler) listLedger(writer http.ResponseWriter, request *http.Request) {
	records, err := h.orchestrator.SentMessages(request.Context())
	if err != nil {
		h.logger.Error("ledger listing failed", "error", err.Error())
		respondError(writer, http.StatusServiceUnavailable, err.Error(), true)
		return
	}
	respondJSON(writer, http.StatusOK, map[string]any{"records": records})
}

// respondLedgerError maps mark/unmark failures; storage errors are retryable.
func (h *handler) respondLedgerError(writer http.ResponseWriter, err error) {
	if errors.Is(err, ledger.ErrInvalidID) {
		respondError(writer, http.StatusBadRequest, err.Error(), false)
		return
	}
	respondError(writer, http.StatusServiceUnavailable, err.Error(), true)
}

func respondJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}

func respondError(writer http.ResponseWriter, status int, message string, retryable bool) {
	respondJSON(writer, status, errorBody{Error: message, Retryable: retryable})
}
