package e2e

import (
	"net/http"
	"strings"
	"testing"

	"reminders/internal/domain"
	"reminders/test/testutil"
)

func TestServiceSmokeSweepMarkAndEvent(t *testing.T) {
	port, err := testutil.FreePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	dsn := testutil.SQLiteDSN(t)
	service := newServiceFromConfig(t, e2eConfig(port, dsn, `
[ledger]
backend = "sql"
cache_ttl_sec = 30
`))
	testutil.SeedWorkshop(t, dsn, testutil.WorkshopDay)

	cancel, done := runService(t, service)
	client := newClient(port)
	waitReady(t, client)

	waitFor(t, 5e9, func() bool {
		response, err := client.R().Get("/metrics")
		return err == nil && strings.Contains(response.String(), `reminders_sweeps_total{result="ok"} 1`)
	})

	var sweep domain.SweepResult
	response, err := client.R().SetResult(&sweep).Get("/api/v1/messages")
	if err != nil || response.StatusCode() != http.StatusOK {
		t.Fatalf("list messages: %v %s", err, response.String())
	}
	if sweep.Pending != 5 {
		t.Fatalf("expected five pending messages, got %d", sweep.Pending)
	}

	response, err = client.R().Post("/api/v1/messages/preventivo_elaborato_Q1/sent")
	if err != nil || response.StatusCode() != http.StatusOK {
		t.Fatalf("mark sent: %v %s", err, response.String())
	}

	var message domain.CompiledMessage
	response, err = client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"kind":"quote_status_changed","subject_id":"Q1","previous_status":"draft","status":"sent"}`).
		SetResult(&message).
		Post("/api/v1/events")
	if err != nil || response.StatusCode() != http.StatusOK {
		t.Fatalf("post event: %v %s", err, response.String())
	}
	if message.ID != "preventivo_elaborato_Q1" || !message.Sent {
		t.Fatalf("point mode must reuse the sweep id and ledger state, got %+v", message)
	}

	response, err = client.R().
		SetBody(`{"kind":"quote_status_changed","subject_id":"Q1","previous_status":"sent","status":"rejected"}`).
		Post("/api/v1/events")
	if err != nil || response.StatusCode() != http.StatusNoContent {
		t.Fatalf("unknown transition must yield 204: %v %d", err, response.StatusCode())
	}

	sweep = domain.SweepResult{}
	response, err = client.R().SetResult(&sweep).SetQueryParam("status", "pending").Get("/api/v1/messages")
	if err != nil || response.StatusCode() != http.StatusOK {
		t.Fatalf("list pending: %v", err)
	}
	for _, pending := range sweep.Messages {
		if pending.ID == "preventivo_elaborato_Q1" {
			t.Fatalf("marked message still pending")
		}
	}

	response, err = client.R().Get("/api/v1/ledger")
	if err != nil || !strings.Contains(response.String(), "preventivo_elaborato_Q1") {
		t.Fatalf("ledger listing: %v %s", err, response.String())
	}

	cancel()
	waitServiceStop(t, done)
}
