package e2e

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"reminders/test/testutil"
)

const (
	e2eEventsStream = "REMINDERS_EVENTS_E2E"
	e2eEventsSubj   = "reminders.e2e.events"
)

func TestNATSEventsAndKVLedger(t *testing.T) {
	natsURL, stopNATS := testutil.StartLocalNATSServer(t)
	defer stopNATS()
	testutil.EnsureStream(t, natsURL, e2eEventsStream, e2eEventsSubj)

	port, err := testutil.FreePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	dsn := testutil.SQLiteDSN(t)
	service := newServiceFromConfig(t, e2eConfig(port, dsn, fmt.Sprintf(`
[ledger]
backend = "nats"
cache_ttl_sec = -1

[ledger.nats]
bucket = "reminders_sent_e2e"
allow_create_bucket = true

[ingest.nats]
enabled = true
url = ["%s"]
subject = "%s"
stream = "%s"
consumer_name = "reminders-e2e"
deliver_group = "reminders-e2e-workers"
ack_wait_sec = 5
nack_delay_ms = 100
max_deliver = 3
`, natsURL, e2eEventsSubj, e2eEventsStream)))
	testutil.SeedWorkshop(t, dsn, testutil.WorkshopDay)

	cancel, done := runService(t, service)
	client := newClient(port)
	waitReady(t, client)

	testutil.Publish(t, natsURL, e2eEventsSubj, []byte(`[
		{"kind":"quote_status_changed","subject_id":"Q1","previous_status":"draft","status":"sent"},
		{"kind":"quote_status_changed","subject_id":"Q2","previous_status":"sent","status":"rejected"}
	]`))

	waitFor(t, 8*time.Second, func() bool {
		response, err := client.R().Get("/metrics")
		if err != nil {
			return false
		}
		body := response.String()
		return strings.Contains(body, `reminders_events_total{kind="quote_status_changed",result="compiled"} 1`) &&
			strings.Contains(body, `reminders_events_total{kind="quote_status_changed",result="skipped"} 1`)
	})

	response, err := client.R().Post("/api/v1/messages/auguri_compleanno_C3/toggle")
	if err != nil || response.StatusCode() != http.StatusOK || !strings.Contains(response.String(), `"sent":true`) {
		t.Fatalf("toggle: %v %s", err, response.String())
	}
	response, err = client.R().Get("/api/v1/ledger")
	if err != nil || !strings.Contains(response.String(), "auguri_compleanno_C3") {
		t.Fatalf("kv ledger listing: %v %s", err, response.String())
	}

	cancel()
	waitServiceStop(t, done)
}
