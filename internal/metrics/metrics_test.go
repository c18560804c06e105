package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSweepSetsGauges(t *testing.T) {
	t.Parallel()

	m := New()
	start := time.Unix(1_750_000_000, 0)
	m.ObserveSweep(start, start.Add(250*time.Millisecond), 4, 2, true)

	if got := testutil.ToFloat64(m.messages.WithLabelValues("pending")); got != 4 {
		t.Fatalf("pending gauge = %v", got)
	}
	if got := testutil.ToFloat64(m.sweeps.WithLabelValues("partial")); got != 1 {
		t.Fatalf("partial sweeps = %v", got)
	}
	if got := testutil.ToFloat64(m.lastSweepUnixS); got != float64(start.Unix()) {
		t.Fatalf("last sweep = %v", got)
	}
}

func TestCountersAndHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.Candidate("reminder_today")
	m.Unresolved("birthday")
	m.FetchError("clients")
	m.LedgerOp("mark", nil)
	m.LedgerOp("mark", errors.New("down"))
	m.Event("client_created", "compiled")

	if got := testutil.ToFloat64(m.ledgerOps.WithLabelValues("mark", "error")); got != 1 {
		t.Fatalf("ledger errors = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{
		"reminders_candidates_total",
		"reminders_unresolved_templates_total",
		"reminders_fetch_errors_total",
		"reminders_events_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("metric %s missing from exposition", name)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Candidate("x")
	m.ObserveSweep(time.Now(), time.Now(), 0, 0, false)
	m.LedgerOp("mark", nil)
}
