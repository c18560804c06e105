package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reminders/internal/clock"
	"reminders/internal/config"
	"reminders/internal/domain"
	"reminders/test/testutil"
)

func newTestService(t *testing.T, body string) *Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	source, err := config.FromCLI(path, "")
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	service, err := NewService(source, clock.Fixed(testutil.WorkshopDay))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = service.shutdown() })
	return service
}

func sqliteServiceConfig(dsn, ledgerBackend string) string {
	return fmt.Sprintf(`
[service]
timezone = "Europe/Rome"
sweep_interval_sec = -1
sent_by = "banco"

[log.console]
enabled = true
level = "error"
format = "line"

[http]
enabled = true
listen = "127.0.0.1:0"

[gateway]
driver = "sqlite"
dsn = "%s"
migrate = true

[ledger]
backend = "%s"
`, dsn, ledgerBackend)
}

func serve(service *Service, method, path string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, nil)
	response := httptest.NewRecorder()
	service.Handler().ServeHTTP(response, request)
	return response
}

func TestServiceServesSweepAndSentToggle(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{config.LedgerBackendSQL, config.LedgerBackendMemory} {
		backend := backend
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			dsn := testutil.SQLiteDSN(t)
			service := newTestService(t, sqliteServiceConfig(dsn, backend))
			testutil.SeedWorkshop(t, dsn, testutil.WorkshopDay)

			response := serve(service, http.MethodGet, "/api/v1/messages")
			if response.Code != http.StatusOK {
				t.Fatalf("messages status %d: %s", response.Code, response.Body.String())
			}
			var result domain.SweepResult
			if err := json.Unmarshal(response.Body.Bytes(), &result); err != nil {
				t.Fatalf("decode sweep: %v", err)
			}
			if result.Pending != 5 || result.Partial {
				t.Fatalf("unexpected sweep: pending=%d partial=%v ids=%v", result.Pending, result.Partial, messageIDs(result.Messages))
			}
			if result.Messages[0].ID != "reminder_oggi_A9" {
				t.Fatalf("expected today's reminder first, got %s", result.Messages[0].ID)
			}

			response = serve(service, http.MethodPost, "/api/v1/messages/reminder_oggi_A9/sent")
			if response.Code != http.StatusOK {
				t.Fatalf("mark status %d: %s", response.Code, response.Body.String())
			}

			response = serve(service, http.MethodGet, "/api/v1/messages?status=sent")
			if err := json.Unmarshal(response.Body.Bytes(), &result); err != nil {
				t.Fatalf("decode sent sweep: %v", err)
			}
			if len(result.Messages) != 1 || result.Messages[0].ID != "reminder_oggi_A9" || result.Messages[0].SentAt == nil {
				t.Fatalf("unexpected sent list: %+v", result.Messages)
			}

			response = serve(service, http.MethodPost, "/api/v1/messages/reminder_oggi_A9/toggle")
			if response.Code != http.StatusOK || !strings.Contains(response.Body.String(), `"sent":false`) {
				t.Fatalf("toggle: %d %s", response.Code, response.Body.String())
			}
		})
	}
}

func TestServiceDayRemindersAndMetrics(t *testing.T) {
	t.Parallel()

	dsn := testutil.SQLiteDSN(t)
	service := newTestService(t, sqliteServiceConfig(dsn, config.LedgerBackendSQL))
	testutil.SeedWorkshop(t, dsn, testutil.WorkshopDay)

	response := serve(service, http.MethodGet, "/api/v1/appointments/2025-07-02/reminders")
	if response.Code != http.StatusOK || !strings.Contains(response.Body.String(), "reminder_domani_A10") {
		t.Fatalf("day reminders: %d %s", response.Code, response.Body.String())
	}

	_ = serve(service, http.MethodGet, "/api/v1/messages")
	response = serve(service, http.MethodGet, "/metrics")
	if response.Code != http.StatusOK {
		t.Fatalf("metrics status %d", response.Code)
	}
	if !strings.Contains(response.Body.String(), `reminders_sweeps_total{result="ok"} 1`) {
		t.Fatalf("sweep counter missing from metrics output")
	}
}

func TestServiceHealthAndReady(t *testing.T) {
	t.Parallel()

	dsn := testutil.SQLiteDSN(t)
	service := newTestService(t, sqliteServiceConfig(dsn, config.LedgerBackendMemory))

	if response := serve(service, http.MethodGet, "/healthz"); response.Code != http.StatusOK {
		t.Fatalf("health status %d", response.Code)
	}
	if response := serve(service, http.MethodGet, "/readyz"); response.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before run must be 503, got %d", response.Code)
	}
	service.readyFlag.Store(true)
	if response := serve(service, http.MethodGet, "/readyz"); response.Code != http.StatusOK {
		t.Fatalf("ready status %d", response.Code)
	}
}

func TestNewServiceRejectsUnreachableRedisLedger(t *testing.T) {
	t.Parallel()

	body := sqliteServiceConfig(testutil.SQLiteDSN(t), config.LedgerBackendRedis) + `
[ledger.redis]
addr = "127.0.0.1:1"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	source, err := config.FromCLI(path, "")
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	if _, err := NewService(source, clock.Fixed(testutil.WorkshopDay)); err == nil {
		t.Fatalf("expected redis ping failure")
	}
}
