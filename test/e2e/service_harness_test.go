package e2e

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"

	"reminders/internal/app"
	"reminders/internal/clock"
	"reminders/internal/config"
	"reminders/test/testutil"
)

// e2eConfig builds a service config for a sqlite gateway and the given ledger/ingest sections.
// Params: HTTP port, sqlite DSN, and extra TOML sections.
// Returns: TOML document.
func e2eConfig(port int, dsn, extra string) string {
	return fmt.Sprintf(`
[service]
name = "reminders-e2e"
timezone = "Europe/Rome"
sweep_interval_sec = -1
sweep_on_start = true
sent_by = "banco"

[log.console]
enabled = true
level = "error"
format = "line"

[http]
enabled = true
listen = "127.0.0.1:%d"

[gateway]
driver = "sqlite"
dsn = "%s"
migrate = true
%s
`, port, dsn, extra)
}

// newServiceFromConfig writes config to disk and creates Service from it.
// Params: test handle and TOML body.
// Returns: initialized service instance.
func newServiceFromConfig(t *testing.T, body string) *app.Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	source, err := config.FromCLI(path, "")
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	service, err := app.NewService(source, clock.Fixed(testutil.WorkshopDay))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

// runService starts service in background with cancellable context.
// Params: test handle and initialized service.
// Returns: cancel callback and done channel with Run result.
func runService(t *testing.T, service *app.Service) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx)
	}()
	return cancel, done
}

// newClient returns a resty client bound to the service port.
func newClient(port int) *resty.Client {
	return resty.New().
		SetBaseURL(fmt.Sprintf("http://127.0.0.1:%d", port)).
		SetTimeout(3 * time.Second)
}

// waitReady waits for /readyz endpoint to return 200.
// Params: test handle and HTTP client.
// Returns: service is ready or test fails on timeout.
func waitReady(t *testing.T, client *resty.Client) {
	t.Helper()
	waitFor(t, 8*time.Second, func() bool {
		response, err := client.R().Get("/readyz")
		return err == nil && response.StatusCode() == http.StatusOK
	})
}

// waitServiceStop asserts service Run exits without error after cancellation.
// Params: test handle and done channel returned by runService.
// Returns: test fails if stop timeout/error happens.
func waitServiceStop(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case runErr := <-done:
		if runErr != nil {
			t.Fatalf("service run error: %v", runErr)
		}
	case <-time.After(8 * time.Second):
		t.Fatalf("service did not stop after cancel")
	}
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for condition")
}
