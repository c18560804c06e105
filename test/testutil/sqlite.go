package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// WorkshopDay is the fixed "today" of the seeded workshop.
var WorkshopDay = time.Date(2025, time.July, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600))

// SQLiteDSN returns a file DSN inside the test temp dir.
// Params: test handle.
// Returns: modernc sqlite DSN with a busy timeout.
func SQLiteDSN(tb testing.TB) string {
	tb.Helper()
	return "file:" + filepath.Join(tb.TempDir(), "reminders.db") + "?_pragma=busy_timeout(5000)"
}

// SeedWorkshop inserts one client/quote/appointment/template set relative to now.
// Params: test handle, sqlite DSN with migrated schema, and the workshop "now".
// Returns: rows stored or test fails.
//
// Seeded triggers at now: quote_processed Q1, quote_stale_reminder Q2,
// reminder_today A9, reminder_tomorrow A10, birthday C3.
func SeedWorkshop(tb testing.TB, dsn string, now time.Time) {
	tb.Helper()

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	old := now.AddDate(-1, 0, 0).UTC()
	today := now.Format("2006-01-02")
	tomorrow := now.AddDate(0, 0, 1).Format("2006-01-02")
	birthday := now.AddDate(-40, 0, 0).Format("2006-01-02")

	rows := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO clients (id, name, phone, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"C1", "Mario Rossi", "+39 333 1111111", "mario@example.it", old, old}},
		{`INSERT INTO clients (id, name, phone, birth_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"C3", "Anna Bianchi", "+39 333 3333333", birthday, old, old}},
		{`INSERT INTO quotes (id, number, client_id, plate, vehicle_model, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{"Q1", "2025/041", "C1", "AB123CD", "Fiat Panda", "sent", old, now.Add(-10 * time.Hour).UTC()}},
		{`INSERT INTO quotes (id, number, client_id, plate, vehicle_model, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{"Q2", "2025/017", "C1", "XY987ZW", "Lancia Ypsilon", "sent", old, now.AddDate(0, 0, -16).UTC()}},
		{`INSERT INTO appointments (id, client_id, plate, date, time, status) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"A9", "C1", "AB123CD", today, "09:30", "scheduled"}},
		{`INSERT INTO appointments (id, client_id, plate, date, time, status) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"A10", "C3", "GG555HH", tomorrow, "15:00", "scheduled"}},
		{`INSERT INTO message_templates (id, title, category, content, ordering_key) VALUES (?, ?, ?, ?, ?)`,
			[]any{"T1", "Preventivo elaborato", "preventivi", "Ciao {{nome}}, il preventivo per *targa* è pronto.", 1}},
		{`INSERT INTO message_templates (id, title, category, content, ordering_key) VALUES (?, ?, ?, ?, ?)`,
			[]any{"T2", "Sollecito preventivo", "preventivi", "Ciao {{nome}}, hai valutato il preventivo per {{targa}}?", 2}},
		{`INSERT INTO message_templates (id, title, category, content, ordering_key) VALUES (?, ?, ?, ?, ?)`,
			[]any{"T3", "Promemoria oggi", "appuntamenti", "Ciao {{nome}}, ti aspettiamo oggi alle {{ora_appuntamento}}.", 3}},
		{`INSERT INTO message_templates (id, title, category, content, ordering_key) VALUES (?, ?, ?, ?, ?)`,
			[]any{"T4", "Promemoria domani", "appuntamenti", "Ciao {{nome}}, ti aspettiamo domani alle {{ora_appuntamento}}.", 4}},
		{`INSERT INTO message_templates (id, title, category, content, ordering_key) VALUES (?, ?, ?, ?, ?)`,
			[]any{"T5", "Buon compleanno", "auguri", "Tanti auguri {{nome}} per i tuoi {{anni}} anni!", 5}},
	}
	for _, row := range rows {
		if _, err := db.Exec(row.query, row.args...); err != nil {
			tb.Fatalf("seed %q: %v", row.query, err)
		}
	}
}
