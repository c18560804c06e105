package gateway

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT,
	email      TEXT,
	password   TEXT,
	address    TEXT,
	birth_date DATE,
	created_at TIMESTAMP,
	updated_at TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS quotes (
	id            TEXT PRIMARY KEY,
	number        TEXT,
	client_id     TEXT REFERENCES clients(id),
	plate         TEXT,
	vehicle_model TEXT,
	status        TEXT NOT NULL DEFAULT 'draft',
	created_at    TIMESTAMP,
	updated_at    TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS appointments (
	id            TEXT PRIMARY KEY,
	client_id     TEXT REFERENCES clients(id),
	quote_id      TEXT REFERENCES quotes(id),
	plate         TEXT,
	vehicle_model TEXT,
	date          DATE NOT NULL,
	time          TEXT,
	status        TEXT NOT NULL DEFAULT 'scheduled'
)`,
	`CREATE INDEX IF NOT EXISTS appointments_date_idx ON appointments (date)`,
	`CREATE TABLE IF NOT EXISTS message_templates (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	category     TEXT NOT NULL,
	content      TEXT NOT NULL,
	ordering_key INTEGER NOT NULL DEFAULT 0
)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	phone      TEXT,
	email      TEXT,
	password   TEXT,
	address    TEXT,
	birth_date DATE,
	created_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS quotes (
	id            TEXT PRIMARY KEY,
	number        TEXT,
	client_id     TEXT REFERENCES clients(id),
	plate         TEXT,
	vehicle_model TEXT,
	status        TEXT NOT NULL DEFAULT 'draft',
	created_at    TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS appointments (
	id            TEXT PRIMARY KEY,
	client_id     TEXT REFERENCES clients(id),
	quote_id      TEXT REFERENCES quotes(id),
	plate         TEXT,
	vehicle_model TEXT,
	date          DATE NOT NULL,
	time          TEXT,
	status        TEXT NOT NULL DEFAULT 'scheduled'
)`,
	`CREATE INDEX IF NOT EXISTS appointments_date_idx ON appointments (date)`,
	`CREATE TABLE IF NOT EXISTS message_templates (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	category     TEXT NOT NULL,
	content      TEXT NOT NULL,
	ordering_key INTEGER NOT NULL DEFAULT 0
)`,
}

// Migrate creates the entity tables when missing.
// Params: context.
// Returns: first DDL error.
func (g *SQLGateway) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if sqlx.BindType(g.db.DriverName()) == sqlx.DOLLAR {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
