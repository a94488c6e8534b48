package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is idempotent; Migrate can run on every deploy.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS leases (
		id                           TEXT PRIMARY KEY,
		housing_unit_id              TEXT NOT NULL,
		status                       TEXT NOT NULL,
		lease_type                   TEXT NOT NULL,
		signature_date               DATE,
		start_date                   DATE,
		end_date                     DATE,
		duration_months              INTEGER NOT NULL,
		notice_period_months         INTEGER NOT NULL,
		initial_rent                 NUMERIC(12,2) NOT NULL,
		initial_charges              NUMERIC(12,2) NOT NULL,
		current_rent                 NUMERIC(12,2) NOT NULL,
		charges_type                 TEXT NOT NULL,
		charges_description          TEXT NOT NULL DEFAULT '',
		base_index_value             NUMERIC(10,4),
		base_index_month             DATE,
		indexation_notice_days       INTEGER NOT NULL,
		indexation_anniversary_month INTEGER NOT NULL DEFAULT 0,
		details                      JSONB NOT NULL DEFAULT '{}',
		version                      BIGINT NOT NULL,
		created_at                   TIMESTAMPTZ NOT NULL,
		updated_at                   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leases_unit_status_idx ON leases (housing_unit_id, status)`,
	`DROP INDEX IF EXISTS leases_one_active_per_unit`,
	`CREATE UNIQUE INDEX IF NOT EXISTS leases_one_open_per_unit ON leases (housing_unit_id) WHERE status IN ('DRAFT', 'ACTIVE')`,
	`CREATE TABLE IF NOT EXISTS lease_tenants (
		lease_id  TEXT NOT NULL REFERENCES leases (id) ON DELETE CASCADE,
		person_id TEXT NOT NULL,
		role      TEXT NOT NULL,
		position  INTEGER NOT NULL,
		added_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (lease_id, person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS lease_adjustments (
		id                     TEXT PRIMARY KEY,
		lease_id               TEXT NOT NULL REFERENCES leases (id) ON DELETE CASCADE,
		seq                    BIGINT NOT NULL,
		field                  TEXT NOT NULL,
		old_value              NUMERIC(12,2) NOT NULL,
		new_value              NUMERIC(12,2) NOT NULL,
		reason                 TEXT NOT NULL,
		effective_date         DATE NOT NULL,
		created_at             TIMESTAMPTZ NOT NULL,
		new_index_value        NUMERIC(10,4),
		new_index_month        DATE,
		notification_sent_date DATE,
		notes                  TEXT,
		UNIQUE (lease_id, seq)
	)`,
}

// Migrate creates the lease tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
