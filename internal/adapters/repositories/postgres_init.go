package repositories

import (
	"database/sql"
	"errors"
	"fmt"
)

// Initialize the Postgres database schema.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createToursQuery := `
	CREATE TABLE IF NOT EXISTS tours (
		planner TEXT PRIMARY KEY,
		version BIGINT NOT NULL,
		state TEXT NOT NULL,
		depot_id BIGINT NOT NULL,
		start_at TIMESTAMPTZ NOT NULL,
		total_duration_ms BIGINT NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		trajectories JSONB NOT NULL,
		saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createTourStopsQuery := `
	CREATE TABLE IF NOT EXISTS tour_stops (
		planner TEXT NOT NULL REFERENCES tours(planner) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		demand_id UUID NOT NULL,
		request_id UUID,
		role TEXT NOT NULL,
		intersection_id BIGINT NOT NULL,
		intersection_name TEXT NOT NULL DEFAULT '',
		service_ms BIGINT NOT NULL,
		arrival_at TIMESTAMPTZ NOT NULL,
		departure_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (planner, position)
	);
	`

	createPathCacheQuery := `
	CREATE TABLE IF NOT EXISTS path_cache (
		network_id TEXT NOT NULL,
		source_id BIGINT NOT NULL,
		target_id BIGINT NOT NULL,
		weight DOUBLE PRECISION NOT NULL,
		hops JSONB NOT NULL,
		PRIMARY KEY (network_id, source_id, target_id)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_tour_stops_demand
	ON tour_stops(demand_id);
	`

	statements := []string{
		createToursQuery,
		createTourStopsQuery,
		createPathCacheQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Remove every cached path row of a network.
func PurgePathCache(db *sql.DB, network string) (int64, error) {
	if db == nil {
		return 0, errors.New("purge path cache: DB is nil")
	}

	res, err := db.Exec(`DELETE FROM path_cache WHERE network_id = $1;`, network)
	if err != nil {
		return 0, fmt.Errorf("purge path cache: delete network %q: %w", network, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge path cache: rows affected: %w", err)
	}
	return n, nil
}
