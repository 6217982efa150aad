package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/obs"
	"tour-planning-service/internal/ports"

	"github.com/google/uuid"
)

// Postgres-backed implementation of the TourRepository port.
type PostgresTourRepository struct{ DB *sql.DB }

func NewPostgresTourRepository(db *sql.DB) *PostgresTourRepository {
	return &PostgresTourRepository{DB: db}
}

// Replace the stored snapshot of a planner.
func (r *PostgresTourRepository) SaveTour(ctx context.Context, planner string, snap domain.TourSnapshot) (err error) {
	defer obs.Time(ctx, "tours.SaveTour")(&err)

	if r.DB == nil {
		return errors.New("postgres tour repository: DB is nil")
	}

	trajectories, err := encodeTrajectories(snap.Trajectories)
	if err != nil {
		return fmt.Errorf("save tour: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save tour: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO tours (planner, version, state, depot_id, start_at, total_duration_ms, end_at, trajectories, saved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	ON CONFLICT (planner) DO UPDATE
	SET version = EXCLUDED.version,
		state = EXCLUDED.state,
		depot_id = EXCLUDED.depot_id,
		start_at = EXCLUDED.start_at,
		total_duration_ms = EXCLUDED.total_duration_ms,
		end_at = EXCLUDED.end_at,
		trajectories = EXCLUDED.trajectories,
		saved_at = now();
	`,
		planner,
		int64(snap.Version),
		snap.State.String(),
		int64(snap.Depot),
		snap.StartAt,
		snap.TotalDuration.Milliseconds(),
		snap.EndAt,
		string(trajectories),
	)
	if err != nil {
		return fmt.Errorf("save tour: upsert tours row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tour_stops WHERE planner = $1;`, planner); err != nil {
		return fmt.Errorf("save tour: clear stops: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO tour_stops (
		planner, position, demand_id, request_id, role,
		intersection_id, intersection_name, service_ms, arrival_at, departure_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`)
	if err != nil {
		return fmt.Errorf("save tour: prepare stop insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range snap.Stops {
		requestID := uuid.NullUUID{UUID: d.RequestID, Valid: d.RequestID != uuid.Nil}
		if _, err := stmt.ExecContext(ctx,
			planner, i, d.ID, requestID, d.Role.String(),
			int64(d.Intersection), d.IntersectionName, d.ServiceDuration.Milliseconds(),
			d.ArrivalAt, d.DepartureAt,
		); err != nil {
			return fmt.Errorf("save tour: insert stop %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save tour: commit tx: %w", err)
	}

	return nil
}

// Return the stored snapshot of a planner.
func (r *PostgresTourRepository) LoadTour(ctx context.Context, planner string) (_ domain.TourSnapshot, err error) {
	defer obs.Time(ctx, "tours.LoadTour")(&err)

	if r.DB == nil {
		return domain.TourSnapshot{}, errors.New("postgres tour repository: DB is nil")
	}

	var (
		snap         domain.TourSnapshot
		version      int64
		state        string
		depot        int64
		durationMS   int64
		trajectories string
	)
	row := r.DB.QueryRowContext(ctx, `
	SELECT version, state, depot_id, start_at, total_duration_ms, end_at, trajectories
	FROM tours
	WHERE planner = $1;
	`, planner)
	if err := row.Scan(&version, &state, &depot, &snap.StartAt, &durationMS, &snap.EndAt, &trajectories); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TourSnapshot{}, fmt.Errorf("load tour %q: %w", planner, ports.ErrTourNotFound)
		}
		return domain.TourSnapshot{}, fmt.Errorf("load tour %q: query tours table: %w", planner, err)
	}

	snap.Version = uint64(version)
	snap.Depot = domain.IntersectionID(depot)
	snap.TotalDuration = time.Duration(durationMS) * time.Millisecond
	if err := snap.State.UnmarshalText([]byte(state)); err != nil {
		return domain.TourSnapshot{}, fmt.Errorf("load tour %q: %w", planner, err)
	}
	if snap.Trajectories, err = decodeTrajectories([]byte(trajectories)); err != nil {
		return domain.TourSnapshot{}, fmt.Errorf("load tour %q: %w", planner, err)
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT demand_id, request_id, role, intersection_id, intersection_name, service_ms, arrival_at, departure_at
	FROM tour_stops
	WHERE planner = $1
	ORDER BY position;
	`, planner)
	if err != nil {
		return domain.TourSnapshot{}, fmt.Errorf("load tour %q: query tour_stops table: %w", planner, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d            domain.Demand
			requestID    uuid.NullUUID
			role         string
			intersection int64
			serviceMS    int64
		)
		if err := rows.Scan(&d.ID, &requestID, &role, &intersection, &d.IntersectionName, &serviceMS, &d.ArrivalAt, &d.DepartureAt); err != nil {
			return domain.TourSnapshot{}, fmt.Errorf("load tour %q: scan stop: %w", planner, err)
		}
		if d.Role, err = domain.ParseRole(role); err != nil {
			return domain.TourSnapshot{}, fmt.Errorf("load tour %q: %w", planner, err)
		}
		if requestID.Valid {
			d.RequestID = requestID.UUID
		}
		d.Intersection = domain.IntersectionID(intersection)
		d.ServiceDuration = time.Duration(serviceMS) * time.Millisecond
		snap.Stops = append(snap.Stops, d)
	}
	if err := rows.Err(); err != nil {
		return domain.TourSnapshot{}, fmt.Errorf("load tour %q: row iteration: %w", planner, err)
	}

	return snap, nil
}

func (r *PostgresTourRepository) DeleteTour(ctx context.Context, planner string) (err error) {
	defer obs.Time(ctx, "tours.DeleteTour")(&err)

	if r.DB == nil {
		return errors.New("postgres tour repository: DB is nil")
	}
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM tours WHERE planner = $1;`, planner); err != nil {
		return fmt.Errorf("delete tour %q: %w", planner, err)
	}
	return nil
}
