package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/obs"
	"tour-planning-service/internal/ports"
)

// SQLPathCache is a Postgres-backed cache of shortest path rows.
// Hops are stored as a JSON array of outgoing segment indices.
type SQLPathCache struct {
	DB *sql.DB
}

func NewSQLPathCache(db *sql.DB) *SQLPathCache {
	return &SQLPathCache{DB: db}
}

// Fetch the cached row for one source.
func (s *SQLPathCache) GetRow(
	ctx context.Context,
	network string,
	source domain.IntersectionID,
) (_ map[domain.IntersectionID]ports.PathRecord, err error) {
	defer obs.Time(ctx, "paths.cache.sql.GetRow")(&err)

	if s.DB == nil {
		return nil, errors.New("path cache: db is nil")
	}

	if strings.TrimSpace(network) == "" {
		return nil, errors.New("get path cache: network must not be empty")
	}

	q := `
	SELECT target_id, weight, hops
	FROM path_cache
	WHERE network_id = $1
		AND source_id = $2;
	`

	rows, err := s.DB.QueryContext(ctx, q, network, int64(source))
	if err != nil {
		return nil, fmt.Errorf("get path cache: query path_cache table: %w", err)
	}
	defer rows.Close()

	out := map[domain.IntersectionID]ports.PathRecord{}
	for rows.Next() {
		var target int64
		var weight float64
		var hops string
		if err := rows.Scan(&target, &weight, &hops); err != nil {
			return nil, fmt.Errorf("get path cache: scan rows: %w", err)
		}

		rec := ports.PathRecord{To: domain.IntersectionID(target), Weight: weight}
		if err := json.Unmarshal([]byte(hops), &rec.Hops); err != nil {
			return nil, fmt.Errorf("get path cache: decode hops for target %d: %w", target, err)
		}
		out[rec.To] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get path cache: row iteration: %w", err)
	}

	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Store a row for a single source, replacing existing targets.
func (s *SQLPathCache) PutRow(
	ctx context.Context,
	network string,
	source domain.IntersectionID,
	row map[domain.IntersectionID]ports.PathRecord,
) (err error) {
	defer obs.Time(ctx, "paths.cache.sql.PutRow")(&err)

	if s.DB == nil {
		return errors.New("path cache: db is nil")
	}

	if strings.TrimSpace(network) == "" {
		return errors.New("insert path cache: network must not be empty")
	}

	if len(row) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert path cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO path_cache (network_id, source_id, target_id, weight, hops)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (network_id, source_id, target_id) DO UPDATE
	SET weight = EXCLUDED.weight,
		hops = EXCLUDED.hops;
	`)
	if err != nil {
		return fmt.Errorf("insert path cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for to, r := range row {
		hops, err := json.Marshal(r.Hops)
		if err != nil {
			return fmt.Errorf("insert path cache target=%d: encode hops: %w", to, err)
		}
		if r.Hops == nil {
			hops = []byte("[]")
		}

		if _, err := stmt.ExecContext(ctx, network, int64(source), int64(to), r.Weight, string(hops)); err != nil {
			return fmt.Errorf("insert path cache target=%d: %w", to, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert path cache commit: %w", err)
	}

	return nil
}
