package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fusionmc/server/internal/culling"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrHistoryUnavailable is returned when the history table does not exist.
var ErrHistoryUnavailable = errors.New("culling stats history is not initialized")

// MaxHistoryLimit caps how many rows RecentSnapshots returns.
const MaxHistoryLimit = 500

// undefinedTable is the PostgreSQL SQLSTATE for a missing relation.
const undefinedTable = "42P01"

const schema = `
CREATE TABLE IF NOT EXISTS culling_stats (
	id                      UUID PRIMARY KEY,
	tick                    BIGINT NOT NULL,
	block_entities_visible  INTEGER NOT NULL,
	block_entities_culled   INTEGER NOT NULL,
	entities_visible        INTEGER NOT NULL,
	entities_culled         INTEGER NOT NULL,
	chunks_visible          INTEGER NOT NULL,
	chunks_culled           INTEGER NOT NULL,
	cache_chunks            INTEGER NOT NULL,
	cache_entities          INTEGER NOT NULL,
	efficiency              DOUBLE PRECISION NOT NULL,
	enabled_features        TEXT[] NOT NULL DEFAULT '{}',
	recorded_by             TEXT NOT NULL DEFAULT '',
	recorded_at             TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS culling_stats_recorded_at_idx ON culling_stats (recorded_at DESC);
`

// StatsRecord is one persisted statistics snapshot.
type StatsRecord struct {
	ID              uuid.UUID            `json:"id"`
	Tick            uint64               `json:"tick"`
	Culling         culling.CullingStats `json:"culling"`
	Cache           culling.CacheStats   `json:"cache"`
	Efficiency      float64              `json:"efficiency"`
	EnabledFeatures []string             `json:"enabled_features"`
	RecordedBy      string               `json:"recorded_by"`
	RecordedAt      time.Time            `json:"recorded_at"`
}

// StatsHistory reads and writes the culling_stats table
type StatsHistory struct {
	db        *sql.DB
	retention int
}

// NewStatsHistory creates a history store. A positive retention keeps only the newest
// retention rows after each insert.
func NewStatsHistory(db *sql.DB, retention int) *StatsHistory {
	return &StatsHistory{db: db, retention: retention}
}

// EnsureSchema creates the history table if it is missing.
func (s *StatsHistory) EnsureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create culling_stats table: %w", err)
	}
	return nil
}

// RecordSnapshot inserts rec, assigning an ID and timestamp when they are unset, and
// prunes rows beyond the retention limit in the same transaction.
func (s *StatsHistory) RecordSnapshot(rec *StatsRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	if rec.EnabledFeatures == nil {
		rec.EnabledFeatures = []string{}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op once committed.
		_ = tx.Rollback()
	}()

	_, err = tx.Exec(`
		INSERT INTO culling_stats (
			id, tick,
			block_entities_visible, block_entities_culled,
			entities_visible, entities_culled,
			chunks_visible, chunks_culled,
			cache_chunks, cache_entities,
			efficiency, enabled_features, recorded_by, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rec.ID, int64(rec.Tick),
		rec.Culling.BlockEntitiesVisible, rec.Culling.BlockEntitiesCulled,
		rec.Culling.EntitiesVisible, rec.Culling.EntitiesCulled,
		rec.Culling.ChunksVisible, rec.Culling.ChunksCulled,
		rec.Cache.ChunkCount, rec.Cache.EntityCount,
		rec.Efficiency, pq.Array(rec.EnabledFeatures), rec.RecordedBy, rec.RecordedAt,
	)
	if err != nil {
		return classify("failed to insert culling stats", err)
	}

	if s.retention > 0 {
		_, err = tx.Exec(`
			DELETE FROM culling_stats
			WHERE id IN (
				SELECT id FROM culling_stats
				ORDER BY recorded_at DESC
				OFFSET $1
			)
		`, s.retention)
		if err != nil {
			return classify("failed to prune culling stats", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit records, newest first.
func (s *StatsHistory) RecentSnapshots(limit int) ([]StatsRecord, error) {
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.db.Query(`
		SELECT id, tick,
		       block_entities_visible, block_entities_culled,
		       entities_visible, entities_culled,
		       chunks_visible, chunks_culled,
		       cache_chunks, cache_entities,
		       efficiency, enabled_features, recorded_by, recorded_at
		FROM culling_stats
		ORDER BY recorded_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify("failed to query culling stats", err)
	}
	defer rows.Close()

	records := make([]StatsRecord, 0)
	for rows.Next() {
		var rec StatsRecord
		var tick int64
		if err := rows.Scan(
			&rec.ID, &tick,
			&rec.Culling.BlockEntitiesVisible, &rec.Culling.BlockEntitiesCulled,
			&rec.Culling.EntitiesVisible, &rec.Culling.EntitiesCulled,
			&rec.Culling.ChunksVisible, &rec.Culling.ChunksCulled,
			&rec.Cache.ChunkCount, &rec.Cache.EntityCount,
			&rec.Efficiency, pq.Array(&rec.EnabledFeatures), &rec.RecordedBy, &rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan culling stats: %w", err)
		}
		rec.Tick = uint64(tick)
		rec.Cache.Capacity = culling.CacheCapacity
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate culling stats: %w", err)
	}
	return records, nil
}

// classify maps a missing table to ErrHistoryUnavailable and wraps everything else.
func classify(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTable {
		return fmt.Errorf("%s: %w", msg, ErrHistoryUnavailable)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
