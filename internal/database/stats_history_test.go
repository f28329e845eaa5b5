package database

import (
	"errors"
	"testing"
	"time"

	"github.com/fusionmc/server/internal/culling"
	"github.com/fusionmc/server/internal/testutil"
	"github.com/google/uuid"
)

func setupHistory(t *testing.T, retention int) *StatsHistory {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.CleanupTestDB(t, db)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	history := NewStatsHistory(db, retention)
	if err := history.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	return history
}

func TestStatsHistory_RecordAndRead(t *testing.T) {
	history := setupHistory(t, 0)

	rec := &StatsRecord{
		Tick: 42,
		Culling: culling.CullingStats{
			BlockEntitiesVisible: 3,
			BlockEntitiesCulled:  1,
			ChunksVisible:        10,
			ChunksCulled:         5,
		},
		Cache:           culling.CacheStats{ChunkCount: 15, EntityCount: 2},
		Efficiency:      0.25,
		EnabledFeatures: []string{"frustum", "lod"},
		RecordedBy:      "steve",
	}
	if err := history.RecordSnapshot(rec); err != nil {
		t.Fatalf("RecordSnapshot() failed: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("Expected an ID to be assigned")
	}

	records, err := history.RecentSnapshots(10)
	if err != nil {
		t.Fatalf("RecentSnapshots() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != rec.ID || got.Tick != 42 || got.Culling != rec.Culling {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if got.Cache.ChunkCount != 15 || got.Cache.Capacity != culling.CacheCapacity {
		t.Errorf("Unexpected cache stats %+v", got.Cache)
	}
	if len(got.EnabledFeatures) != 2 || got.EnabledFeatures[1] != "lod" {
		t.Errorf("Unexpected features %v", got.EnabledFeatures)
	}
}

func TestStatsHistory_OrderAndRetention(t *testing.T) {
	history := setupHistory(t, 3)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := &StatsRecord{Tick: uint64(i), RecordedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := history.RecordSnapshot(rec); err != nil {
			t.Fatalf("RecordSnapshot(%d) failed: %v", i, err)
		}
	}

	records, err := history.RecentSnapshots(0)
	if err != nil {
		t.Fatalf("RecentSnapshots() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected retention to keep 3 rows, got %d", len(records))
	}
	for i, want := range []uint64{4, 3, 2} {
		if records[i].Tick != want {
			t.Errorf("records[%d].Tick = %d, want %d", i, records[i].Tick, want)
		}
	}
}

func TestStatsHistory_MissingTable(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CleanupTestDB(t, db)

	history := NewStatsHistory(db, 0)
	if _, err := history.RecentSnapshots(5); !errors.Is(err, ErrHistoryUnavailable) {
		t.Errorf("Expected ErrHistoryUnavailable, got %v", err)
	}
	if err := history.RecordSnapshot(&StatsRecord{}); !errors.Is(err, ErrHistoryUnavailable) {
		t.Errorf("Expected ErrHistoryUnavailable, got %v", err)
	}
}

func TestStatsHistory_NilRecord(t *testing.T) {
	history := NewStatsHistory(nil, 0)
	if err := history.RecordSnapshot(nil); err == nil {
		t.Error("Expected error for nil record")
	}
}
