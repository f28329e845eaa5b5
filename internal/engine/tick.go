package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/fusionmc/server/internal/culling"
	"github.com/fusionmc/server/internal/performance"
)

// TickReport says what the host tick did besides counting.
type TickReport struct {
	Tick         uint64             `json:"tick"`
	Maintenance  bool               `json:"maintenance"`
	CacheCleared bool               `json:"cache_cleared"`
	Cache        culling.CacheStats `json:"cache"`
	StatsDumped  bool               `json:"stats_dumped"`
}

// Tick advances the host tick counter. Every UpdateInterval ticks it runs maintenance,
// which clears the whole result cache once the chunk container exceeds the watchdog
// threshold. In debug mode it dumps detailed statistics at most once per StatsInterval.
func (e *Engine) Tick() TickReport {
	report := TickReport{Tick: e.ticks.Add(1)}
	debug := e.Toggles().Debug

	if report.Tick%uint64(e.settings.UpdateInterval) == 0 {
		span := e.profiler.Start(performance.PassMaintenance)
		report.Maintenance = true
		report.Cache = e.cache.Stats()
		if report.Cache.ChunkCount > e.settings.CacheWatchdogThreshold {
			e.cache.Clear()
			report.CacheCleared = true
		}
		if debug {
			log.Printf("[Engine] Cache updated - Chunks: %d, Entities: %d",
				report.Cache.ChunkCount, report.Cache.EntityCount)
		}
		span.End()
	}

	if debug {
		now := e.now()
		e.mu.Lock()
		due := now.Sub(e.lastStatsDump) > e.settings.StatsInterval
		if due {
			e.lastStatsDump = now
		}
		e.mu.Unlock()
		if due {
			for _, line := range e.DetailedStats() {
				log.Print(line)
			}
			report.StatsDumped = true
		}
	}
	return report
}

// Snapshot is a combined read-only view for front ends.
type Snapshot struct {
	Tick       uint64               `json:"tick"`
	Culling    culling.CullingStats `json:"culling"`
	Cache      culling.CacheStats   `json:"cache"`
	Efficiency float64              `json:"efficiency"`
	Toggles    Toggles              `json:"toggles"`
	TakenAt    time.Time            `json:"taken_at"`
}

// Snapshot reads the state manager and cache statistics.
func (e *Engine) Snapshot() Snapshot {
	stats := e.state.Stats()
	return Snapshot{
		Tick:       e.Ticks(),
		Culling:    stats,
		Cache:      e.cache.Stats(),
		Efficiency: stats.Efficiency(),
		Toggles:    e.Toggles(),
		TakenAt:    e.now(),
	}
}

// DetailedStats renders the debug statistics block.
func (e *Engine) DetailedStats() []string {
	s := e.Snapshot()
	return []string{
		"=== FusionMC Stats ===",
		fmt.Sprintf("Block Entities - Visible: %d, Culled: %d", s.Culling.BlockEntitiesVisible, s.Culling.BlockEntitiesCulled),
		fmt.Sprintf("Entities - Visible: %d, Culled: %d", s.Culling.EntitiesVisible, s.Culling.EntitiesCulled),
		fmt.Sprintf("Chunks - Visible: %d, Culled: %d", s.Culling.ChunksVisible, s.Culling.ChunksCulled),
		fmt.Sprintf("Cache - Chunks: %d, Entities: %d", s.Cache.ChunkCount, s.Cache.EntityCount),
		fmt.Sprintf("Efficiency: %.2f%%", s.Efficiency*100),
		"======================",
	}
}

// StatsLine is the one-line summary shown by the stats key.
func (e *Engine) StatsLine() string {
	stats := e.state.Stats()
	return fmt.Sprintf("[FusionMC] Culling Efficiency: %.1f%% | Objects Culled: %d",
		stats.Efficiency()*100, stats.ObjectsCulled())
}
