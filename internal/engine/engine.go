package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fusionmc/server/internal/config"
	"github.com/fusionmc/server/internal/culling"
	"github.com/fusionmc/server/internal/performance"
	"github.com/fusionmc/server/internal/streaming"
)

// Version is reported by the status command.
const Version = "0.1.1d-beta"

// hostViewer is the streaming viewer ID of the host camera.
const hostViewer = "host"

// Settings are the tick loop parameters fixed at construction.
type Settings struct {
	MaxRenderDistance      int // chunks
	UpdateInterval         int // ticks
	CacheWatchdogThreshold int
	StatsInterval          time.Duration
	Priorities             culling.PriorityTable
}

// DefaultSettings returns the settings used when no configuration is supplied.
func DefaultSettings() Settings {
	return Settings{
		MaxRenderDistance:      culling.DefaultRenderDistanceChunks,
		UpdateInterval:         5,
		CacheWatchdogThreshold: 500,
		StatsInterval:          time.Second,
		Priorities:             culling.DefaultPriorityTable(),
	}
}

// DefaultToggles has every culling feature on and debug off.
func DefaultToggles() Toggles {
	return Toggles{
		BlockEntityCulling:         true,
		ChunkCulling:               true,
		DistanceCulling:            true,
		FrustumCulling:             true,
		LOD:                        true,
		ChunkRenderingOptimization: true,
	}
}

// FromConfig builds toggles and settings from the culling configuration.
func FromConfig(cfg config.CullingConfig, priorities culling.PriorityTable) (Toggles, Settings) {
	toggles := Toggles{
		BlockEntityCulling:         cfg.EnableBlockEntityCulling,
		ChunkCulling:               cfg.EnableChunkCulling,
		DistanceCulling:            cfg.EnableDistanceCulling,
		FrustumCulling:             cfg.EnableFrustumCulling,
		LOD:                        cfg.EnableLOD,
		ChunkRenderingOptimization: cfg.EnableChunkRenderingOpt,
		Debug:                      cfg.DebugMode,
	}
	settings := Settings{
		MaxRenderDistance:      cfg.MaxRenderDistance,
		UpdateInterval:         cfg.UpdateInterval,
		CacheWatchdogThreshold: cfg.CacheWatchdogThreshold,
		StatsInterval:          cfg.StatsInterval,
		Priorities:             priorities,
	}
	return toggles, settings
}

// Engine owns the culling components and the host-facing switches.
// It is safe for concurrent use by a render thread and a stats reader.
type Engine struct {
	mu       sync.RWMutex
	toggles  Toggles
	settings Settings

	classifier *culling.Classifier
	cache      *culling.ResultCache
	state      *culling.StateManager
	windows    *streaming.Manager
	profiler   *performance.Profiler

	ticks         atomic.Uint64
	lastStatsDump time.Time
	now           culling.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for the engine and its result cache.
func WithClock(clock culling.Clock) Option {
	return func(e *Engine) {
		e.now = clock
	}
}

// WithProfiler replaces the default disabled profiler.
func WithProfiler(p *performance.Profiler) Option {
	return func(e *Engine) {
		e.profiler = p
	}
}

// New constructs an engine with its own classifier, cache, state manager and window tracker.
func New(toggles Toggles, settings Settings, opts ...Option) *Engine {
	defaults := DefaultSettings()
	if settings.UpdateInterval <= 0 {
		settings.UpdateInterval = defaults.UpdateInterval
	}
	if settings.MaxRenderDistance <= 0 {
		settings.MaxRenderDistance = defaults.MaxRenderDistance
	}
	if settings.MaxRenderDistance > streaming.MaxRadiusChunks {
		settings.MaxRenderDistance = streaming.MaxRadiusChunks
	}
	if settings.CacheWatchdogThreshold <= 0 {
		settings.CacheWatchdogThreshold = defaults.CacheWatchdogThreshold
	}
	if settings.StatsInterval <= 0 {
		settings.StatsInterval = defaults.StatsInterval
	}

	e := &Engine{
		toggles:  toggles,
		settings: settings,
		state:    culling.NewStateManager(),
		windows:  streaming.NewManager(),
		profiler: performance.NewProfiler(false),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if toggles.Debug {
		e.profiler.SetEnabled(true)
	}
	e.classifier = culling.NewClassifier(settings.Priorities, settings.MaxRenderDistance)
	e.cache = culling.NewResultCache(culling.WithClock(e.now))

	log.Printf("[Engine] initialized: render_distance=%d update_interval=%d watchdog=%d",
		settings.MaxRenderDistance, settings.UpdateInterval, settings.CacheWatchdogThreshold)
	return e
}

// Cache returns the engine's result cache.
func (e *Engine) Cache() *culling.ResultCache { return e.cache }

// State returns the engine's culling state manager.
func (e *Engine) State() *culling.StateManager { return e.state }

// Profiler returns the engine's tick profiler.
func (e *Engine) Profiler() *performance.Profiler { return e.profiler }

// Settings returns the tick loop parameters.
func (e *Engine) Settings() Settings { return e.settings }

// Toggles returns a copy of the current switches.
func (e *Engine) Toggles() Toggles {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.toggles
}

// Toggle flips a feature and returns its new state.
func (e *Engine) Toggle(f Feature) (bool, error) {
	e.mu.Lock()
	p := e.toggles.field(f)
	if p == nil {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %q", ErrUnknownFeature, f)
	}
	*p = !*p
	enabled := *p
	e.mu.Unlock()

	e.afterToggle(f, enabled)
	log.Printf("[Engine] %s: %s", f.Label(), onOff(enabled))
	return enabled, nil
}

// SetFeature puts a feature into the requested state. Setting the current state is a no-op.
func (e *Engine) SetFeature(f Feature, enabled bool) error {
	e.mu.Lock()
	p := e.toggles.field(f)
	if p == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownFeature, f)
	}
	changed := *p != enabled
	*p = enabled
	e.mu.Unlock()

	if changed {
		e.afterToggle(f, enabled)
		log.Printf("[Engine] %s: %s", f.Label(), onOff(enabled))
	}
	return nil
}

// afterToggle drops cached results that were computed under a different frustum predicate
// and follows debug mode with the pass profiler.
func (e *Engine) afterToggle(f Feature, enabled bool) {
	switch f {
	case FeatureFrustum:
		e.cache.Clear()
	case FeatureDebug:
		e.profiler.SetEnabled(enabled)
	}
}

// ToggleCulling flips block entity, chunk and distance culling together to the negation
// of the block entity switch, and returns the new state.
func (e *Engine) ToggleCulling() bool {
	e.mu.Lock()
	state := !e.toggles.BlockEntityCulling
	e.toggles.BlockEntityCulling = state
	e.toggles.ChunkCulling = state
	e.toggles.DistanceCulling = state
	e.mu.Unlock()

	log.Printf("[Engine] Culling: %s", onOff(state))
	return state
}

// ClearCache empties the result cache.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	log.Printf("[Engine] result cache cleared")
}

// Reload drops cached results so the next frame recomputes everything.
func (e *Engine) Reload() {
	e.ClearCache()
}

// Reset cold-starts the culling state and chunk windows. The result cache is untouched.
func (e *Engine) Reset() {
	e.state.Reset()
	e.windows.Reset()
	e.profiler.Reset()
	log.Printf("[Engine] culling state reset")
}

// Ticks returns how many host ticks have run.
func (e *Engine) Ticks() uint64 {
	return e.ticks.Load()
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
