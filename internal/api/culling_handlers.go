package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/fusionmc/server/internal/auth"
	"github.com/fusionmc/server/internal/commands"
	"github.com/fusionmc/server/internal/culling"
	"github.com/fusionmc/server/internal/database"
	"github.com/fusionmc/server/internal/engine"
	"github.com/fusionmc/server/internal/performance"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-playground/validator/v10"
)

// maxTicksPerRequest bounds how many host ticks one tick request may advance.
const maxTicksPerRequest = 100

// CullingHandlers serves the culling debug/admin API.
type CullingHandlers struct {
	engine     *engine.Engine
	dispatcher *commands.Dispatcher
	// history is nil when no database is configured.
	history *database.StatsHistory
	// hub receives state_changed events; nil when no overlay is served.
	hub       *OverlayHub
	validator *validator.Validate
}

// NewCullingHandlers creates handlers bound to e. history and hub may be nil.
func NewCullingHandlers(e *engine.Engine, history *database.StatsHistory, hub *OverlayHub) *CullingHandlers {
	return &CullingHandlers{
		engine:     e,
		dispatcher: commands.NewDispatcher(e),
		history:    history,
		hub:        hub,
		validator:  validator.New(),
	}
}

// StatsResponse is the body of GET /api/culling/stats.
type StatsResponse struct {
	engine.Snapshot
	StatsLine string                   `json:"stats_line"`
	Timings   []performance.PassTiming `json:"timings"`
}

// StatusResponse is the body of GET /api/culling/status.
type StatusResponse struct {
	Version  string          `json:"version"`
	Toggles  engine.Toggles  `json:"toggles"`
	Settings SettingsPayload `json:"settings"`
	Features []string        `json:"features"`
}

// SettingsPayload is the JSON view of engine settings.
type SettingsPayload struct {
	MaxRenderDistance      int      `json:"max_render_distance"`
	UpdateInterval         int      `json:"update_interval"`
	CacheWatchdogThreshold int      `json:"cache_watchdog_threshold"`
	StatsIntervalMS        int64    `json:"stats_interval_ms"`
	HighPriorityKinds      []string `json:"high_priority_kinds"`
	MediumPriorityKinds    []string `json:"medium_priority_kinds"`
}

// ToggleRequest flips a feature, or sets it when Enabled is present.
type ToggleRequest struct {
	Feature string `json:"feature" validate:"required"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// ToggleResponse reports the feature state after a toggle.
type ToggleResponse struct {
	Feature string `json:"feature"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// CommandRequest carries one command line, e.g. "/fusion stats".
type CommandRequest struct {
	Line string `json:"line" validate:"required,max=256"`
}

// TickRequest is one host frame followed by Ticks host ticks.
type TickRequest struct {
	Camera mgl64.Vec3 `json:"camera"`
	// View stands in for the host frustum; a box is visible when it intersects View.
	// A missing View sees everything.
	View           *culling.Box         `json:"view,omitempty"`
	BlockEntities  []*culling.Candidate `json:"block_entities" validate:"max=4096"`
	Entities       []*culling.Candidate `json:"entities" validate:"max=4096"`
	RenderDistance int                  `json:"render_distance" validate:"min=0,max=64"`
	Ticks          int                  `json:"ticks" validate:"min=0,max=100"`
}

// TierCounts summarizes a block entity classification.
type TierCounts struct {
	High      int `json:"high"`
	Medium    int `json:"medium"`
	Low       int `json:"low"`
	Culled    int `json:"culled"`
	LODCulled int `json:"lod_culled"`
}

// TickResponse is what a tick request decided.
type TickResponse struct {
	BlockEntities   TierCounts          `json:"block_entities"`
	VisibleEntities []culling.ObjectID  `json:"visible_entities"`
	CulledEntities  []culling.ObjectID  `json:"culled_entities"`
	VisibleChunks   int                 `json:"visible_chunks"`
	CulledChunks    int                 `json:"culled_chunks"`
	AddedChunks     int                 `json:"added_chunks"`
	RemovedChunks   int                 `json:"removed_chunks"`
	CacheHits       int                 `json:"cache_hits"`
	CacheMisses     int                 `json:"cache_misses"`
	Ticks           []engine.TickReport `json:"ticks"`
	Snapshot        engine.Snapshot     `json:"snapshot"`
}

// GetStats handles GET /api/culling/stats
func (h *CullingHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, StatsResponse{
		Snapshot:  h.engine.Snapshot(),
		StatsLine: h.engine.StatsLine(),
		Timings:   h.engine.Profiler().Timings(),
	})
}

// GetStatus handles GET /api/culling/status
func (h *CullingHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	s := h.engine.Settings()
	respondWithJSON(w, http.StatusOK, StatusResponse{
		Version: engine.Version,
		Toggles: h.engine.Toggles(),
		Settings: SettingsPayload{
			MaxRenderDistance:      s.MaxRenderDistance,
			UpdateInterval:         s.UpdateInterval,
			CacheWatchdogThreshold: s.CacheWatchdogThreshold,
			StatsIntervalMS:        s.StatsInterval.Milliseconds(),
			HighPriorityKinds:      s.Priorities.High,
			MediumPriorityKinds:    s.Priorities.Medium,
		},
		Features: engine.FeatureNames(),
	})
}

// Toggle handles POST /api/culling/toggle
func (h *CullingHandlers) Toggle(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !h.decode(w, r, &req) {
		return
	}

	feature, err := engine.ParseFeature(req.Feature)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var enabled bool
	if req.Enabled != nil {
		err = h.engine.SetFeature(feature, *req.Enabled)
		enabled = *req.Enabled
	} else {
		enabled, err = h.engine.Toggle(feature)
	}
	if err != nil {
		if errors.Is(err, engine.ErrUnknownFeature) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to toggle feature")
		return
	}

	operator, _ := auth.GetOperator(r)
	log.Printf("[API] %s set %s to %v", operator, feature, enabled)
	h.publish(r, "toggle")
	respondWithJSON(w, http.StatusOK, ToggleResponse{
		Feature: string(feature),
		Label:   feature.Label(),
		Enabled: enabled,
	})
}

// ClearCache handles POST /api/culling/clear
func (h *CullingHandlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearCache()
	h.publish(r, "clear")
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Cache cleared",
		"cache":   h.engine.Cache().Stats(),
	})
}

// Reload handles POST /api/culling/reload
func (h *CullingHandlers) Reload(w http.ResponseWriter, r *http.Request) {
	h.engine.Reload()
	h.publish(r, "reload")
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Configuration reloaded"})
}

// Reset handles POST /api/culling/reset
func (h *CullingHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	h.publish(r, "reset")
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Culling state reset",
		"stats":   h.engine.State().Stats(),
	})
}

// Command handles POST /api/culling/command
func (h *CullingHandlers) Command(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !h.decode(w, r, &req) {
		return
	}

	result := h.dispatcher.Execute(req.Line)
	if !result.Handled {
		respondWithError(w, http.StatusBadRequest, "Not a fusion command")
		return
	}
	if result.Changed {
		h.publish(r, "command")
	}
	respondWithJSON(w, http.StatusOK, result)
}

// publish pushes the post-change snapshot to open overlay sessions.
func (h *CullingHandlers) publish(r *http.Request, event string) {
	operator, _ := auth.GetOperator(r)
	h.hub.PublishStateChange(event, operator, h.engine.Snapshot())
}

// Tick handles POST /api/culling/tick
func (h *CullingHandlers) Tick(w http.ResponseWriter, r *http.Request) {
	var req TickRequest
	if !h.decode(w, r, &req) {
		return
	}

	var visibility culling.VisibilityTest
	if req.View != nil {
		if req.View.Degenerate() {
			respondWithError(w, http.StatusBadRequest, "view box is degenerate")
			return
		}
		view := *req.View
		visibility = culling.VisibilityFunc(view.Intersects)
	}

	report, err := h.engine.ProcessFrame(engine.Frame{
		Visibility:     visibility,
		Camera:         req.Camera,
		BlockEntities:  req.BlockEntities,
		Entities:       req.Entities,
		RenderDistance: req.RenderDistance,
	})
	if err != nil {
		log.Printf("[API] Frame processing failed: %v", err)
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ticks := req.Ticks
	if ticks == 0 {
		ticks = 1
	}
	if ticks > maxTicksPerRequest {
		ticks = maxTicksPerRequest
	}
	tickReports := make([]engine.TickReport, 0, ticks)
	for i := 0; i < ticks; i++ {
		tickReports = append(tickReports, h.engine.Tick())
	}

	resp := TickResponse{
		BlockEntities: TierCounts{
			High:      len(report.BlockEntities.High),
			Medium:    len(report.BlockEntities.Medium),
			Low:       len(report.BlockEntities.Low),
			Culled:    len(report.BlockEntities.Culled),
			LODCulled: len(report.LODCulled),
		},
		VisibleEntities: nonNilIDs(report.VisibleEntities),
		CulledEntities:  nonNilIDs(report.CulledEntities),
		VisibleChunks:   len(report.VisibleChunks),
		CulledChunks:    len(report.CulledChunks),
		CacheHits:       report.CacheHits,
		CacheMisses:     report.CacheMisses,
		Ticks:           tickReports,
		Snapshot:        h.engine.Snapshot(),
	}
	if report.ChunkDelta != nil {
		resp.AddedChunks = len(report.ChunkDelta.AddedChunks)
		resp.RemovedChunks = len(report.ChunkDelta.RemovedChunks)
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GetHistory handles GET /api/culling/history?limit=N
func (h *CullingHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Statistics history is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.history.RecentSnapshots(limit)
	if err != nil {
		h.historyError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, records)
}

// RecordHistory handles POST /api/culling/history
func (h *CullingHandlers) RecordHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Statistics history is disabled")
		return
	}

	rec := SnapshotRecord(h.engine.Snapshot())
	rec.RecordedBy, _ = auth.GetOperator(r)
	if err := h.history.RecordSnapshot(rec); err != nil {
		h.historyError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rec)
}

// SnapshotRecord converts an engine snapshot into a history row.
func SnapshotRecord(s engine.Snapshot) *database.StatsRecord {
	features := make([]string, 0, len(engine.StatusOrder))
	for _, f := range engine.StatusOrder {
		if s.Toggles.Enabled(f) {
			features = append(features, string(f))
		}
	}
	return &database.StatsRecord{
		Tick:            s.Tick,
		Culling:         s.Culling,
		Cache:           s.Cache,
		Efficiency:      s.Efficiency,
		EnabledFeatures: features,
		RecordedAt:      s.TakenAt,
	}
}

func (h *CullingHandlers) historyError(w http.ResponseWriter, err error) {
	log.Printf("[API] Statistics history error: %v", err)
	if errors.Is(err, database.ErrHistoryUnavailable) {
		respondWithError(w, http.StatusServiceUnavailable, "Statistics history is not initialized")
		return
	}
	respondWithError(w, http.StatusInternalServerError, "Failed to access statistics history")
}

// decode reads and validates a JSON body, answering 400 on failure.
func (h *CullingHandlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, auth.ValidationMessage(err))
		return false
	}
	return true
}

func nonNilIDs(ids []culling.ObjectID) []culling.ObjectID {
	if ids == nil {
		return []culling.ObjectID{}
	}
	return ids
}
