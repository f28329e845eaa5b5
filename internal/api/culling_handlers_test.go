package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/fusionmc/server/internal/config"
	"github.com/fusionmc/server/internal/culling"
	"github.com/fusionmc/server/internal/database"
	"github.com/fusionmc/server/internal/engine"
	"github.com/fusionmc/server/internal/testutil"
	"github.com/go-gl/mathgl/mgl64"
)

func newCullingTestServer(t *testing.T, history *database.StatsHistory) (*testutil.HTTPTestHelper, *engine.Engine, *config.Config) {
	t.Helper()
	cfg := testutil.TestConfig()
	toggles, settings := engine.FromConfig(cfg.Culling, culling.DefaultPriorityTable())
	e := engine.New(toggles, settings)

	mux := http.NewServeMux()
	SetupCullingRoutes(mux, e, history, nil, cfg, DefaultRateLimitConfig())

	helper := testutil.NewHTTPTestHelper(mux)
	helper.Token = testutil.OperatorToken(t, cfg, "steve")
	return helper, e, cfg
}

func TestCullingRoutes_RequireAuth(t *testing.T) {
	helper, _, _ := newCullingTestServer(t, nil)
	helper.Token = ""

	rr := helper.MakeRequest(http.MethodGet, "/api/culling/stats", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rr.Code)
	}

	helper.Token = "not.a.token"
	rr = helper.MakeRequest(http.MethodGet, "/api/culling/stats", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with bad token, got %d", rr.Code)
	}
}

func TestCullingRoutes_NotFound(t *testing.T) {
	helper, _, _ := newCullingTestServer(t, nil)
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/culling/unknown"},
		{http.MethodPost, "/api/culling/stats"},
		{http.MethodGet, "/api/culling/toggle"},
	}
	for _, tt := range tests {
		rr := helper.MakeRequest(tt.method, tt.path, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tt.method, tt.path, rr.Code)
		}
	}
}

func TestGetStats(t *testing.T) {
	helper, e, _ := newCullingTestServer(t, nil)
	e.State().UpdateBlockEntityLists([]culling.ObjectID{1, 2, 3}, []culling.ObjectID{4})

	rr := helper.MakeRequest(http.MethodGet, "/api/culling/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-RateLimit-Limit") == "" {
		t.Error("Expected rate limit headers")
	}

	var resp StatsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Culling.BlockEntitiesCulled != 1 || resp.Efficiency != 0.25 {
		t.Errorf("Unexpected stats %+v", resp.Snapshot)
	}
	if resp.StatsLine != "[FusionMC] Culling Efficiency: 25.0% | Objects Culled: 1" {
		t.Errorf("Unexpected stats line %q", resp.StatsLine)
	}
}

func TestGetStatus(t *testing.T) {
	helper, _, _ := newCullingTestServer(t, nil)

	rr := helper.MakeRequest(http.MethodGet, "/api/culling/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.Version != engine.Version {
		t.Errorf("Expected version %s, got %s", engine.Version, resp.Version)
	}
	if !resp.Toggles.FrustumCulling || resp.Toggles.Debug {
		t.Errorf("Unexpected toggles %+v", resp.Toggles)
	}
	if resp.Settings.MaxRenderDistance != 4 || resp.Settings.StatsIntervalMS != 1000 {
		t.Errorf("Unexpected settings %+v", resp.Settings)
	}
	if len(resp.Settings.HighPriorityKinds) == 0 {
		t.Error("Expected priority kinds in status")
	}
}

func TestToggle(t *testing.T) {
	helper, e, _ := newCullingTestServer(t, nil)
	off := false

	tests := []struct {
		name        string
		body        interface{}
		wantStatus  int
		wantEnabled bool
	}{
		{"flip debug", ToggleRequest{Feature: "debug"}, http.StatusOK, true},
		{"set lod off", ToggleRequest{Feature: "LOD", Enabled: &off}, http.StatusOK, false},
		{"set lod off again", ToggleRequest{Feature: "lod", Enabled: &off}, http.StatusOK, false},
		{"unknown feature", ToggleRequest{Feature: "xray"}, http.StatusBadRequest, false},
		{"missing feature", map[string]string{}, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := helper.MakeRequest(http.MethodPost, "/api/culling/toggle", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp ToggleResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if resp.Enabled != tt.wantEnabled {
				t.Errorf("Expected enabled=%v, got %v", tt.wantEnabled, resp.Enabled)
			}
		})
	}

	if !e.Toggles().Debug || e.Toggles().LOD {
		t.Errorf("Engine toggles not updated: %+v", e.Toggles())
	}
}

func TestMaintenanceEndpoints(t *testing.T) {
	helper, e, _ := newCullingTestServer(t, nil)

	e.Cache().StoreChunk(culling.SpatialKey{X: 1}, true)
	rr := helper.MakeRequest(http.MethodPost, "/api/culling/clear", nil)
	if rr.Code != http.StatusOK || e.Cache().Stats().ChunkCount != 0 {
		t.Errorf("clear: status %d, cache %+v", rr.Code, e.Cache().Stats())
	}

	e.Cache().StoreEntity(1, true)
	rr = helper.MakeRequest(http.MethodPost, "/api/culling/reload", nil)
	if rr.Code != http.StatusOK || e.Cache().Stats().EntityCount != 0 {
		t.Errorf("reload: status %d, cache %+v", rr.Code, e.Cache().Stats())
	}

	e.State().UpdateEntities(nil, []culling.ObjectID{9})
	rr = helper.MakeRequest(http.MethodPost, "/api/culling/reset", nil)
	if rr.Code != http.StatusOK || e.State().Stats().EntitiesCulled != 0 {
		t.Errorf("reset: status %d, stats %+v", rr.Code, e.State().Stats())
	}
}

func TestCommand(t *testing.T) {
	helper, e, _ := newCullingTestServer(t, nil)

	rr := helper.MakeRequest(http.MethodPost, "/api/culling/command", CommandRequest{Line: "/fusion toggle chunk"})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Handled bool     `json:"handled"`
		Lines   []string `json:"lines"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !resp.Handled || resp.Lines[0] != "Chunk Culling: OFF" {
		t.Errorf("Unexpected command result %+v", resp)
	}
	if e.Toggles().ChunkCulling {
		t.Error("Expected chunk culling off")
	}

	rr = helper.MakeRequest(http.MethodPost, "/api/culling/command", CommandRequest{Line: "/weather clear"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for foreign command, got %d", rr.Code)
	}
	rr = helper.MakeRequest(http.MethodPost, "/api/culling/command", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty line, got %d", rr.Code)
	}
}

func TestTick(t *testing.T) {
	helper, e, _ := newCullingTestServer(t, nil)

	// View covers x in [0, 100] across the whole world height.
	view := culling.Box{Min: mgl64.Vec3{0, -64, -100}, Max: mgl64.Vec3{100, 320, 100}}
	req := TickRequest{
		Camera: mgl64.Vec3{8, 64, 8},
		View:   &view,
		BlockEntities: []*culling.Candidate{
			{ID: 1, Kind: "minecraft:chest", Position: mgl64.Vec3{5, 64, 5}},
			{ID: 2, Kind: "minecraft:furnace", Position: mgl64.Vec3{10, 64, 5}},
			{ID: 3, Kind: "minecraft:sign", Position: mgl64.Vec3{-20, 64, 5}},
		},
		Entities: []*culling.Candidate{
			{ID: 10, Kind: "minecraft:cow", Bounds: &culling.Box{Min: mgl64.Vec3{20, 64, 0}, Max: mgl64.Vec3{21, 65, 1}}},
			{ID: 11, Kind: "minecraft:cow", Bounds: &culling.Box{Min: mgl64.Vec3{-20, 64, 0}, Max: mgl64.Vec3{-19, 65, 1}}},
		},
		Ticks: 5,
	}

	rr := helper.MakeRequest(http.MethodPost, "/api/culling/tick", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp TickResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}

	want := TierCounts{High: 1, Medium: 1, Culled: 1}
	if resp.BlockEntities != want {
		t.Errorf("Expected tiers %+v, got %+v", want, resp.BlockEntities)
	}
	if len(resp.VisibleEntities) != 1 || resp.VisibleEntities[0] != 10 {
		t.Errorf("Expected entity 10 visible, got %v", resp.VisibleEntities)
	}
	// Render distance 4 gives a 9x9 window.
	if resp.VisibleChunks+resp.CulledChunks != 81 || resp.AddedChunks != 81 {
		t.Errorf("Unexpected chunk counts %d/%d added %d", resp.VisibleChunks, resp.CulledChunks, resp.AddedChunks)
	}
	if len(resp.Ticks) != 5 || !resp.Ticks[4].Maintenance {
		t.Errorf("Expected maintenance on the fifth tick, got %+v", resp.Ticks)
	}
	if e.Ticks() != 5 {
		t.Errorf("Expected engine at tick 5, got %d", e.Ticks())
	}
}

func TestTick_InvalidRequests(t *testing.T) {
	helper, _, _ := newCullingTestServer(t, nil)
	inverted := culling.Box{Min: mgl64.Vec3{10, 0, 0}, Max: mgl64.Vec3{0, 1, 1}}

	tests := []struct {
		name string
		body interface{}
	}{
		{"degenerate view", TickRequest{View: &inverted}},
		{"too many ticks", TickRequest{Ticks: 1000}},
		{"render distance too large", TickRequest{RenderDistance: 65}},
		{"negative render distance", TickRequest{RenderDistance: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := helper.MakeRequest(http.MethodPost, "/api/culling/tick", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHistory_Disabled(t *testing.T) {
	helper, _, _ := newCullingTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := helper.MakeRequest(method, "/api/culling/history", nil)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", method, rr.Code)
		}
	}
}

func TestHistory_RecordAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CleanupTestDB(t, db)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	history := database.NewStatsHistory(db, 10)
	if err := history.EnsureSchema(); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	helper, e, _ := newCullingTestServer(t, history)
	e.State().UpdateEntities([]culling.ObjectID{1}, []culling.ObjectID{2})

	rr := helper.MakeRequest(http.MethodPost, "/api/culling/history", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = helper.MakeRequest(http.MethodGet, "/api/culling/history?limit=5", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var records []database.StatsRecord
	if err := json.NewDecoder(rr.Body).Decode(&records); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(records) != 1 || records[0].RecordedBy != "steve" || records[0].Efficiency != 0.5 {
		t.Errorf("Unexpected history %+v", records)
	}

	rr = helper.MakeRequest(http.MethodGet, "/api/culling/history?limit=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", rr.Code)
	}
}

func TestSnapshotRecord(t *testing.T) {
	s := engine.Snapshot{
		Tick:    7,
		Toggles: engine.Toggles{FrustumCulling: true, LOD: true},
	}
	rec := SnapshotRecord(s)
	if rec.Tick != 7 {
		t.Errorf("Expected tick 7, got %d", rec.Tick)
	}
	if len(rec.EnabledFeatures) != 2 || rec.EnabledFeatures[0] != "frustum" || rec.EnabledFeatures[1] != "lod" {
		t.Errorf("Unexpected features %v", rec.EnabledFeatures)
	}
}
