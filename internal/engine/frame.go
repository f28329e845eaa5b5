package engine

import (
	"fmt"
	"log"

	"github.com/fusionmc/server/internal/culling"
	"github.com/fusionmc/server/internal/performance"
	"github.com/fusionmc/server/internal/streaming"
	"github.com/go-gl/mathgl/mgl64"
)

// Frame is the per-render input the host supplies.
type Frame struct {
	Visibility    culling.VisibilityTest
	Camera        mgl64.Vec3
	BlockEntities []*culling.Candidate
	// Entities carry their own Bounds; a nil Bounds falls back to the unit cube.
	Entities []*culling.Candidate
	// RenderDistance in chunks; zero uses the configured maximum.
	RenderDistance int
}

// FrameReport is what one frame decided.
type FrameReport struct {
	BlockEntities   culling.Classification
	LODCulled       []*culling.Candidate
	VisibleEntities []culling.ObjectID
	CulledEntities  []culling.ObjectID
	VisibleChunks   []culling.SpatialKey
	CulledChunks    []culling.SpatialKey
	ChunkDelta      *streaming.ChunkDelta
	CacheHits       int
	CacheMisses     int
}

// ProcessFrame runs every enabled culling pass and folds the outcome into the state manager.
func (e *Engine) ProcessFrame(frame Frame) (*FrameReport, error) {
	toggles := e.Toggles()
	total := e.profiler.Start(performance.PassTotal)
	defer total.End()

	test := frame.Visibility
	if test == nil || !toggles.FrustumCulling {
		test = culling.AlwaysVisible
	}

	report := &FrameReport{}

	// Chunks go first so a window error leaves every category's state untouched.
	if toggles.ChunkCulling {
		span := e.profiler.Start(performance.PassChunks)
		err := e.processChunks(test, frame, report)
		span.End()
		if err != nil {
			return nil, err
		}
	}

	if toggles.BlockEntityCulling {
		span := e.profiler.Start(performance.PassBlockEntities)
		e.processBlockEntities(test, frame, toggles, report)
		span.End()
	}

	span := e.profiler.Start(performance.PassEntities)
	e.processEntities(test, frame, toggles, report)
	span.End()

	return report, nil
}

func (e *Engine) processBlockEntities(test culling.VisibilityTest, frame Frame, toggles Toggles, report *FrameReport) {
	result := e.classifier.Classify(test, frame.BlockEntities)
	report.BlockEntities = result

	if !toggles.LOD {
		e.state.UpdateBlockEntities(result)
		return
	}

	visible := make([]culling.ObjectID, 0, result.Visible())
	culled := make([]culling.ObjectID, 0, len(result.Culled))
	for _, c := range result.Culled {
		culled = append(culled, c.ID)
	}
	for _, c := range result.VisibleCandidates() {
		render, _ := culling.ShouldRender(distanceTo(frame.Camera, c.Box()), culling.CategoryBlockEntity)
		if !render {
			report.LODCulled = append(report.LODCulled, c)
			culled = append(culled, c.ID)
			continue
		}
		visible = append(visible, c.ID)
	}
	e.state.UpdateBlockEntityLists(visible, culled)
}

func (e *Engine) processEntities(test culling.VisibilityTest, frame Frame, toggles Toggles, report *FrameReport) {
	for _, ent := range frame.Entities {
		if ent == nil {
			continue
		}
		box := ent.Box()

		visible, ok := e.cache.LookupEntity(ent.ID)
		if ok {
			report.CacheHits++
		} else {
			report.CacheMisses++
			visible = e.classifier.CheckEntityVisibility(test, box)
			e.cache.StoreEntity(ent.ID, visible)
		}

		if visible && toggles.DistanceCulling {
			visible, _ = culling.ShouldRender(distanceTo(frame.Camera, box), culling.CategoryEntity)
		}
		if visible {
			report.VisibleEntities = append(report.VisibleEntities, ent.ID)
		} else {
			report.CulledEntities = append(report.CulledEntities, ent.ID)
		}
	}
	e.state.UpdateEntities(report.VisibleEntities, report.CulledEntities)
}

func (e *Engine) processChunks(test culling.VisibilityTest, frame Frame, report *FrameReport) error {
	radius := frame.RenderDistance
	if radius <= 0 || radius > e.settings.MaxRenderDistance {
		radius = e.settings.MaxRenderDistance
	}
	delta, err := e.windows.UpdateCamera(hostViewer, frame.Camera, radius)
	if err != nil {
		return fmt.Errorf("failed to update chunk window: %w", err)
	}
	report.ChunkDelta = delta

	for _, key := range delta.CurrentChunks {
		visible, ok := e.cache.LookupChunk(key)
		if ok {
			report.CacheHits++
		} else {
			report.CacheMisses++
			visible = e.classifier.CheckChunkVisibility(test, key, frame.Camera)
			e.cache.StoreChunk(key, visible)
		}
		if visible {
			report.VisibleChunks = append(report.VisibleChunks, key)
		} else {
			report.CulledChunks = append(report.CulledChunks, key)
		}
	}
	e.state.UpdateChunks(report.VisibleChunks, report.CulledChunks)

	if e.Toggles().Debug {
		log.Printf("[Culling] chunks visible=%d culled=%d (+%d -%d)",
			len(report.VisibleChunks), len(report.CulledChunks), len(delta.AddedChunks), len(delta.RemovedChunks))
	}
	return nil
}

func distanceTo(camera mgl64.Vec3, box culling.Box) float64 {
	return box.Center().Sub(camera).Len()
}
