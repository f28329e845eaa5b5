package streaming

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fusionmc/server/internal/culling"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxRadiusChunks caps the window half-width a viewer may request.
const MaxRadiusChunks = 64

// Manager tracks the chunk window of every viewer across ticks.
type Manager struct {
	mu      sync.RWMutex
	viewers map[string]*Viewer
}

// Viewer is one camera whose chunk window is tracked.
type Viewer struct {
	ID           string
	Camera       mgl64.Vec3
	RadiusChunks int
	Chunks       []culling.SpatialKey
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChunkDelta describes how a viewer's window changed.
type ChunkDelta struct {
	ViewerID      string               `json:"viewer_id"`
	AddedChunks   []culling.SpatialKey `json:"added_chunks"`
	RemovedChunks []culling.SpatialKey `json:"removed_chunks"`
	CurrentChunks []culling.SpatialKey `json:"current_chunks"`
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{
		viewers: make(map[string]*Viewer),
	}
}

// UpdateCamera recomputes the viewer's window, registering the viewer on first use.
func (m *Manager) UpdateCamera(viewerID string, camera mgl64.Vec3, radiusChunks int) (*ChunkDelta, error) {
	if viewerID == "" {
		return nil, fmt.Errorf("viewer id is required")
	}
	if radiusChunks < 0 || radiusChunks > MaxRadiusChunks {
		return nil, fmt.Errorf("radius must be between 0 and %d chunks, got %d", MaxRadiusChunks, radiusChunks)
	}

	window := ComputeChunkWindow(camera, radiusChunks)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	viewer, ok := m.viewers[viewerID]
	if !ok {
		viewer = &Viewer{ID: viewerID, CreatedAt: now}
		m.viewers[viewerID] = viewer
	}

	added, removed := diffChunkSets(viewer.Chunks, window)
	viewer.Camera = camera
	viewer.RadiusChunks = radiusChunks
	viewer.Chunks = window
	viewer.UpdatedAt = now

	return &ChunkDelta{
		ViewerID:      viewerID,
		AddedChunks:   added,
		RemovedChunks: removed,
		CurrentChunks: window,
	}, nil
}

// GetViewer returns a copy of the viewer's last window.
func (m *Manager) GetViewer(viewerID string) (*Viewer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	viewer, ok := m.viewers[viewerID]
	if !ok {
		return nil, fmt.Errorf("viewer %s not found", viewerID)
	}
	clone := *viewer
	clone.Chunks = append([]culling.SpatialKey(nil), viewer.Chunks...)
	return &clone, nil
}

// Reset forgets every viewer, so the next update reports the full window as added.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.viewers = make(map[string]*Viewer)
	m.mu.Unlock()
	log.Printf("[Stream] viewer windows reset")
}

// ComputeChunkWindow lists every chunk within radius chunks of the camera's chunk on
// both axes, row by row from the minimum corner.
func ComputeChunkWindow(camera mgl64.Vec3, radiusChunks int) []culling.SpatialKey {
	if radiusChunks < 0 {
		return nil
	}
	center := culling.ChunkKeyAt(camera)
	r := int32(radiusChunks)
	side := 2*radiusChunks + 1
	keys := make([]culling.SpatialKey, 0, side*side)
	for x := center.X - r; x <= center.X+r; x++ {
		for z := center.Z - r; z <= center.Z+r; z++ {
			keys = append(keys, culling.SpatialKey{X: x, Z: z})
		}
	}
	return keys
}

func diffChunkSets(previous, next []culling.SpatialKey) (added, removed []culling.SpatialKey) {
	prevSet := make(map[culling.SpatialKey]struct{}, len(previous))
	nextSet := make(map[culling.SpatialKey]struct{}, len(next))

	for _, key := range previous {
		prevSet[key] = struct{}{}
	}
	for _, key := range next {
		nextSet[key] = struct{}{}
		if _, exists := prevSet[key]; !exists {
			added = append(added, key)
		}
	}
	for _, key := range previous {
		if _, exists := nextSet[key]; !exists {
			removed = append(removed, key)
		}
	}
	return
}
