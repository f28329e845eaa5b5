package culling

import "sync"

// idSet is a mutex-guarded membership set with a processed counter.
// Replace swaps both under one lock so readers never see a new count with old members.
type idSet[K comparable] struct {
	mu        sync.RWMutex
	members   map[K]struct{}
	processed int
}

func newIDSet[K comparable]() *idSet[K] {
	return &idSet[K]{members: make(map[K]struct{})}
}

func (s *idSet[K]) replace(culled []K, processed int) {
	members := make(map[K]struct{}, len(culled))
	for _, id := range culled {
		members[id] = struct{}{}
	}
	s.mu.Lock()
	s.members = members
	s.processed = processed
	s.mu.Unlock()
}

func (s *idSet[K]) contains(id K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[id]
	return ok
}

// counts returns visible and culled derived from the same locked view.
func (s *idSet[K]) counts() (visible, culled int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	culled = len(s.members)
	return s.processed - culled, culled
}

func (s *idSet[K]) reset() {
	s.replace(nil, 0)
}

// CullingStats summarises the latest update of each category.
type CullingStats struct {
	BlockEntitiesVisible int `json:"block_entities_visible"`
	BlockEntitiesCulled  int `json:"block_entities_culled"`
	EntitiesVisible      int `json:"entities_visible"`
	EntitiesCulled       int `json:"entities_culled"`
	ChunksVisible        int `json:"chunks_visible"`
	ChunksCulled         int `json:"chunks_culled"`
}

// TotalObjects counts block entities and entities. Chunks are reported but not totalled.
func (s CullingStats) TotalObjects() int {
	return s.BlockEntitiesVisible + s.BlockEntitiesCulled + s.EntitiesVisible + s.EntitiesCulled
}

// ObjectsCulled counts culled block entities and entities.
func (s CullingStats) ObjectsCulled() int {
	return s.BlockEntitiesCulled + s.EntitiesCulled
}

// Efficiency is the culled share of TotalObjects, or 0 when nothing was processed.
func (s CullingStats) Efficiency() float64 {
	total := s.TotalObjects()
	if total == 0 {
		return 0
	}
	return float64(s.ObjectsCulled()) / float64(total)
}

// StateManager tracks which objects the latest update culled, per category.
type StateManager struct {
	blockEntities *idSet[ObjectID]
	entities      *idSet[ObjectID]
	chunks        *idSet[SpatialKey]
}

// NewStateManager creates an empty state manager.
func NewStateManager() *StateManager {
	return &StateManager{
		blockEntities: newIDSet[ObjectID](),
		entities:      newIDSet[ObjectID](),
		chunks:        newIDSet[SpatialKey](),
	}
}

// UpdateBlockEntities replaces block entity state from a classification.
func (m *StateManager) UpdateBlockEntities(result Classification) {
	m.blockEntities.replace(candidateIDs(result.Culled), result.Processed())
}

// UpdateBlockEntityLists replaces block entity state from explicit visible and culled lists.
func (m *StateManager) UpdateBlockEntityLists(visible, culled []ObjectID) {
	m.blockEntities.replace(culled, len(visible)+len(culled))
}

// UpdateEntities replaces entity state.
func (m *StateManager) UpdateEntities(visible, culled []ObjectID) {
	m.entities.replace(culled, len(visible)+len(culled))
}

// UpdateChunks replaces chunk state.
func (m *StateManager) UpdateChunks(visible, culled []SpatialKey) {
	m.chunks.replace(culled, len(visible)+len(culled))
}

// IsBlockEntityCulled reports whether the last update culled the block entity.
func (m *StateManager) IsBlockEntityCulled(id ObjectID) bool {
	return m.blockEntities.contains(id)
}

// IsEntityCulled reports whether the last update culled the entity.
func (m *StateManager) IsEntityCulled(id ObjectID) bool {
	return m.entities.contains(id)
}

// IsChunkCulled reports whether the last update culled the chunk.
func (m *StateManager) IsChunkCulled(key SpatialKey) bool {
	return m.chunks.contains(key)
}

// Stats derives visible and culled counts for every category.
func (m *StateManager) Stats() CullingStats {
	var s CullingStats
	s.BlockEntitiesVisible, s.BlockEntitiesCulled = m.blockEntities.counts()
	s.EntitiesVisible, s.EntitiesCulled = m.entities.counts()
	s.ChunksVisible, s.ChunksCulled = m.chunks.counts()
	return s
}

// Reset clears every category.
func (m *StateManager) Reset() {
	m.blockEntities.reset()
	m.entities.reset()
	m.chunks.reset()
}

func candidateIDs(cands []*Candidate) []ObjectID {
	ids := make([]ObjectID, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.ID)
	}
	return ids
}
