package culling

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultRenderDistanceChunks is the chunk render distance used for the distance gate.
const DefaultRenderDistanceChunks = 16

// VisibilityTest is the host's box-in-frustum primitive.
type VisibilityTest interface {
	IsVisible(box Box) bool
}

// VisibilityFunc adapts a plain function to VisibilityTest.
type VisibilityFunc func(box Box) bool

// IsVisible calls f(box).
func (f VisibilityFunc) IsVisible(box Box) bool {
	return f(box)
}

// AlwaysVisible passes every box. Hosts use it when frustum culling is switched off.
var AlwaysVisible VisibilityTest = VisibilityFunc(func(Box) bool { return true })

// Tier is the priority bucket a candidate lands in.
type Tier int

const (
	TierHigh Tier = iota
	TierMedium
	TierLow
	TierCulled
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	case TierCulled:
		return "culled"
	}
	return "unknown"
}

// Candidate is a positioned world object offered for classification.
// Block-type candidates leave Bounds nil and are expanded to the unit cube at Position.
type Candidate struct {
	ID       ObjectID   `json:"id"`
	Kind     string     `json:"kind"`
	Position mgl64.Vec3 `json:"position"`
	Bounds   *Box       `json:"bounds,omitempty"`
}

// Box returns the bounding volume tested against the frustum.
func (c *Candidate) Box() Box {
	if c.Bounds != nil {
		return *c.Bounds
	}
	return BlockBox(c.Position)
}

// Classification holds four disjoint tiers, each in input order.
type Classification struct {
	High   []*Candidate
	Medium []*Candidate
	Low    []*Candidate
	Culled []*Candidate
}

// Visible returns the number of candidates in the three visible tiers.
func (c Classification) Visible() int {
	return len(c.High) + len(c.Medium) + len(c.Low)
}

// Processed returns the number of candidates classified.
func (c Classification) Processed() int {
	return c.Visible() + len(c.Culled)
}

// VisibleCandidates returns high, medium and low concatenated in that order.
func (c Classification) VisibleCandidates() []*Candidate {
	out := make([]*Candidate, 0, c.Visible())
	out = append(out, c.High...)
	out = append(out, c.Medium...)
	return append(out, c.Low...)
}

// PriorityTable lists the kind substrings that promote a visible candidate.
// High is checked before Medium; the first match wins.
type PriorityTable struct {
	High   []string
	Medium []string
}

// DefaultPriorityTable returns the built-in kind lists.
func DefaultPriorityTable() PriorityTable {
	return PriorityTable{
		High:   []string{"chest", "beacon", "conduit", "end_gateway"},
		Medium: []string{"furnace", "brewing_stand", "enchanting_table", "anvil"},
	}
}

// TierFor returns the tier of a visible object of the given kind.
func (p PriorityTable) TierFor(kind string) Tier {
	kind = strings.ToLower(kind)
	if matchesAny(kind, p.High) {
		return TierHigh
	}
	if matchesAny(kind, p.Medium) {
		return TierMedium
	}
	return TierLow
}

func matchesAny(kind string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(kind, n) {
			return true
		}
	}
	return false
}

// Classifier partitions candidates into priority tiers and answers chunk and entity checks.
type Classifier struct {
	priorities      PriorityTable
	maxDistanceSqrd float64
}

// NewClassifier creates a classifier with the given priority table and chunk render distance.
// A non-positive render distance falls back to DefaultRenderDistanceChunks.
func NewClassifier(priorities PriorityTable, renderDistanceChunks int) *Classifier {
	if renderDistanceChunks <= 0 {
		renderDistanceChunks = DefaultRenderDistanceChunks
	}
	blocks := float64(renderDistanceChunks * ChunkSize)
	return &Classifier{
		priorities:      priorities,
		maxDistanceSqrd: blocks * blocks,
	}
}

// Priorities returns the table used for tier assignment.
func (c *Classifier) Priorities() PriorityTable {
	return c.priorities
}

// Classify tests every candidate and sorts it into a tier.
// Nil candidates are skipped. Candidates with degenerate bounds are culled without
// consulting the visibility test.
func (c *Classifier) Classify(test VisibilityTest, candidates []*Candidate) Classification {
	var result Classification
	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		box := cand.Box()
		if box.Degenerate() || !test.IsVisible(box) {
			result.Culled = append(result.Culled, cand)
			continue
		}
		switch c.priorities.TierFor(cand.Kind) {
		case TierHigh:
			result.High = append(result.High, cand)
		case TierMedium:
			result.Medium = append(result.Medium, cand)
		default:
			result.Low = append(result.Low, cand)
		}
	}
	return result
}

// CheckChunkVisibility requires both the chunk column to intersect the frustum and its
// planar center to lie within the render distance of the camera. The frustum test runs first.
func (c *Classifier) CheckChunkVisibility(test VisibilityTest, key SpatialKey, camera mgl64.Vec3) bool {
	if !test.IsVisible(key.Bounds()) {
		return false
	}
	cx, cz := key.Center()
	dx := cx - camera.X()
	dz := cz - camera.Z()
	return dx*dx+dz*dz <= c.maxDistanceSqrd
}

// CheckEntityVisibility tests a free-form entity box. Degenerate boxes are never visible.
func (c *Classifier) CheckEntityVisibility(test VisibilityTest, box Box) bool {
	if box.Degenerate() {
		return false
	}
	return test.IsVisible(box)
}
