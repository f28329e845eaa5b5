package culling

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ChunkSize is the edge length of a chunk column in blocks.
	ChunkSize = 16
	// WorldMinY and WorldMaxY bound the build height of a chunk column.
	WorldMinY = -64.0
	WorldMaxY = 320.0
	// WorldBorder is the largest horizontal distance from the origin, in blocks.
	WorldBorder = 30_000_000.0
)

// SpatialKey identifies a chunk column by its grid coordinates.
type SpatialKey struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

// ChunkKeyAt returns the chunk column containing the world position. Coordinates
// beyond the world border clamp to it and NaN reads as 0.
func ChunkKeyAt(pos mgl64.Vec3) SpatialKey {
	return SpatialKey{
		X: chunkCoord(pos.X()),
		Z: chunkCoord(pos.Z()),
	}
}

func chunkCoord(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-WorldBorder, math.Min(WorldBorder, v))
	return int32(math.Floor(v / ChunkSize))
}

// Bounds returns the full-height bounding box of the chunk column.
func (k SpatialKey) Bounds() Box {
	minX := float64(k.X) * ChunkSize
	minZ := float64(k.Z) * ChunkSize
	return Box{
		Min: mgl64.Vec3{minX, WorldMinY, minZ},
		Max: mgl64.Vec3{minX + ChunkSize, WorldMaxY, minZ + ChunkSize},
	}
}

// Center returns the planar center of the chunk column.
func (k SpatialKey) Center() (x, z float64) {
	return float64(k.X)*ChunkSize + ChunkSize/2, float64(k.Z)*ChunkSize + ChunkSize/2
}

// ObjectID identifies a dynamic object for the lifetime of a tick cycle.
type ObjectID int64

// Box is an axis-aligned bounding box in world coordinates.
type Box struct {
	Min mgl64.Vec3 `json:"min"`
	Max mgl64.Vec3 `json:"max"`
}

// BlockBox returns the unit cube whose minimum corner is the block containing pos.
func BlockBox(pos mgl64.Vec3) Box {
	origin := mgl64.Vec3{math.Floor(pos.X()), math.Floor(pos.Y()), math.Floor(pos.Z())}
	return Box{Min: origin, Max: origin.Add(mgl64.Vec3{1, 1, 1})}
}

// Degenerate reports whether the box has a non-finite coordinate or an inverted axis.
// Flat boxes (min == max on an axis) are not degenerate.
func (b Box) Degenerate() bool {
	for i := 0; i < 3; i++ {
		lo, hi := b.Min[i], b.Max[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			return true
		}
		if hi < lo {
			return true
		}
	}
	return false
}

// Center returns the midpoint of the box.
func (b Box) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Intersects reports whether two boxes overlap, touching faces included.
func (b Box) Intersects(o Box) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}
