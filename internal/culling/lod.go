package culling

import (
	"errors"
	"fmt"
)

// LODLevel is a rendering fidelity tier chosen by camera distance.
type LODLevel int

// Declared from least to most capable so that comparisons read naturally.
const (
	LODNone LODLevel = iota
	LODLow
	LODMedium
	LODHigh
)

func (l LODLevel) String() string {
	switch l {
	case LODHigh:
		return "high"
	case LODMedium:
		return "medium"
	case LODLow:
		return "low"
	case LODNone:
		return "none"
	}
	return "unknown"
}

// Distance thresholds in blocks. Each is an exclusive upper bound.
const (
	LODHighDistance   = 32.0
	LODMediumDistance = 64.0
	LODLowDistance    = 128.0
)

// LevelFor maps a camera distance to a LOD level.
func LevelFor(distance float64) LODLevel {
	switch {
	case distance < LODHighDistance:
		return LODHigh
	case distance < LODMediumDistance:
		return LODMedium
	case distance < LODLowDistance:
		return LODLow
	default:
		return LODNone
	}
}

// Category is an object class with its own LOD acceptance set.
type Category int

const (
	CategoryBlockEntity Category = iota
	CategoryEntity
	CategoryParticle
	CategoryChunkDetail
)

func (c Category) String() string {
	switch c {
	case CategoryBlockEntity:
		return "block_entity"
	case CategoryEntity:
		return "entity"
	case CategoryParticle:
		return "particle"
	case CategoryChunkDetail:
		return "chunk_detail"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ErrUnknownCategory is returned for a category without an acceptance set.
var ErrUnknownCategory = errors.New("unknown render category")

var acceptance = map[Category]map[LODLevel]bool{
	CategoryBlockEntity: {LODHigh: true, LODMedium: true, LODLow: true},
	CategoryEntity:      {LODHigh: true, LODMedium: true},
	CategoryParticle:    {LODHigh: true},
	CategoryChunkDetail: {LODHigh: true},
}

// ShouldRender reports whether an object of the category renders at the given distance.
func ShouldRender(distance float64, category Category) (bool, error) {
	accepted, ok := acceptance[category]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return accepted[LevelFor(distance)], nil
}
