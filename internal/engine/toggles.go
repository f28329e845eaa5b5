package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Feature names a switchable part of the culling pipeline.
type Feature string

const (
	FeatureFrustum        Feature = "frustum"
	FeatureDistance       Feature = "distance"
	FeatureBlockEntity    Feature = "blockentity"
	FeatureChunk          Feature = "chunk"
	FeatureDebug          Feature = "debug"
	FeatureChunkRendering Feature = "chunkrendering"
	FeatureLOD            Feature = "lod"
)

// ErrUnknownFeature is returned for a feature name no toggle exists for.
var ErrUnknownFeature = errors.New("unknown feature")

// Toggles is the set of feature switches owned by the host.
type Toggles struct {
	BlockEntityCulling         bool `json:"block_entity_culling"`
	ChunkCulling               bool `json:"chunk_culling"`
	DistanceCulling            bool `json:"distance_culling"`
	FrustumCulling             bool `json:"frustum_culling"`
	LOD                        bool `json:"lod"`
	ChunkRenderingOptimization bool `json:"chunk_rendering_optimization"`
	Debug                      bool `json:"debug"`
}

// ParseFeature resolves a case-insensitive feature name.
func ParseFeature(name string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := featureLabels[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	return f, nil
}

// FeatureNames lists every feature name in sorted order.
func FeatureNames() []string {
	names := make([]string, 0, len(featureLabels))
	for f := range featureLabels {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// Label is the human readable feature name used in status output.
func (f Feature) Label() string {
	return featureLabels[f]
}

var featureLabels = map[Feature]string{
	FeatureFrustum:        "Frustum Culling",
	FeatureDistance:       "Distance Culling",
	FeatureBlockEntity:    "Block Entity Culling",
	FeatureChunk:          "Chunk Culling",
	FeatureDebug:          "Debug Mode",
	FeatureChunkRendering: "Chunk Rendering Optimization",
	FeatureLOD:            "Level of Detail",
}

// field returns a pointer to the switch for f.
func (t *Toggles) field(f Feature) *bool {
	switch f {
	case FeatureFrustum:
		return &t.FrustumCulling
	case FeatureDistance:
		return &t.DistanceCulling
	case FeatureBlockEntity:
		return &t.BlockEntityCulling
	case FeatureChunk:
		return &t.ChunkCulling
	case FeatureDebug:
		return &t.Debug
	case FeatureChunkRendering:
		return &t.ChunkRenderingOptimization
	case FeatureLOD:
		return &t.LOD
	}
	return nil
}

// Enabled reports the state of one feature.
func (t Toggles) Enabled(f Feature) bool {
	if p := t.field(f); p != nil {
		return *p
	}
	return false
}

// StatusOrder is the order features appear in status output.
var StatusOrder = []Feature{
	FeatureFrustum,
	FeatureDistance,
	FeatureBlockEntity,
	FeatureChunk,
	FeatureLOD,
	FeatureDebug,
	FeatureChunkRendering,
}
