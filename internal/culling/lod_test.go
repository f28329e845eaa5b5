package culling

import (
	"errors"
	"testing"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		distance float64
		want     LODLevel
	}{
		{0, LODHigh},
		{31.99, LODHigh},
		{32, LODMedium},
		{63.9, LODMedium},
		{64, LODLow},
		{127.5, LODLow},
		{128, LODNone},
		{10000, LODNone},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.distance); got != tt.want {
			t.Errorf("LevelFor(%v) = %s, want %s", tt.distance, got, tt.want)
		}
	}
}

func TestLevelForMonotonic(t *testing.T) {
	prev := LevelFor(0)
	for d := 0.0; d < 300; d += 0.5 {
		level := LevelFor(d)
		if level > prev {
			t.Fatalf("LOD became more capable at distance %v: %s after %s", d, level, prev)
		}
		prev = level
	}
}

func TestShouldRender(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		distance float64
		want     bool
	}{
		{"block entity near", CategoryBlockEntity, 10, true},
		{"block entity low tier", CategoryBlockEntity, 100, true},
		{"block entity beyond", CategoryBlockEntity, 128, false},
		{"entity medium", CategoryEntity, 50, true},
		{"entity low", CategoryEntity, 64, false},
		{"particle high", CategoryParticle, 31, true},
		{"particle medium", CategoryParticle, 32, false},
		{"chunk detail high", CategoryChunkDetail, 5, true},
		{"chunk detail medium", CategoryChunkDetail, 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldRender(tt.distance, tt.category)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldRender(%v, %s) = %v, want %v", tt.distance, tt.category, got, tt.want)
			}
		})
	}
}

func TestShouldRenderUnknownCategory(t *testing.T) {
	ok, err := ShouldRender(1, Category(99))
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("Expected ErrUnknownCategory, got %v", err)
	}
	if ok {
		t.Error("Expected unknown category not to render")
	}
}
