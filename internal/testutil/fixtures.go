package testutil

import (
	"math/rand"

	"github.com/fusionmc/server/internal/culling"
	"github.com/go-gl/mathgl/mgl64"
)

// TestFixtures generates culling candidates for tests. IDs are unique per fixture set.
type TestFixtures struct {
	nextID culling.ObjectID
	rng    *rand.Rand
}

// NewTestFixtures creates a fixture generator with a fixed seed
func NewTestFixtures() *TestFixtures {
	return &TestFixtures{rng: rand.New(rand.NewSource(1))}
}

func (f *TestFixtures) id() culling.ObjectID {
	f.nextID++
	return f.nextID
}

// BlockEntity returns a block-type candidate of the given kind at (x, y, z).
func (f *TestFixtures) BlockEntity(kind string, x, y, z float64) *culling.Candidate {
	return &culling.Candidate{
		ID:       f.id(),
		Kind:     kind,
		Position: mgl64.Vec3{x, y, z},
	}
}

// Entity returns an entity candidate with a 0.6 x 1.8 x 0.6 box whose feet are at (x, y, z).
func (f *TestFixtures) Entity(kind string, x, y, z float64) *culling.Candidate {
	return &culling.Candidate{
		ID:       f.id(),
		Kind:     kind,
		Position: mgl64.Vec3{x, y, z},
		Bounds: &culling.Box{
			Min: mgl64.Vec3{x - 0.3, y, z - 0.3},
			Max: mgl64.Vec3{x + 0.3, y + 1.8, z + 0.3},
		},
	}
}

// RandomBlockEntities scatters n block entities of the given kinds within radius
// blocks of the origin at y = 64.
func (f *TestFixtures) RandomBlockEntities(n int, radius float64, kinds ...string) []*culling.Candidate {
	if len(kinds) == 0 {
		kinds = []string{"minecraft:chest", "minecraft:furnace", "minecraft:sign"}
	}
	out := make([]*culling.Candidate, 0, n)
	for i := 0; i < n; i++ {
		x := (f.rng.Float64()*2 - 1) * radius
		z := (f.rng.Float64()*2 - 1) * radius
		out = append(out, f.BlockEntity(kinds[i%len(kinds)], x, 64, z))
	}
	return out
}
