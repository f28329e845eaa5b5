package commands

import (
	"strings"
	"testing"

	"github.com/fusionmc/server/internal/culling"
	"github.com/fusionmc/server/internal/engine"
)

func newDispatcher() (*Dispatcher, *engine.Engine) {
	e := engine.New(engine.DefaultToggles(), engine.DefaultSettings())
	return NewDispatcher(e), e
}

func TestExecuteNotHandled(t *testing.T) {
	d, _ := newDispatcher()
	for _, line := range []string{"", "   ", "/gamemode creative", "hello fusion"} {
		if res := d.Execute(line); res.Handled {
			t.Errorf("Execute(%q) should not be handled", line)
		}
	}
}

func TestExecuteHelp(t *testing.T) {
	d, _ := newDispatcher()
	tests := []string{"/fusion", "/fusionmc help", "FUSION HELP", "fusionmc"}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			res := d.Execute(line)
			if !res.Handled {
				t.Fatal("Expected handled")
			}
			if res.Lines[0] != "=== FusionMC Commands ===" {
				t.Errorf("Unexpected help header %q", res.Lines[0])
			}
			last := res.Lines[len(res.Lines)-1]
			if !strings.Contains(last, "frustum") || !strings.Contains(last, "lod") {
				t.Errorf("Expected feature list in help, got %q", last)
			}
		})
	}
}

func TestExecuteToggle(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"frustum", "/fusion toggle frustum", "Frustum Culling: OFF"},
		{"debug", "/fusion toggle debug", "Debug Mode: ON"},
		{"mixed case", "/fusionmc toggle BlockEntity", "Block Entity Culling: OFF"},
		{"lod", "/fusion toggle lod", "Level of Detail: OFF"},
		{"unknown", "/fusion toggle warp", "Invalid option! Use: blockentity, chunk, chunkrendering, debug, distance, frustum, lod"},
		{"missing", "/fusion toggle", "Use: /fusionmc toggle <blockentity|chunk|chunkrendering|debug|distance|frustum|lod>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newDispatcher()
			res := d.Execute(tt.line)
			if len(res.Lines) != 1 || res.Lines[0] != tt.want {
				t.Errorf("Execute(%q) = %v, want %q", tt.line, res.Lines, tt.want)
			}
		})
	}
}

func TestExecuteToggleChangesEngine(t *testing.T) {
	d, e := newDispatcher()
	if res := d.Execute("/fusion toggle chunk"); !res.Changed {
		t.Error("Expected a successful toggle to report a change")
	}
	if e.Toggles().ChunkCulling {
		t.Error("Expected chunk culling off")
	}
	d.Execute("/fusion toggle chunk")
	if !e.Toggles().ChunkCulling {
		t.Error("Expected chunk culling back on")
	}
}

func TestExecuteReportsChange(t *testing.T) {
	tests := []struct {
		line    string
		changed bool
	}{
		{"/fusion toggle warp", false},
		{"/fusion toggle", false},
		{"/fusion status", false},
		{"/fusion stats", false},
		{"/fusion help", false},
		{"/fusion bogus", false},
		{"/fusion clear", true},
		{"/fusion reload", true},
		{"/fusion reset", true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			d, _ := newDispatcher()
			if res := d.Execute(tt.line); res.Changed != tt.changed {
				t.Errorf("Execute(%q).Changed = %v, want %v", tt.line, res.Changed, tt.changed)
			}
		})
	}
}

func TestExecuteStatus(t *testing.T) {
	d, _ := newDispatcher()
	res := d.Execute("/fusion status")
	want := []string{
		"=== FusionMC Status ===",
		"Version: " + engine.Version,
		"Frustum Culling: ON",
		"Distance Culling: ON",
		"Block Entity Culling: ON",
		"Chunk Culling: ON",
		"Level of Detail: ON",
		"Debug Mode: OFF",
		"Chunk Rendering Optimization: ON",
	}
	if len(res.Lines) != len(want) {
		t.Fatalf("Expected %d lines, got %v", len(want), res.Lines)
	}
	for i := range want {
		if res.Lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, res.Lines[i], want[i])
		}
	}
}

func TestExecuteStats(t *testing.T) {
	d, e := newDispatcher()
	e.State().UpdateBlockEntityLists([]culling.ObjectID{1, 2, 3}, []culling.ObjectID{4})
	e.State().UpdateChunks([]culling.SpatialKey{{X: 1}}, []culling.SpatialKey{{X: 2}, {X: 3}})
	e.Cache().StoreEntity(7, true)

	res := d.Execute("/fusion stats")
	want := map[int]string{
		1: "Block Entities: 3 visible / 1 culled",
		2: "Chunks: 1 visible / 2 culled",
		3: "Entities: 0 visible / 0 culled",
		4: "Cache: 1 entities / 0 chunks",
		5: "Efficiency: 25.0%",
	}
	for i, line := range want {
		if res.Lines[i] != line {
			t.Errorf("line %d = %q, want %q", i, res.Lines[i], line)
		}
	}
}

func TestExecuteMaintenance(t *testing.T) {
	d, e := newDispatcher()

	e.Cache().StoreChunk(culling.SpatialKey{}, true)
	if res := d.Execute("/fusion clear"); res.Lines[0] != "Cache cleared successfully!" {
		t.Errorf("Unexpected clear reply %v", res.Lines)
	}
	if e.Cache().Stats().ChunkCount != 0 {
		t.Error("Expected cache cleared")
	}

	e.Cache().StoreChunk(culling.SpatialKey{}, true)
	d.Execute("/fusion reload")
	if e.Cache().Stats().ChunkCount != 0 {
		t.Error("Expected reload to clear the cache")
	}

	e.State().UpdateEntities(nil, []culling.ObjectID{1})
	d.Execute("/fusion reset")
	if e.State().Stats().EntitiesCulled != 0 {
		t.Error("Expected reset to zero the stats")
	}
}

func TestExecuteInvalidSubcommand(t *testing.T) {
	d, _ := newDispatcher()
	res := d.Execute("/fusionmc explode")
	if !res.Handled {
		t.Fatal("Expected handled")
	}
	if res.Lines[0] != "Invalid command! Use /fusionmc help for more command info." {
		t.Errorf("Unexpected reply %q", res.Lines[0])
	}
}
