package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fusionmc/server/internal/culling"
)

func TestLoadPriorityTableDefault(t *testing.T) {
	table, err := LoadPriorityTable("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(table, culling.DefaultPriorityTable()) {
		t.Errorf("Expected built-in table, got %+v", table)
	}
}

func TestLoadPriorityTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "priorities.yaml")
	data := []byte("high:\n  - Chest\n  - shulker_box\n  - ' '\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	table, err := LoadPriorityTable(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(table.High, []string{"chest", "shulker_box"}) {
		t.Errorf("Unexpected high list %v", table.High)
	}
	if !reflect.DeepEqual(table.Medium, culling.DefaultPriorityTable().Medium) {
		t.Errorf("Expected default medium list, got %v", table.Medium)
	}
	if table.TierFor("minecraft:shulker_box") != culling.TierHigh {
		t.Error("Expected shulker box promoted to high")
	}
}

func TestLoadPriorityTableErrors(t *testing.T) {
	if _, err := LoadPriorityTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := ParsePriorityTable([]byte("high: [unterminated")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
