package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fusionmc/server/internal/culling"
	"gopkg.in/yaml.v3"
)

// LoadPriorityTable reads high/medium kind lists from a YAML file.
// An empty path returns the built-in table. Kinds are lower-cased; a list omitted
// from the file keeps its built-in entries.
//
//	high: [chest, beacon, shulker_box]
//	medium: [furnace, smoker]
func LoadPriorityTable(path string) (culling.PriorityTable, error) {
	table := culling.DefaultPriorityTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return table, fmt.Errorf("failed to read priority table: %w", err)
	}
	return ParsePriorityTable(data)
}

// ParsePriorityTable decodes a YAML priority table over the built-in defaults.
func ParsePriorityTable(data []byte) (culling.PriorityTable, error) {
	table := culling.DefaultPriorityTable()

	var raw struct {
		High   *[]string `yaml:"high"`
		Medium *[]string `yaml:"medium"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return table, fmt.Errorf("failed to parse priority table: %w", err)
	}
	if raw.High != nil {
		table.High = normalizeKinds(*raw.High)
	}
	if raw.Medium != nil {
		table.Medium = normalizeKinds(*raw.Medium)
	}
	return table, nil
}

func normalizeKinds(kinds []string) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
