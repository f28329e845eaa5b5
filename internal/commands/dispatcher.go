// Package commands implements the /fusion operator command line.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fusionmc/server/internal/engine"
)

// Roots are the command names the dispatcher answers to.
var Roots = []string{"fusion", "fusionmc"}

// Result is the reply to one command line.
type Result struct {
	// Handled is false when the line is not a fusion command at all.
	Handled bool     `json:"handled"`
	Lines   []string `json:"lines"`
	// Changed is true when the command altered engine toggles, cache or state.
	Changed bool `json:"changed"`
}

// Dispatcher parses command lines and applies them to an engine.
type Dispatcher struct {
	engine *engine.Engine
}

// NewDispatcher creates a dispatcher bound to e.
func NewDispatcher(e *engine.Engine) *Dispatcher {
	return &Dispatcher{engine: e}
}

// Execute runs a command line such as "/fusion toggle frustum".
func (d *Dispatcher) Execute(line string) Result {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Result{}
	}
	root := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if !isRoot(root) {
		return Result{}
	}
	args := parts[1:]
	if len(args) == 0 {
		return handled(d.help())
	}

	switch strings.ToLower(args[0]) {
	case "help":
		return handled(d.help())
	case "toggle":
		lines, ok := d.toggle(args[1:])
		return Result{Handled: true, Lines: lines, Changed: ok}
	case "status":
		return handled(d.status())
	case "stats":
		return handled(d.stats())
	case "clear":
		d.engine.ClearCache()
		return changed([]string{"Cache cleared successfully!"})
	case "reload":
		d.engine.Reload()
		return changed([]string{"Configuration reloaded!"})
	case "reset":
		d.engine.Reset()
		return changed([]string{"Culling state reset."})
	default:
		return handled([]string{fmt.Sprintf("Invalid command! Use /%s help for more command info.", root)})
	}
}

func (d *Dispatcher) help() []string {
	return []string{
		"=== FusionMC Commands ===",
		"/fusionmc help - Show this help",
		"/fusionmc toggle <type> - Toggle a functionality",
		"/fusionmc status - Show current status",
		"/fusionmc stats - Show culling statistics",
		"/fusionmc clear - Clear culling cache",
		"/fusionmc reload - Reload configurations",
		"/fusionmc reset - Reset culling state",
		"Types: " + strings.Join(engine.FeatureNames(), ", "),
	}
}

func (d *Dispatcher) toggle(args []string) ([]string, bool) {
	if len(args) == 0 {
		return []string{fmt.Sprintf("Use: /fusionmc toggle <%s>", strings.Join(engine.FeatureNames(), "|"))}, false
	}
	f, err := engine.ParseFeature(args[0])
	if err != nil {
		return []string{"Invalid option! Use: " + strings.Join(engine.FeatureNames(), ", ")}, false
	}
	enabled, err := d.engine.Toggle(f)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownFeature) {
			return []string{"Invalid option! Use: " + strings.Join(engine.FeatureNames(), ", ")}, false
		}
		return []string{err.Error()}, false
	}
	return []string{fmt.Sprintf("%s: %s", f.Label(), onOff(enabled))}, true
}

func (d *Dispatcher) status() []string {
	toggles := d.engine.Toggles()
	lines := []string{"=== FusionMC Status ===", "Version: " + engine.Version}
	for _, f := range engine.StatusOrder {
		lines = append(lines, fmt.Sprintf("%s: %s", f.Label(), onOff(toggles.Enabled(f))))
	}
	return lines
}

func (d *Dispatcher) stats() []string {
	s := d.engine.Snapshot()
	return []string{
		"=== FusionMC Statistics ===",
		fmt.Sprintf("Block Entities: %d visible / %d culled", s.Culling.BlockEntitiesVisible, s.Culling.BlockEntitiesCulled),
		fmt.Sprintf("Chunks: %d visible / %d culled", s.Culling.ChunksVisible, s.Culling.ChunksCulled),
		fmt.Sprintf("Entities: %d visible / %d culled", s.Culling.EntitiesVisible, s.Culling.EntitiesCulled),
		fmt.Sprintf("Cache: %d entities / %d chunks", s.Cache.EntityCount, s.Cache.ChunkCount),
		fmt.Sprintf("Efficiency: %.1f%%", s.Efficiency*100),
	}
}

func isRoot(name string) bool {
	for _, r := range Roots {
		if r == name {
			return true
		}
	}
	return false
}

func handled(lines []string) Result {
	return Result{Handled: true, Lines: lines}
}

func changed(lines []string) Result {
	return Result{Handled: true, Lines: lines, Changed: true}
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
