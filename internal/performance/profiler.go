package performance

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Tick pass names recorded by the engine.
const (
	PassBlockEntities = "tick.block_entities"
	PassEntities      = "tick.entities"
	PassChunks        = "tick.chunks"
	PassMaintenance   = "tick.maintenance"
	PassTotal         = "tick.total"
)

// Profiler accumulates durations per named pass
type Profiler struct {
	mu        sync.Mutex
	passes    map[string]*passStats
	enabled   atomic.Bool
	startTime time.Time
}

type passStats struct {
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
	last  time.Duration
}

// PassTiming is a snapshot of one pass
type PassTiming struct {
	Name    string        `json:"name"`
	Count   int64         `json:"count"`
	Total   time.Duration `json:"total_ns"`
	Average time.Duration `json:"avg_ns"`
	Min     time.Duration `json:"min_ns"`
	Max     time.Duration `json:"max_ns"`
	Last    time.Duration `json:"last_ns"`
}

// Span is an in-flight measurement returned by Start
type Span struct {
	profiler *Profiler
	pass     string
	start    time.Time
}

// NewProfiler creates a profiler
func NewProfiler(enabled bool) *Profiler {
	p := &Profiler{
		passes:    make(map[string]*passStats),
		startTime: time.Now(),
	}
	p.enabled.Store(enabled)
	return p
}

// Start begins timing a pass. A disabled profiler returns a nil span, which End ignores.
func (p *Profiler) Start(pass string) *Span {
	if !p.enabled.Load() {
		return nil
	}
	return &Span{profiler: p, pass: pass, start: time.Now()}
}

// End records the elapsed time of the span
func (s *Span) End() {
	if s == nil {
		return
	}
	s.profiler.Observe(s.pass, time.Since(s.start))
}

// Observe records a duration for a pass
func (p *Profiler) Observe(pass string, d time.Duration) {
	if !p.enabled.Load() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.passes[pass]
	if !ok {
		st = &passStats{min: d, max: d}
		p.passes[pass] = st
	}
	st.count++
	st.total += d
	st.last = d
	if d < st.min {
		st.min = d
	}
	if d > st.max {
		st.max = d
	}
}

// Timing returns the snapshot of one pass
func (p *Profiler) Timing(pass string) (PassTiming, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.passes[pass]
	if !ok {
		return PassTiming{}, false
	}
	return st.snapshot(pass), true
}

// Timings returns every pass sorted by name
func (p *Profiler) Timings() []PassTiming {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PassTiming, 0, len(p.passes))
	for name, st := range p.passes {
		out = append(out, st.snapshot(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (st *passStats) snapshot(name string) PassTiming {
	t := PassTiming{
		Name:  name,
		Count: st.count,
		Total: st.total,
		Min:   st.min,
		Max:   st.max,
		Last:  st.last,
	}
	if st.count > 0 {
		t.Average = st.total / time.Duration(st.count)
	}
	return t
}

// Reset drops all recorded passes
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passes = make(map[string]*passStats)
	p.startTime = time.Now()
}

// Report renders a fixed-width table of pass timings
func (p *Profiler) Report() string {
	timings := p.Timings()
	if len(timings) == 0 {
		return "No tick timings recorded"
	}

	p.mu.Lock()
	since := p.startTime
	p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Tick Timings (since %s) ===\n", since.Format(time.RFC3339))
	fmt.Fprintf(&b, "%-24s %8s %10s %10s %10s\n", "Pass", "Count", "Avg", "Max", "Last")
	for _, t := range timings {
		fmt.Fprintf(&b, "%-24s %8d %10s %10s %10s\n",
			t.Name, t.Count,
			t.Average.Round(time.Microsecond),
			t.Max.Round(time.Microsecond),
			t.Last.Round(time.Microsecond),
		)
	}
	return b.String()
}

// LogReport writes the report to the standard logger
func (p *Profiler) LogReport() {
	log.Print(p.Report())
}

// SetEnabled switches recording on or off
func (p *Profiler) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
}

// IsEnabled returns whether recording is on
func (p *Profiler) IsEnabled() bool {
	return p.enabled.Load()
}
