// Package render drives the preview display at a fixed cadence. Each
// cycle pairs the current scene snapshot with the newest leasable frame
// and hands both to a renderer collaborator; frame delivery problems
// degrade to re-rendering the previous imagery, never to a stall.
package render

import (
	"sync"
	"time"

	"github.com/insolesplug-ops/selimcam/internal/framebuf"
	"github.com/insolesplug-ops/selimcam/internal/scene"
)

// RenderContext is everything a renderer needs for one cycle. The lease,
// when present, is valid only for the duration of the Render call; the
// loop releases it afterwards. Renderers must not retain it.
type RenderContext struct {
	// At is the cycle start time.
	At time.Time
	// Scene is the scene snapshot for this cycle.
	Scene scene.State
	// Lease is the newest frame, nil when no frame could be leased this
	// cycle. The previous imagery should stay on screen then.
	Lease *framebuf.Lease
	// Fresh reports whether the leased frame is newer than the last one
	// this loop rendered.
	Fresh bool
}

// Renderer draws one cycle. Implementations must be fast relative to the
// frame interval; an error is counted and logged, never fatal.
type Renderer interface {
	Render(ctx RenderContext) error
}

// NullRenderer draws nothing. It serves headless operation and the
// benchmark command's pipeline-only runs.
type NullRenderer struct{}

func (NullRenderer) Render(RenderContext) error { return nil }

// StatsRenderer records what it was asked to draw. Tests and the
// benchmark command read it back; pixel data is never retained.
type StatsRenderer struct {
	mu           sync.Mutex
	cycles       uint64
	withFrame    uint64
	freshFrames  uint64
	lastScene    scene.State
	lastSequence uint64
	lastBytes    int
}

// Render implements Renderer.
func (r *StatsRenderer) Render(ctx RenderContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	r.lastScene = ctx.Scene
	if ctx.Lease != nil {
		r.withFrame++
		r.lastSequence = ctx.Lease.Frame().Sequence
		r.lastBytes = len(ctx.Lease.Bytes())
		if ctx.Fresh {
			r.freshFrames++
		}
	}
	return nil
}

// StatsSnapshot is what a StatsRenderer has seen so far.
type StatsSnapshot struct {
	Cycles       uint64
	WithFrame    uint64
	FreshFrames  uint64
	LastScene    scene.State
	LastSequence uint64
	LastBytes    int
}

// Snapshot returns the renderer's counters.
func (r *StatsRenderer) Snapshot() StatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return StatsSnapshot{
		Cycles:       r.cycles,
		WithFrame:    r.withFrame,
		FreshFrames:  r.freshFrames,
		LastScene:    r.lastScene,
		LastSequence: r.lastSequence,
		LastBytes:    r.lastBytes,
	}
}
