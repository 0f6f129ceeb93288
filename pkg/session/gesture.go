package session

import (
	"log/slog"
	"sync"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
)

// PinchPhase is one step of a pinch gesture's lifecycle.
type PinchPhase string

const (
	PinchBegan   PinchPhase = "began"
	PinchChanged PinchPhase = "changed"
	PinchEnded   PinchPhase = "ended"
)

// GestureBridge converts raw pointer gestures into configuration calls.
// Gestures are best-effort UX, not explicit commands: any hardware
// failure is logged and swallowed, never surfaced to the caller.
//
// The bridge carries the last committed zoom factor across gestures so
// a new pinch multiplies from where the previous one ended instead of
// resetting to 1.0.
type GestureBridge struct {
	ctrl *Controller

	mu          sync.Mutex
	zoomEnabled bool
	committed   float64 // zoom at the end of the last gesture; 0 = unset
	applied     float64 // zoom applied during the current gesture
}

func NewGestureBridge(ctrl *Controller) *GestureBridge {
	return &GestureBridge{ctrl: ctrl, zoomEnabled: true}
}

// SetZoomEnabled toggles pinch-to-zoom. Disabling drops any carried
// gesture state so a later re-enable seeds from the device's factor.
func (g *GestureBridge) SetZoomEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.zoomEnabled = enabled
	if !enabled {
		g.committed = 0
		g.applied = 0
	}
}

// Tap aims focus and exposure at a point given in view coordinates.
func (g *GestureBridge) Tap(x, y, viewWidth, viewHeight float64) {
	if viewWidth <= 0 || viewHeight <= 0 {
		return
	}
	p := capability.Point{
		X: clampUnit(x / viewWidth),
		Y: clampUnit(y / viewHeight),
	}
	if err := g.ctrl.SetPointOfInterest(p); err != nil {
		slog.Warn("tap-to-focus failed", "error", err)
	}
}

// Pinch advances the pinch state machine. began and changed apply the
// candidate zoom immediately so the preview tracks the gesture live;
// ended commits the applied factor as the base for the next gesture.
func (g *GestureBridge) Pinch(phase PinchPhase, scale float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.zoomEnabled {
		return
	}

	switch phase {
	case PinchBegan, PinchChanged:
		base := g.committed
		if base == 0 {
			// First gesture since the session started: resume from the
			// device's current factor (the baseline, not 1.0).
			z, err := g.ctrl.Zoom()
			if err != nil {
				slog.Warn("pinch zoom read failed", "error", err)
				return
			}
			base = z
			g.committed = z
		}
		candidate := base * scale
		if err := g.ctrl.SetZoom(candidate); err != nil {
			slog.Warn("pinch zoom apply failed", "error", err)
			return
		}
		// Store what the device actually holds after clamping.
		if z, err := g.ctrl.Zoom(); err == nil {
			g.applied = z
		}
	case PinchEnded:
		if g.applied != 0 {
			g.committed = g.applied
		}
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
