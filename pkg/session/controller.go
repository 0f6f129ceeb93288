// Package session owns the camera capture session: lifecycle, device
// selection, capability-checked configuration, capture coordination and
// the gesture/orientation bridges. All hardware access goes through the
// hw.Device contract so the same state machine drives the Pi backend,
// the macOS development backend and the simulated devices.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
	"github.com/viewfinderhq/viewfinder/pkg/hw"
)

// State is the capture session lifecycle state.
type State string

const (
	StateUnprepared State = "unprepared"
	StatePrepared   State = "prepared"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
)

// Options tunes session behavior that is not per-request.
type Options struct {
	PreviewWidth  int
	PreviewHeight int
	PreviewFPS    int
	// VideoPath is where recording segments land.
	VideoPath string
}

// Controller owns the capture session. At most one physical input is
// attached at a time; every reconfiguration happens inside the
// controller's write lock so concurrent capability queries and capture
// requests never observe a half-switched device.
type Controller struct {
	provider hw.Provider
	opts     Options

	mu          sync.RWMutex
	state       State
	active      hw.Device
	other       hw.Device
	position    capability.Position
	highRes     bool
	orientation Orientation
	recording   bool

	pendingMu sync.Mutex
	pending   map[uuid.UUID]chan stillResult
}

// New builds a controller over the given device provider.
func New(provider hw.Provider, opts Options) *Controller {
	if opts.PreviewWidth == 0 {
		opts.PreviewWidth = 640
	}
	if opts.PreviewHeight == 0 {
		opts.PreviewHeight = 480
	}
	if opts.PreviewFPS == 0 {
		opts.PreviewFPS = 30
	}
	if opts.VideoPath == "" {
		opts.VideoPath = "video.h264"
	}
	return &Controller{
		provider:    provider,
		opts:        opts,
		state:       StateUnprepared,
		position:    capability.PositionUnspecified,
		orientation: OrientationPortrait,
		pending:     make(map[uuid.UUID]chan stillResult),
	}
}

// Prepare selects devices for the requested position, applies the
// baseline configuration and starts the session running.
func (c *Controller) Prepare(pos capability.Position, highResolution bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateRunning {
		return ErrSessionAlreadyRunning
	}

	active, other, err := selectDevices(c.provider, pos)
	if err != nil {
		return err
	}
	c.active = active
	c.other = other
	c.position = pos
	c.highRes = highResolution
	c.state = StatePrepared

	if err := applyBaseline(active); err != nil {
		return err
	}
	if err := active.StartPreview(hw.PreviewParams{
		Width:  c.opts.PreviewWidth,
		Height: c.opts.PreviewHeight,
		FPS:    c.opts.PreviewFPS,
	}); err != nil {
		return fmt.Errorf("%w: start preview: %v", ErrInvalidOperation, err)
	}
	if err := active.SetRotation(c.orientation.rotation()); err != nil {
		slog.Warn("failed to apply rotation at session start", "error", err)
	}

	c.state = StateRunning
	slog.Info("capture session running",
		"device", active.Descriptor().ID,
		"position", pos,
		"highResolution", highResolution)
	return nil
}

// Stop halts the session. It is idempotent and keeps the device wiring
// so a later Prepare is cheap. Pending captures are fulfilled with
// ErrSessionMissing, never left dangling.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return nil
	}
	if c.recording {
		if err := c.active.EndVideo(); err != nil {
			slog.Warn("failed to end recording on stop", "error", err)
		}
		c.recording = false
	}
	if err := c.active.StopPreview(); err != nil {
		slog.Warn("failed to stop preview", "error", err)
	}
	c.state = StateStopped
	c.mu.Unlock()

	c.failPending(ErrSessionMissing)
	slog.Info("capture session stopped")
	return nil
}

// SwitchCamera swaps the session input to the opposite logical device
// inside one atomic reconfiguration bracket. The swap commits only
// after the target device accepts its baseline configuration and its
// preview is running; on failure the session stays on the current
// device. Switching an unspecified position is a no-op, not an error.
func (c *Controller) SwitchCamera() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return ErrSessionMissing
	}
	if c.position == capability.PositionUnspecified {
		return nil
	}
	if c.other == nil {
		return fmt.Errorf("%w: no device for the opposite position", ErrInvalidOperation)
	}

	// Configure the target before touching the live preview so a
	// rejected configuration leaves the current device untouched.
	target := c.other
	if err := applyBaseline(target); err != nil {
		return err
	}

	params := hw.PreviewParams{
		Width:  c.opts.PreviewWidth,
		Height: c.opts.PreviewHeight,
		FPS:    c.opts.PreviewFPS,
	}
	if err := c.active.StopPreview(); err != nil {
		slog.Warn("failed to stop preview during switch", "error", err)
	}
	if err := target.StartPreview(params); err != nil {
		// Put the previous device's preview back so the session stays
		// usable on its original input.
		if rerr := c.active.StartPreview(params); rerr != nil {
			c.state = StateStopped
			slog.Error("preview unrecoverable after failed switch", "error", rerr)
		}
		return fmt.Errorf("%w: start preview: %v", ErrInvalidOperation, err)
	}

	c.active, c.other = target, c.active
	c.position = c.position.Opposite()

	if err := c.active.SetRotation(c.orientation.rotation()); err != nil {
		slog.Warn("failed to re-apply rotation after switch", "error", err)
	}

	slog.Info("switched camera", "device", c.active.Descriptor().ID, "position", c.position)
	return nil
}

// applyBaseline puts a freshly selected device into the default state:
// continuous autofocus/exposure where supported, flash and torch off,
// and a 2.0 zoom on multi-lens units whose native 1.0 factor maps to an
// ultra-wide field of view most callers do not want as default.
func applyBaseline(dev hw.Device) error {
	caps := dev.Descriptor().Caps
	err := dev.Configure(func(cfg *hw.Config) error {
		cfg.FlashMode = capability.FlashOff
		cfg.TorchMode = capability.TorchOff
		cfg.ExposureBias = 0
		cfg.FocusPoint = nil
		cfg.ExposurePoint = nil
		if caps.SupportsFocusMode(capability.FocusContinuous) {
			cfg.FocusMode = capability.FocusContinuous
		}
		if caps.SupportsExposureMode(capability.ExposureContinuous) {
			cfg.ExposureMode = capability.ExposureContinuous
		} else if caps.SupportsExposureMode(capability.ExposureAuto) {
			cfg.ExposureMode = capability.ExposureAuto
		}
		if caps.SupportsWhiteBalanceMode(capability.WhiteBalanceContinuous) {
			cfg.WhiteBalance = capability.WhiteBalanceContinuous
		} else if caps.SupportsWhiteBalanceMode(capability.WhiteBalanceAuto) {
			cfg.WhiteBalance = capability.WhiteBalanceAuto
		}
		if caps.MultiLens {
			cfg.Zoom = caps.ClampZoom(2.0)
		} else {
			cfg.Zoom = 1.0
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: apply baseline configuration: %v", ErrInvalidOperation, err)
	}
	return nil
}

// State reports the session lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Position reports the active logical position.
func (c *Controller) Position() capability.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// Caps returns the capability snapshot of the active device.
func (c *Controller) Caps() (capability.Caps, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return capability.Caps{}, ErrSessionMissing
	}
	return c.active.Descriptor().Caps, nil
}

// device returns the active device when one is selected.
func (c *Controller) device() (hw.Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return nil, ErrSessionMissing
	}
	return c.active, nil
}

// runningDevice returns the active device only while Running.
func (c *Controller) runningDevice() (hw.Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateRunning || c.active == nil {
		return nil, ErrSessionMissing
	}
	return c.active, nil
}

// PreviewFrame returns the latest preview frame for streaming sinks.
func (c *Controller) PreviewFrame() ([]byte, error) {
	dev, err := c.runningDevice()
	if err != nil {
		return nil, err
	}
	return dev.LatestFrame()
}
