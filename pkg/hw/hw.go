// Package hw abstracts the physical camera backends. The session layer
// drives everything through the Device and Provider contracts; concrete
// backends exist for Raspberry Pi (rpicam-apps), macOS (ffmpeg) and a
// simulated device used by tests and camera-less hosts.
package hw

import (
	"github.com/viewfinderhq/viewfinder/pkg/capability"
)

// Config is the active configuration of one device. It is owned by the
// device and mutated only inside a Configure scope.
type Config struct {
	FlashMode     capability.FlashMode
	TorchMode     capability.TorchMode
	Zoom          float64
	ExposureMode  capability.ExposureMode
	ExposureBias  float64
	WhiteBalance  capability.WhiteBalanceMode
	FocusMode     capability.FocusMode
	FocusPoint    *capability.Point
	ExposurePoint *capability.Point
}

// PreviewParams selects the preview stream geometry.
type PreviewParams struct {
	Width  int
	Height int
	FPS    int
}

// StillParams carries everything a backend needs for one still capture.
type StillParams struct {
	Quality        int
	FlashMode      capability.FlashMode
	HighResolution bool
}

// StillCallback delivers the single completion of a still capture:
// image bytes on success, a non-nil error otherwise. A backend must call
// it exactly once per TriggerStill.
type StillCallback func(data []byte, err error)

// Device is one physical camera unit.
//
// Configure runs fn while holding the device's exclusive configuration
// lock. The lock is released on every exit path; no two configuration
// mutations interleave. Returning an error from fn discards nothing that
// fn already wrote — backends apply the config snapshot only after fn
// returns nil.
type Device interface {
	Descriptor() capability.Descriptor
	Configure(fn func(*Config) error) error
	ActiveConfig() Config

	StartPreview(p PreviewParams) error
	StopPreview() error
	// LatestFrame returns the most recent preview frame as JPEG bytes.
	// It fails when the preview is not running or the frame is stale.
	LatestFrame() ([]byte, error)

	// TriggerStill issues an asynchronous hardware capture. done is
	// invoked exactly once from a backend goroutine.
	TriggerStill(p StillParams, done StillCallback)

	// BeginVideo / EndVideo bracket a recording segment. Encoding is the
	// backend's concern; the session layer only toggles.
	BeginVideo(path string) error
	EndVideo() error

	// SetRotation applies a video rotation (degrees, clockwise) to the
	// preview and photo connections.
	SetRotation(degrees int) error
}

// Provider enumerates the physical devices available on this host.
type Provider interface {
	Devices() ([]Device, error)
}
