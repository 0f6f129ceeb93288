//go:build darwin

package hw

import (
	"log/slog"
	"os/exec"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
)

// ProviderOptions tunes platform device discovery. The torch fields are
// accepted for config compatibility and ignored on macOS.
type ProviderOptions struct {
	TorchChip    string
	TorchLineNum int
}

// NewPlatformProvider returns the built-in webcam when ffmpeg is
// available, and the simulated pair otherwise.
func NewPlatformProvider(opts ProviderOptions) Provider {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		slog.Warn("ffmpeg not found, using simulated cameras")
		return NewStaticProvider(SimFrontWide(), SimRearTriple())
	}
	// Device 0 is the default camera; it faces the user.
	return NewStaticProvider(NewFFmpegDevice(capability.PositionFront, "0"))
}
