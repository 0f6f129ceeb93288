//go:build linux

package hw

import (
	"log/slog"
	"os/exec"
)

// ProviderOptions tunes platform device discovery.
type ProviderOptions struct {
	// TorchChip / TorchLineNum select the GPIO illuminator used as the
	// torch. Empty chip means no torch.
	TorchChip    string
	TorchLineNum int
}

// NewPlatformProvider returns the Pi camera when the rpicam tooling is
// present, and falls back to the simulated pair otherwise so the rest of
// the stack keeps working on camera-less hosts.
func NewPlatformProvider(opts ProviderOptions) Provider {
	if _, err := exec.LookPath("rpicam-vid"); err != nil {
		if _, err := exec.LookPath("libcamera-vid"); err != nil {
			slog.Warn("no rpicam tooling found, using simulated cameras")
			return NewStaticProvider(SimFrontWide(), SimRearTriple())
		}
	}
	var torch *TorchLine
	if opts.TorchChip != "" {
		t, err := NewTorchLine(opts.TorchChip, opts.TorchLineNum)
		if err != nil {
			slog.Warn("torch line unavailable", "error", err)
		} else {
			torch = t
		}
	}
	return NewStaticProvider(NewRpicamDevice(torch))
}
