//go:build !linux && !darwin

package hw

// ProviderOptions tunes platform device discovery. No options apply on
// platforms without camera tooling.
type ProviderOptions struct {
	TorchChip    string
	TorchLineNum int
}

// NewPlatformProvider has no real backend here; the simulated pair keeps
// the rest of the stack working.
func NewPlatformProvider(opts ProviderOptions) Provider {
	return NewStaticProvider(SimFrontWide(), SimRearTriple())
}
