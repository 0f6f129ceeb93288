package session

import (
	"fmt"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
	"github.com/viewfinderhq/viewfinder/pkg/hw"
)

// The setters here all follow the same shape: fail with
// ErrSessionMissing when no device is selected, silently accept-as-no-op
// a value the capability snapshot does not support (never partially
// apply), and mutate inside the device's exclusive Configure scope,
// surfacing hardware rejection as ErrInvalidOperation. Zoom is the
// documented exception: out-of-range factors clamp instead of no-op.

// SupportedPictureSizes reports capture resolutions in hardware order.
func (c *Controller) SupportedPictureSizes() ([]capability.PictureSize, error) {
	caps, err := c.Caps()
	if err != nil {
		return nil, err
	}
	out := make([]capability.PictureSize, len(caps.PictureSizes))
	copy(out, caps.PictureSizes)
	return out, nil
}

// SupportedFlashModes reports flash modes in hardware order, with torch
// appended when the device has one.
func (c *Controller) SupportedFlashModes() ([]capability.FlashMode, error) {
	caps, err := c.Caps()
	if err != nil {
		return nil, err
	}
	out := make([]capability.FlashMode, len(caps.FlashModes))
	copy(out, caps.FlashModes)
	if len(caps.TorchModes) > 0 {
		out = append(out, capability.FlashTorch)
	}
	return out, nil
}

// SetFlashMode applies a flash mode. Flash and torch are mutually
// exclusive at the hardware level: requesting torch picks the best
// available torch sub-mode (on > auto > off) and clears the flash;
// any other flash mode turns an active torch off.
func (c *Controller) SetFlashMode(m capability.FlashMode) error {
	dev, err := c.device()
	if err != nil {
		return err
	}
	caps := dev.Descriptor().Caps

	if m == capability.FlashTorch {
		best, ok := caps.BestTorchMode()
		if !ok {
			return nil // no torch; degrade gracefully
		}
		return c.configure(dev, func(cfg *hw.Config) {
			cfg.TorchMode = best
			cfg.FlashMode = capability.FlashOff
		})
	}

	if !caps.SupportsFlashMode(m) {
		return nil
	}
	return c.configure(dev, func(cfg *hw.Config) {
		cfg.FlashMode = m
		cfg.TorchMode = capability.TorchOff
	})
}

// FlashMode reports the active flash mode, with torch reported as the
// torch pseudo-mode when sustained illumination is on.
func (c *Controller) FlashMode() (capability.FlashMode, error) {
	dev, err := c.device()
	if err != nil {
		return "", err
	}
	cfg := dev.ActiveConfig()
	if cfg.TorchMode != capability.TorchOff && cfg.TorchMode != "" {
		return capability.FlashTorch, nil
	}
	return cfg.FlashMode, nil
}

// TorchMode reports the active torch sub-mode.
func (c *Controller) TorchMode() (capability.TorchMode, error) {
	dev, err := c.device()
	if err != nil {
		return "", err
	}
	return dev.ActiveConfig().TorchMode, nil
}

// ExposureModes reports supported exposure modes in hardware order.
func (c *Controller) ExposureModes() ([]capability.ExposureMode, error) {
	caps, err := c.Caps()
	if err != nil {
		return nil, err
	}
	out := make([]capability.ExposureMode, len(caps.ExposureModes))
	copy(out, caps.ExposureModes)
	return out, nil
}

// ExposureMode reports the active exposure mode.
func (c *Controller) ExposureMode() (capability.ExposureMode, error) {
	dev, err := c.device()
	if err != nil {
		return "", err
	}
	return dev.ActiveConfig().ExposureMode, nil
}

func (c *Controller) SetExposureMode(m capability.ExposureMode) error {
	dev, err := c.device()
	if err != nil {
		return err
	}
	if !dev.Descriptor().Caps.SupportsExposureMode(m) {
		return nil
	}
	return c.configure(dev, func(cfg *hw.Config) {
		cfg.ExposureMode = m
	})
}

// ExposureCompensation reports the active exposure bias.
func (c *Controller) ExposureCompensation() (float64, error) {
	dev, err := c.device()
	if err != nil {
		return 0, err
	}
	return dev.ActiveConfig().ExposureBias, nil
}

// ExposureCompensationRange reports the supported bias range.
func (c *Controller) ExposureCompensationRange() (min, max float64, err error) {
	caps, err := c.Caps()
	if err != nil {
		return 0, 0, err
	}
	return caps.MinExposureBias, caps.MaxExposureBias, nil
}

// SetExposureCompensation applies an exposure bias. Values outside the
// supported range are a silent no-op.
func (c *Controller) SetExposureCompensation(v float64) error {
	dev, err := c.device()
	if err != nil {
		return err
	}
	caps := dev.Descriptor().Caps
	if v < caps.MinExposureBias || v > caps.MaxExposureBias {
		return nil
	}
	return c.configure(dev, func(cfg *hw.Config) {
		cfg.ExposureBias = v
	})
}

// WhiteBalanceModes reports supported modes in hardware order.
func (c *Controller) WhiteBalanceModes() ([]capability.WhiteBalanceMode, error) {
	caps, err := c.Caps()
	if err != nil {
		return nil, err
	}
	out := make([]capability.WhiteBalanceMode, len(caps.WhiteBalanceModes))
	copy(out, caps.WhiteBalanceModes)
	return out, nil
}

// WhiteBalanceMode reports the active white-balance mode.
func (c *Controller) WhiteBalanceMode() (capability.WhiteBalanceMode, error) {
	dev, err := c.device()
	if err != nil {
		return "", err
	}
	return dev.ActiveConfig().WhiteBalance, nil
}

func (c *Controller) SetWhiteBalanceMode(m capability.WhiteBalanceMode) error {
	dev, err := c.device()
	if err != nil {
		return err
	}
	if !dev.Descriptor().Caps.SupportsWhiteBalanceMode(m) {
		return nil
	}
	return c.configure(dev, func(cfg *hw.Config) {
		cfg.WhiteBalance = m
	})
}

// SetZoom applies a zoom factor clamped into [1.0, maxZoom]. Clamping
// instead of rejecting tolerates noisy gesture input.
func (c *Controller) SetZoom(factor float64) error {
	dev, err := c.device()
	if err != nil {
		return err
	}
	clamped := dev.Descriptor().Caps.ClampZoom(factor)
	return c.configure(dev, func(cfg *hw.Config) {
		cfg.Zoom = clamped
	})
}

// Zoom reports the active zoom factor.
func (c *Controller) Zoom() (float64, error) {
	dev, err := c.device()
	if err != nil {
		return 0, err
	}
	return dev.ActiveConfig().Zoom, nil
}

// SetPointOfInterest aims focus and exposure at a normalized point and
// switches both to continuous auto so the device keeps adjusting. A
// device supporting neither point of interest is a silent no-op.
func (c *Controller) SetPointOfInterest(p capability.Point) error {
	dev, err := c.device()
	if err != nil {
		return err
	}
	caps := dev.Descriptor().Caps
	if !caps.FocusPointOfInterest && !caps.ExposurePointOfInterest {
		return nil
	}
	return c.configure(dev, func(cfg *hw.Config) {
		if caps.FocusPointOfInterest {
			pt := p
			cfg.FocusPoint = &pt
			if caps.SupportsFocusMode(capability.FocusContinuous) {
				cfg.FocusMode = capability.FocusContinuous
			}
		}
		if caps.ExposurePointOfInterest {
			pt := p
			cfg.ExposurePoint = &pt
			if caps.SupportsExposureMode(capability.ExposureContinuous) {
				cfg.ExposureMode = capability.ExposureContinuous
			}
		}
	})
}

// configure runs a validated mutation inside the device's exclusive
// configuration scope, mapping hardware rejection to ErrInvalidOperation.
func (c *Controller) configure(dev hw.Device, mutate func(*hw.Config)) error {
	err := dev.Configure(func(cfg *hw.Config) error {
		mutate(cfg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	return nil
}
