package session

import "log/slog"

// Orientation is the coarse interface orientation fed in by the
// surrounding view layer.
type Orientation string

const (
	OrientationPortrait           Orientation = "portrait"
	OrientationPortraitUpsideDown Orientation = "portraitUpsideDown"
	OrientationLandscapeLeft      Orientation = "landscapeLeft"
	OrientationLandscapeRight     Orientation = "landscapeRight"
)

// rotation maps an interface orientation to the video rotation applied
// to the preview and photo connections. Unknown values degrade to
// portrait upright rather than failing.
func (o Orientation) rotation() int {
	switch o {
	case OrientationPortraitUpsideDown:
		return 180
	case OrientationLandscapeLeft:
		return 90
	case OrientationLandscapeRight:
		return 270
	default:
		return 0
	}
}

// ApplyOrientation records a new interface orientation and pushes the
// matching rotation onto the active connections. It is applied again
// automatically at session start and after a camera switch.
func (c *Controller) ApplyOrientation(o Orientation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orientation = o
	if c.active == nil {
		return nil
	}
	if err := c.active.SetRotation(o.rotation()); err != nil {
		slog.Warn("failed to apply rotation", "orientation", o, "error", err)
		return err
	}
	return nil
}

// Orientation reports the last applied interface orientation.
func (c *Controller) Orientation() Orientation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orientation
}
