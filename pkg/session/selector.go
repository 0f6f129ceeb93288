package session

import (
	"github.com/viewfinderhq/viewfinder/pkg/capability"
	"github.com/viewfinderhq/viewfinder/pkg/hw"
)

// pickDevice chooses the physical device backing a logical position.
// For the rear a multi-lens unit beats a single wide-angle one; the
// front always uses the wide-angle device.
func pickDevice(devices []hw.Device, pos capability.Position) hw.Device {
	var wide hw.Device
	for _, d := range devices {
		desc := d.Descriptor()
		if desc.Position != pos {
			continue
		}
		if pos == capability.PositionRear && desc.Caps.MultiLens {
			return d
		}
		if wide == nil {
			wide = d
		}
	}
	return wide
}

// selectDevices resolves the active device for pos and eagerly resolves
// the opposite position too, so a later switch does not re-scan
// hardware. other may be nil; active never is on a nil error.
func selectDevices(provider hw.Provider, pos capability.Position) (active, other hw.Device, err error) {
	devices, err := provider.Devices()
	if err != nil {
		return nil, nil, err
	}
	active = pickDevice(devices, pos)
	if active == nil {
		return nil, nil, ErrNoCamerasAvailable
	}
	other = pickDevice(devices, pos.Opposite())
	return active, other, nil
}
