package capability

// Position is the logical placement of a camera on the device body.
type Position string

const (
	PositionFront       Position = "front"
	PositionRear        Position = "rear"
	PositionUnspecified Position = "unspecified"
)

// Opposite returns the other logical position. Unspecified has no
// well-defined opposite and maps to itself.
func (p Position) Opposite() Position {
	switch p {
	case PositionFront:
		return PositionRear
	case PositionRear:
		return PositionFront
	}
	return PositionUnspecified
}

// FlashMode is a capture-time flash setting. Torch is carried as a flash
// mode on the command surface even though the hardware treats sustained
// illumination separately.
type FlashMode string

const (
	FlashOff   FlashMode = "off"
	FlashOn    FlashMode = "on"
	FlashAuto  FlashMode = "auto"
	FlashTorch FlashMode = "torch"
)

// TorchMode is a sustained illumination setting.
type TorchMode string

const (
	TorchOff  TorchMode = "off"
	TorchOn   TorchMode = "on"
	TorchAuto TorchMode = "auto"
)

type ExposureMode string

const (
	ExposureLocked     ExposureMode = "locked"
	ExposureAuto       ExposureMode = "auto"
	ExposureContinuous ExposureMode = "continuous"
	ExposureCustom     ExposureMode = "custom"
)

type FocusMode string

const (
	FocusLocked     FocusMode = "locked"
	FocusAuto       FocusMode = "auto"
	FocusContinuous FocusMode = "continuous"
)

type WhiteBalanceMode string

const (
	WhiteBalanceLocked       WhiteBalanceMode = "locked"
	WhiteBalanceAuto         WhiteBalanceMode = "auto"
	WhiteBalanceContinuous   WhiteBalanceMode = "continuous"
	WhiteBalanceIncandescent WhiteBalanceMode = "incandescent"
	WhiteBalanceFluorescent  WhiteBalanceMode = "fluorescent"
	WhiteBalanceDaylight     WhiteBalanceMode = "daylight"
	WhiteBalanceCloudy       WhiteBalanceMode = "cloudy"
)

// PictureSize is a capture resolution supported by a device.
type PictureSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a normalized point of interest: (0,0) top-left, (1,1)
// bottom-right of the sensor frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Caps is the capability snapshot of one physical device. It is queried
// once when the device is selected and treated as immutable afterwards;
// a camera switch re-queries it for the new device.
type Caps struct {
	// MultiLens marks a physical unit that combines several lenses
	// (ultra-wide, wide, tele) behind one logical device.
	MultiLens bool

	HasFlash   bool
	FlashModes []FlashMode // hardware order
	TorchModes []TorchMode // hardware order; empty means no torch

	// Zoom range is [1.0, MaxZoom].
	MaxZoom float64

	MinExposureBias float64
	MaxExposureBias float64
	ExposureModes   []ExposureMode

	WhiteBalanceModes []WhiteBalanceMode

	PictureSizes []PictureSize // hardware order

	FocusModes              []FocusMode
	FocusPointOfInterest    bool
	ExposurePointOfInterest bool
}

// Descriptor pairs a physical device identifier with its position and
// capability snapshot.
type Descriptor struct {
	ID       string
	Position Position
	Caps     Caps
}

func (c Caps) SupportsFlashMode(m FlashMode) bool {
	for _, v := range c.FlashModes {
		if v == m {
			return true
		}
	}
	return false
}

func (c Caps) SupportsTorchMode(m TorchMode) bool {
	for _, v := range c.TorchModes {
		if v == m {
			return true
		}
	}
	return false
}

// BestTorchMode picks the strongest available torch mode in priority
// order on > auto > off. It returns false when the device has no torch.
func (c Caps) BestTorchMode() (TorchMode, bool) {
	if len(c.TorchModes) == 0 {
		return TorchOff, false
	}
	for _, want := range []TorchMode{TorchOn, TorchAuto, TorchOff} {
		if c.SupportsTorchMode(want) {
			return want, true
		}
	}
	return c.TorchModes[0], true
}

func (c Caps) SupportsExposureMode(m ExposureMode) bool {
	for _, v := range c.ExposureModes {
		if v == m {
			return true
		}
	}
	return false
}

func (c Caps) SupportsFocusMode(m FocusMode) bool {
	for _, v := range c.FocusModes {
		if v == m {
			return true
		}
	}
	return false
}

func (c Caps) SupportsWhiteBalanceMode(m WhiteBalanceMode) bool {
	for _, v := range c.WhiteBalanceModes {
		if v == m {
			return true
		}
	}
	return false
}

// ClampZoom folds a requested zoom factor into the supported range.
// Out-of-range values are clamped, not rejected, so noisy gesture input
// never errors.
func (c Caps) ClampZoom(f float64) float64 {
	if f < 1.0 {
		return 1.0
	}
	if c.MaxZoom >= 1.0 && f > c.MaxZoom {
		return c.MaxZoom
	}
	return f
}

// LargestPictureSize returns the biggest supported capture resolution,
// used when high-resolution capture is requested.
func (c Caps) LargestPictureSize() (PictureSize, bool) {
	if len(c.PictureSizes) == 0 {
		return PictureSize{}, false
	}
	best := c.PictureSizes[0]
	for _, s := range c.PictureSizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best, true
}
