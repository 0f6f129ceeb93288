package hw

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
)

// SimDevice is a deterministic in-memory camera. It honors the full
// Device contract, generates synthetic JPEG frames and counts hardware
// triggers so tests can assert on side effects.
type SimDevice struct {
	desc capability.Descriptor

	mu         sync.Mutex
	cfg        Config
	previewing bool
	recording  bool
	rotation   int
	width      int
	height     int

	// StillDelay delays the asynchronous still completion. Zero means
	// complete on a goroutine without artificial latency.
	StillDelay time.Duration
	// FailStill, when set, makes every still capture fail with it.
	FailStill error
	// FailConfigure, when set, makes Configure fail after running fn.
	FailConfigure error

	stillTriggers atomic.Int64
	frameSeq      atomic.Uint64
}

// NewSimDevice builds a simulated device with the given descriptor and a
// neutral starting configuration.
func NewSimDevice(desc capability.Descriptor) *SimDevice {
	return &SimDevice{
		desc:   desc,
		width:  640,
		height: 480,
		cfg: Config{
			FlashMode:    capability.FlashOff,
			TorchMode:    capability.TorchOff,
			Zoom:         1.0,
			ExposureMode: capability.ExposureAuto,
			WhiteBalance: capability.WhiteBalanceAuto,
			FocusMode:    capability.FocusAuto,
		},
	}
}

func (d *SimDevice) Descriptor() capability.Descriptor { return d.desc }

func (d *SimDevice) Configure(fn func(*Config) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.cfg
	if err := fn(&next); err != nil {
		return err
	}
	if d.FailConfigure != nil {
		return d.FailConfigure
	}
	d.cfg = next
	return nil
}

func (d *SimDevice) ActiveConfig() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

func (d *SimDevice) StartPreview(p PreviewParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.previewing {
		return fmt.Errorf("preview already running")
	}
	if p.Width > 0 {
		d.width = p.Width
	}
	if p.Height > 0 {
		d.height = p.Height
	}
	d.previewing = true
	return nil
}

func (d *SimDevice) StopPreview() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.previewing = false
	return nil
}

func (d *SimDevice) LatestFrame() ([]byte, error) {
	d.mu.Lock()
	previewing := d.previewing
	w, h := d.width, d.height
	d.mu.Unlock()
	if !previewing {
		return nil, fmt.Errorf("preview not running")
	}
	return d.renderFrame(w, h, 80)
}

func (d *SimDevice) TriggerStill(p StillParams, done StillCallback) {
	d.stillTriggers.Add(1)
	delay := d.StillDelay
	failWith := d.FailStill
	d.mu.Lock()
	w, h := d.width, d.height
	d.mu.Unlock()

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		if failWith != nil {
			done(nil, failWith)
			return
		}
		if p.HighResolution {
			if best, ok := d.desc.Caps.LargestPictureSize(); ok {
				w, h = best.Width, best.Height
			}
		}
		data, err := d.renderFrame(w, h, p.Quality)
		done(data, err)
	}()
}

func (d *SimDevice) BeginVideo(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recording {
		return fmt.Errorf("already recording")
	}
	d.recording = true
	return nil
}

func (d *SimDevice) EndVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recording = false
	return nil
}

func (d *SimDevice) SetRotation(degrees int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rotation = degrees
	return nil
}

// Rotation reports the rotation last applied to the connections.
func (d *SimDevice) Rotation() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotation
}

// StillTriggers reports how many hardware captures were issued.
func (d *SimDevice) StillTriggers() int64 { return d.stillTriggers.Load() }

// renderFrame produces a synthetic JPEG with a per-frame tint so
// consecutive frames differ.
func (d *SimDevice) renderFrame(w, h, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	seq := d.frameSeq.Add(1)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	tint := byte(seq % 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			img.Pix[off] = tint
			img.Pix[off+1] = byte((x * 255) / w)
			img.Pix[off+2] = byte((y * 255) / h)
			img.Pix[off+3] = 255
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// StaticProvider serves a fixed device list.
type StaticProvider struct {
	devices []Device
}

func NewStaticProvider(devices ...Device) *StaticProvider {
	return &StaticProvider{devices: devices}
}

func (p *StaticProvider) Devices() ([]Device, error) {
	out := make([]Device, len(p.devices))
	copy(out, p.devices)
	return out, nil
}

// SimFrontWide returns a front wide-angle device with modest caps.
func SimFrontWide() *SimDevice {
	return NewSimDevice(capability.Descriptor{
		ID:       "sim-front-wide",
		Position: capability.PositionFront,
		Caps: capability.Caps{
			MaxZoom:         4.0,
			MinExposureBias: -2.0,
			MaxExposureBias: 2.0,
			ExposureModes: []capability.ExposureMode{
				capability.ExposureAuto,
				capability.ExposureContinuous,
				capability.ExposureLocked,
			},
			WhiteBalanceModes: []capability.WhiteBalanceMode{
				capability.WhiteBalanceAuto,
				capability.WhiteBalanceContinuous,
			},
			PictureSizes: []capability.PictureSize{
				{Width: 1920, Height: 1080},
				{Width: 1280, Height: 720},
			},
			FocusModes: []capability.FocusMode{
				capability.FocusAuto,
				capability.FocusContinuous,
			},
		},
	})
}

// SimRearWide returns a single-lens rear device.
func SimRearWide() *SimDevice {
	return NewSimDevice(capability.Descriptor{
		ID:       "sim-rear-wide",
		Position: capability.PositionRear,
		Caps: capability.Caps{
			HasFlash: true,
			FlashModes: []capability.FlashMode{
				capability.FlashOff,
				capability.FlashOn,
				capability.FlashAuto,
			},
			TorchModes: []capability.TorchMode{
				capability.TorchOff,
				capability.TorchOn,
				capability.TorchAuto,
			},
			MaxZoom:         8.0,
			MinExposureBias: -8.0,
			MaxExposureBias: 8.0,
			ExposureModes: []capability.ExposureMode{
				capability.ExposureAuto,
				capability.ExposureContinuous,
				capability.ExposureLocked,
				capability.ExposureCustom,
			},
			WhiteBalanceModes: []capability.WhiteBalanceMode{
				capability.WhiteBalanceAuto,
				capability.WhiteBalanceContinuous,
				capability.WhiteBalanceIncandescent,
				capability.WhiteBalanceFluorescent,
				capability.WhiteBalanceDaylight,
				capability.WhiteBalanceCloudy,
			},
			PictureSizes: []capability.PictureSize{
				{Width: 4032, Height: 3024},
				{Width: 1920, Height: 1080},
				{Width: 1280, Height: 720},
			},
			FocusModes: []capability.FocusMode{
				capability.FocusAuto,
				capability.FocusContinuous,
				capability.FocusLocked,
			},
			FocusPointOfInterest:    true,
			ExposurePointOfInterest: true,
		},
	})
}

// SimRearTriple returns a multi-lens rear device. Its native 1.0 zoom
// maps to the ultra-wide lens, which is why the session applies a 2.0
// baseline on it.
func SimRearTriple() *SimDevice {
	d := SimRearWide()
	d.desc.ID = "sim-rear-triple"
	d.desc.Caps.MultiLens = true
	d.desc.Caps.MaxZoom = 16.0
	return d
}
