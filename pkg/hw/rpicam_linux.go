//go:build linux

package hw

import (
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
)

// RpicamDevice drives a Raspberry Pi camera through rpicam-apps
// (libcamera-apps on older OS releases). The preview is a persistent
// rpicam-vid MJPEG stream; stills run rpicam-still with flags mapped
// from the active configuration. Configuration changes restart the
// preview process, which is the only way libcamera-apps pick up new
// settings.
type RpicamDevice struct {
	desc  capability.Descriptor
	torch *TorchLine // nil when no illuminator line is configured

	mu       sync.Mutex
	cfg      Config
	rotation int
	preview  PreviewParams
	cmd      *exec.Cmd
	videoCmd *exec.Cmd
	slot     FrameSlot
}

// TorchLine is a GPIO-driven illuminator used as the torch on Pi rigs
// that pair the camera with an LED.
type TorchLine struct {
	line *gpiocdev.Line
}

// NewTorchLine requests the illuminator line as an output, initially off.
func NewTorchLine(chip string, offset int) (*TorchLine, error) {
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("failed to request torch line: %w", err)
	}
	return &TorchLine{line: l}, nil
}

func (t *TorchLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return t.line.SetValue(v)
}

func (t *TorchLine) Close() error { return t.line.Close() }

// NewRpicamDevice builds the rear Pi camera device. torch may be nil.
func NewRpicamDevice(torch *TorchLine) *RpicamDevice {
	caps := capability.Caps{
		MaxZoom:         8.0, // digital, via --roi crop
		MinExposureBias: -10.0,
		MaxExposureBias: 10.0,
		ExposureModes: []capability.ExposureMode{
			capability.ExposureAuto,
			capability.ExposureContinuous,
		},
		WhiteBalanceModes: []capability.WhiteBalanceMode{
			capability.WhiteBalanceAuto,
			capability.WhiteBalanceIncandescent,
			capability.WhiteBalanceFluorescent,
			capability.WhiteBalanceDaylight,
			capability.WhiteBalanceCloudy,
		},
		PictureSizes: []capability.PictureSize{
			{Width: 4608, Height: 2592}, // Camera Module 3 full sensor
			{Width: 1920, Height: 1080},
			{Width: 1280, Height: 720},
		},
		FocusModes: []capability.FocusMode{
			capability.FocusAuto,
			capability.FocusContinuous,
		},
		FocusPointOfInterest: true, // --autofocus-window
	}
	if torch != nil {
		caps.TorchModes = []capability.TorchMode{capability.TorchOff, capability.TorchOn}
	}
	return &RpicamDevice{
		desc: capability.Descriptor{
			ID:       "rpicam0",
			Position: capability.PositionRear,
			Caps:     caps,
		},
		torch: torch,
		cfg: Config{
			FlashMode:    capability.FlashOff,
			TorchMode:    capability.TorchOff,
			Zoom:         1.0,
			ExposureMode: capability.ExposureAuto,
			WhiteBalance: capability.WhiteBalanceAuto,
			FocusMode:    capability.FocusContinuous,
		},
	}
}

func (d *RpicamDevice) Descriptor() capability.Descriptor { return d.desc }

func (d *RpicamDevice) Configure(fn func(*Config) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.cfg
	if err := fn(&next); err != nil {
		return err
	}
	if next.TorchMode != d.cfg.TorchMode && d.torch != nil {
		if err := d.torch.Set(next.TorchMode == capability.TorchOn); err != nil {
			return fmt.Errorf("failed to switch torch: %w", err)
		}
	}
	d.cfg = next

	// A running preview only picks up new settings on restart.
	if d.cmd != nil {
		d.stopPreviewLocked()
		if err := d.startPreviewLocked(); err != nil {
			return fmt.Errorf("failed to restart preview: %w", err)
		}
	}
	return nil
}

func (d *RpicamDevice) ActiveConfig() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// vidCommand resolves the streaming binary name (rpicam-vid on newer OS,
// libcamera-vid on older).
func vidCommand() (string, error) {
	for _, name := range []string{"rpicam-vid", "libcamera-vid"} {
		if _, err := exec.LookPath(name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("neither rpicam-vid nor libcamera-vid found")
}

func stillCommand() (string, error) {
	for _, name := range []string{"rpicam-still", "libcamera-still"} {
		if _, err := exec.LookPath(name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("neither rpicam-still nor libcamera-still found")
}

// configFlags translates the active configuration into rpicam arguments.
func (d *RpicamDevice) configFlags() []string {
	var args []string
	if d.cfg.Zoom > 1.0 {
		side := 1.0 / d.cfg.Zoom
		off := (1.0 - side) / 2.0
		args = append(args, "--roi", fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", off, off, side, side))
	}
	if d.cfg.ExposureBias != 0 {
		args = append(args, "--ev", fmt.Sprintf("%.1f", d.cfg.ExposureBias))
	}
	args = append(args, "--awb", awbName(d.cfg.WhiteBalance))
	switch d.cfg.FocusMode {
	case capability.FocusContinuous:
		args = append(args, "--autofocus-mode", "continuous")
	case capability.FocusAuto:
		args = append(args, "--autofocus-mode", "auto")
	}
	if p := d.cfg.FocusPoint; p != nil {
		// Small window centered on the point of interest.
		const win = 0.1
		args = append(args, "--autofocus-window",
			fmt.Sprintf("%.3f,%.3f,%.3f,%.3f", clamp01(p.X-win/2), clamp01(p.Y-win/2), win, win))
	}
	if d.rotation == 180 {
		args = append(args, "--hflip", "--vflip")
	}
	return args
}

func awbName(m capability.WhiteBalanceMode) string {
	switch m {
	case capability.WhiteBalanceIncandescent:
		return "incandescent"
	case capability.WhiteBalanceFluorescent:
		return "fluorescent"
	case capability.WhiteBalanceDaylight:
		return "daylight"
	case capability.WhiteBalanceCloudy:
		return "cloudy"
	}
	return "auto"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (d *RpicamDevice) StartPreview(p PreviewParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return fmt.Errorf("preview already running")
	}
	d.preview = p
	return d.startPreviewLocked()
}

func (d *RpicamDevice) startPreviewLocked() error {
	name, err := vidCommand()
	if err != nil {
		return err
	}
	p := d.preview
	if p.Width == 0 {
		p.Width = 640
	}
	if p.Height == 0 {
		p.Height = 480
	}
	if p.FPS == 0 {
		p.FPS = 30
	}

	args := []string{
		"--width", fmt.Sprintf("%d", p.Width),
		"--height", fmt.Sprintf("%d", p.Height),
		"--timeout", "0",
		"--nopreview",
		"--codec", "mjpeg",
		"--output", "-",
		"--framerate", fmt.Sprintf("%d", p.FPS),
		"--metering", "average",
	}
	args = append(args, d.configFlags()...)

	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w, stderr: %s", name, err, stderr.String())
	}
	d.cmd = cmd
	slog.Info("started preview stream", "command", name, "width", p.Width, "height", p.Height, "fps", p.FPS)

	go pumpFrames(stdout, &d.slot)
	go func() {
		err := cmd.Wait()
		if err != nil {
			slog.Warn("preview stream exited", "error", err, "stderr", stderr.String())
		}
		d.mu.Lock()
		if d.cmd == cmd {
			d.cmd = nil
		}
		d.mu.Unlock()
	}()
	return nil
}

func (d *RpicamDevice) StopPreview() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopPreviewLocked()
	return nil
}

func (d *RpicamDevice) stopPreviewLocked() {
	if d.cmd == nil {
		return
	}
	if err := d.cmd.Process.Kill(); err != nil {
		slog.Warn("failed to kill preview stream", "error", err)
	}
	d.cmd = nil
	d.slot.Clear()
}

func (d *RpicamDevice) LatestFrame() ([]byte, error) {
	return d.slot.Latest(frameSlotMaxAge)
}

func (d *RpicamDevice) TriggerStill(p StillParams, done StillCallback) {
	d.mu.Lock()
	args := []string{
		"--encoding", "jpg",
		"--quality", fmt.Sprintf("%d", p.Quality),
		"--output", "-",
		"--nopreview",
		"--immediate",
	}
	if p.HighResolution {
		if best, ok := d.desc.Caps.LargestPictureSize(); ok {
			args = append(args,
				"--width", fmt.Sprintf("%d", best.Width),
				"--height", fmt.Sprintf("%d", best.Height))
		}
	}
	args = append(args, d.configFlags()...)
	d.mu.Unlock()

	go func() {
		name, err := stillCommand()
		if err != nil {
			done(nil, err)
			return
		}
		// The still process needs the camera to itself.
		_ = d.StopPreview()
		defer func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if err := d.startPreviewLocked(); err != nil {
				slog.Warn("failed to resume preview after still", "error", err)
			}
		}()

		var out, stderr bytes.Buffer
		cmd := exec.Command(name, args...)
		cmd.Stdout = &out
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			done(nil, fmt.Errorf("%s failed: %w, stderr: %s", name, err, stderr.String()))
			return
		}
		done(out.Bytes(), nil)
	}()
}

func (d *RpicamDevice) BeginVideo(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.videoCmd != nil {
		return fmt.Errorf("already recording")
	}
	name, err := vidCommand()
	if err != nil {
		return err
	}
	cmd := exec.Command(name,
		"--timeout", "0",
		"--nopreview",
		"--codec", "h264",
		"--output", path,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	d.videoCmd = cmd
	slog.Info("started recording", "path", path)
	return nil
}

func (d *RpicamDevice) EndVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.videoCmd == nil {
		return nil
	}
	if err := d.videoCmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop recording: %w", err)
	}
	_ = d.videoCmd.Wait()
	d.videoCmd = nil
	return nil
}

func (d *RpicamDevice) SetRotation(degrees int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rotation == degrees {
		return nil
	}
	d.rotation = degrees
	if d.cmd != nil {
		d.stopPreviewLocked()
		return d.startPreviewLocked()
	}
	return nil
}
