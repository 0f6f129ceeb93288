//go:build darwin

package hw

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
)

// FFmpegDevice captures the default macOS webcam through ffmpeg's
// avfoundation input. It exists for development rigs: the webcam exposes
// no flash, torch or optical zoom, and its capability snapshot says so.
// Stills are sourced from the MJPEG stream rather than a dedicated
// hardware capture.
type FFmpegDevice struct {
	desc capability.Descriptor

	mu       sync.Mutex
	cfg      Config
	rotation int
	cmd      *exec.Cmd
	slot     FrameSlot
}

func NewFFmpegDevice(position capability.Position, input string) *FFmpegDevice {
	return &FFmpegDevice{
		desc: capability.Descriptor{
			ID:       "avfoundation:" + input,
			Position: position,
			Caps: capability.Caps{
				MaxZoom: 1.0,
				ExposureModes: []capability.ExposureMode{
					capability.ExposureAuto,
				},
				WhiteBalanceModes: []capability.WhiteBalanceMode{
					capability.WhiteBalanceAuto,
				},
				PictureSizes: []capability.PictureSize{
					{Width: 1280, Height: 720},
					{Width: 640, Height: 480},
				},
				FocusModes: []capability.FocusMode{
					capability.FocusContinuous,
				},
			},
		},
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

func (d *FFmpegDevice) Descriptor() capability.Descriptor { return d.desc }

func (d *FFmpegDevice) Configure(fn func(*Config) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	next := d.cfg
	if err := fn(&next); err != nil {
		return err
	}
	d.cfg = next
	return nil
}

func (d *FFmpegDevice) ActiveConfig() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

func (d *FFmpegDevice) StartPreview(p PreviewParams) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return fmt.Errorf("preview already running")
	}
	if p.Width == 0 {
		p.Width = 1280
	}
	if p.Height == 0 {
		p.Height = 720
	}
	// Most Mac cameras only accept 30 fps.
	input := d.desc.ID[len("avfoundation:"):]
	cmd := exec.Command(
		"ffmpeg",
		"-f", "avfoundation",
		"-framerate", "30",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-i", input,
		"-f", "mjpeg",
		"-q:v", "5",
		"-hide_banner",
		"-loglevel", "error",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	d.cmd = cmd
	slog.Info("started preview stream (ffmpeg)", "width", p.Width, "height", p.Height)

	go pumpFrames(stdout, &d.slot)
	go func() {
		err := cmd.Wait()
		if err != nil {
			slog.Warn("preview stream exited", "error", err)
		}
		d.mu.Lock()
		if d.cmd == cmd {
			d.cmd = nil
		}
		d.mu.Unlock()
	}()
	return nil
}

func (d *FFmpegDevice) StopPreview() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil {
		return nil
	}
	if err := d.cmd.Process.Kill(); err != nil {
		slog.Warn("failed to kill preview stream", "error", err)
	}
	d.cmd = nil
	d.slot.Clear()
	return nil
}

func (d *FFmpegDevice) LatestFrame() ([]byte, error) {
	return d.slot.Latest(frameSlotMaxAge)
}

func (d *FFmpegDevice) TriggerStill(p StillParams, done StillCallback) {
	go func() {
		// Give the stream a moment to deliver a frame if it just started.
		var data []byte
		var err error
		for i := 0; i < 10; i++ {
			data, err = d.LatestFrame()
			if err == nil {
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
		done(data, err)
	}()
}

func (d *FFmpegDevice) BeginVideo(path string) error {
	return fmt.Errorf("recording not supported on the ffmpeg backend")
}

func (d *FFmpegDevice) EndVideo() error { return nil }

func (d *FFmpegDevice) SetRotation(degrees int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rotation = degrees
	return nil
}
