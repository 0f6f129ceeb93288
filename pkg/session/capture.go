package session

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/google/uuid"

	"github.com/viewfinderhq/viewfinder/pkg/hw"
)

// DefaultQuality is the JPEG quality used when a capture request does
// not specify one.
const DefaultQuality = 85

type stillResult struct {
	data []byte
	err  error
}

// CaptureStill issues a single hardware capture and blocks until its
// one completion arrives. It requires a running session and fails
// immediately with ErrSessionMissing otherwise, without touching the
// hardware. Concurrent calls each get an independent completion slot.
//
// There is no timeout at this layer; pass a ctx with a deadline to
// bound a capture the hardware never completes.
func (c *Controller) CaptureStill(ctx context.Context, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	dev, err := c.runningDevice()
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	ch := make(chan stillResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	flash := dev.ActiveConfig().FlashMode
	dev.TriggerStill(hw.StillParams{
		Quality:        quality,
		FlashMode:      flash,
		HighResolution: c.highResolution(),
	}, func(data []byte, err error) {
		c.fulfill(id, stillResult{data: data, err: err})
	})

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return c.normalizeUpright(res.data, quality)
	case <-ctx.Done():
		c.abandon(id)
		return nil, ctx.Err()
	}
}

// CaptureSample returns one frame from the continuously delivered
// preview stream instead of triggering a dedicated hardware capture.
// The frame passes through at the stream's source encoding; quality
// only takes effect when a non-upright orientation forces a re-encode.
// It fails the same way as CaptureStill when the session is not running.
func (c *Controller) CaptureSample(ctx context.Context, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	dev, err := c.runningDevice()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := dev.LatestFrame()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	return c.normalizeUpright(frame, quality)
}

// fulfill delivers a capture completion to its slot exactly once; a
// slot already fulfilled (or failed by Stop) swallows the late arrival.
func (c *Controller) fulfill(id uuid.UUID, res stillResult) {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()
	if !ok {
		return
	}
	if res.err == nil && len(res.data) == 0 {
		res = stillResult{err: ErrUnknown}
	}
	ch <- res
}

// abandon drops a slot whose caller gave up (context cancellation).
func (c *Controller) abandon(id uuid.UUID) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// failPending fulfills every outstanding capture with err.
func (c *Controller) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[uuid.UUID]chan stillResult)
	c.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- stillResult{err: err}
	}
}

func (c *Controller) highResolution() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highRes
}

// StartRecording begins a video segment. Starting while already
// recording is rejected.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return ErrSessionMissing
	}
	if c.recording {
		return fmt.Errorf("%w: already recording", ErrInvalidOperation)
	}
	if err := c.active.BeginVideo(c.opts.VideoPath); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	c.recording = true
	slog.Info("recording started", "path", c.opts.VideoPath)
	return nil
}

// StopRecording ends the video segment. Stopping while not recording is
// a successful no-op.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.recording {
		return nil
	}
	c.recording = false
	if err := c.active.EndVideo(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	slog.Info("recording stopped")
	return nil
}

// Recording reports whether a video segment is in progress.
func (c *Controller) Recording() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recording
}

// normalizeUpright rotates capture output so callers never see a
// rotated image, re-encoding at the requested quality. Bytes that do
// not decode as JPEG map to ErrUnknown.
func (c *Controller) normalizeUpright(data []byte, quality int) ([]byte, error) {
	c.mu.RLock()
	degrees := c.orientation.rotation()
	c.mu.RUnlock()
	if degrees == 0 {
		// Already upright; keep the hardware encoding untouched.
		if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
		}
		return data, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	rotated := rotateImage(img, degrees)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rotated, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode rotated image: %w", err)
	}
	return buf.Bytes(), nil
}

// rotateImage rotates img counter-clockwise by the connection rotation
// so the result reads upright. degrees is 0, 90, 180 or 270.
func rotateImage(img image.Image, degrees int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	switch degrees {
	case 90, 270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
		return dst
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.At(b.Min.X+x, b.Min.Y+y)
			switch degrees {
			case 90:
				dst.Set(y, w-1-x, px)
			case 180:
				dst.Set(w-1-x, h-1-y, px)
			case 270:
				dst.Set(h-1-y, x, px)
			}
		}
	}
	return dst
}
