package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
	"github.com/viewfinderhq/viewfinder/pkg/hw"
)

func TestCaptureStill(t *testing.T) {
	rear := hw.SimRearWide()
	c := newTestController(rear)
	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	data, err := c.CaptureStill(context.Background(), 0)
	if err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		t.Errorf("capture is not a decodable JPEG: %v", err)
	}
	if rear.StillTriggers() != 1 {
		t.Errorf("hardware triggers = %d, want 1", rear.StillTriggers())
	}
}

func TestCaptureRequiresRunningSession(t *testing.T) {
	rear := hw.SimRearWide()
	c := newTestController(rear)

	if _, err := c.CaptureStill(context.Background(), 85); !errors.Is(err, ErrSessionMissing) {
		t.Errorf("CaptureStill before Prepare = %v, want ErrSessionMissing", err)
	}
	if _, err := c.CaptureSample(context.Background(), 85); !errors.Is(err, ErrSessionMissing) {
		t.Errorf("CaptureSample before Prepare = %v, want ErrSessionMissing", err)
	}
	// No hardware side effect.
	if rear.StillTriggers() != 0 {
		t.Errorf("hardware triggers = %d, want 0", rear.StillTriggers())
	}

	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := c.CaptureStill(context.Background(), 85); !errors.Is(err, ErrSessionMissing) {
		t.Errorf("CaptureStill after Stop = %v, want ErrSessionMissing", err)
	}
	if rear.StillTriggers() != 0 {
		t.Errorf("hardware triggers after stopped capture = %d, want 0", rear.StillTriggers())
	}
}

func TestCaptureHardwareFailureForwarded(t *testing.T) {
	rear := hw.SimRearWide()
	rear.FailStill = fmt.Errorf("sensor timed out")
	c := newTestController(rear)
	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	_, err := c.CaptureStill(context.Background(), 85)
	if err == nil || err.Error() != "sensor timed out" {
		t.Errorf("CaptureStill = %v, want the forwarded hardware error", err)
	}
}

func TestStopFulfillsPendingCaptures(t *testing.T) {
	rear := hw.SimRearWide()
	rear.StillDelay = 300 * time.Millisecond
	c := newTestController(rear)
	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := c.CaptureStill(context.Background(), 85)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond) // let the capture register its slot
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSessionMissing) {
			t.Errorf("pending capture fulfilled with %v, want ErrSessionMissing", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending capture was left dangling after Stop")
	}
}

func TestConcurrentCapturesGetIndependentSlots(t *testing.T) {
	rear := hw.SimRearWide()
	rear.StillDelay = 20 * time.Millisecond
	c := newTestController(rear)
	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	const n = 4
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = c.CaptureStill(context.Background(), 85)
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Errorf("capture %d: %v", i, err)
		}
	}
	if rear.StillTriggers() != n {
		t.Errorf("hardware triggers = %d, want %d", rear.StillTriggers(), n)
	}
}

func TestCaptureContextCancellation(t *testing.T) {
	rear := hw.SimRearWide()
	rear.StillDelay = time.Second
	c := newTestController(rear)
	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := c.CaptureStill(ctx, 85); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CaptureStill with expired ctx = %v, want DeadlineExceeded", err)
	}
}

func TestCaptureSample(t *testing.T) {
	c := newTestController(hw.SimRearWide())
	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	data, err := c.CaptureSample(context.Background(), 70)
	if err != nil {
		t.Fatalf("CaptureSample: %v", err)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		t.Errorf("sample is not a decodable JPEG: %v", err)
	}
}

func TestCaptureNormalizedUpright(t *testing.T) {
	c := newTestController(hw.SimRearWide())
	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := c.ApplyOrientation(OrientationLandscapeLeft); err != nil {
		t.Fatalf("ApplyOrientation: %v", err)
	}

	data, err := c.CaptureStill(context.Background(), 85)
	if err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// The sim renders 640x480; a 90-degree connection rotation must be
	// baked out so the caller sees the swapped, upright geometry.
	if cfg.Width != 480 || cfg.Height != 640 {
		t.Errorf("normalized capture is %dx%d, want 480x640", cfg.Width, cfg.Height)
	}
}

func TestRecordingToggles(t *testing.T) {
	c := newTestController(hw.SimRearWide())

	if err := c.StartRecording(); !errors.Is(err, ErrSessionMissing) {
		t.Errorf("StartRecording before Prepare = %v, want ErrSessionMissing", err)
	}
	// Stopping while not recording is a successful no-op.
	if err := c.StopRecording(); err != nil {
		t.Errorf("StopRecording while idle = %v, want nil", err)
	}

	if err := c.Prepare(capability.PositionRear, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := c.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !c.Recording() {
		t.Error("Recording() = false while recording")
	}
	if err := c.StartRecording(); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("second StartRecording = %v, want ErrInvalidOperation", err)
	}
	if err := c.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if c.Recording() {
		t.Error("Recording() = true after stop")
	}
}
