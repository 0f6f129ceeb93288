package hw

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// FrameSlot holds the most recent JPEG frame of a preview stream.
// It is safe for concurrent use.
type FrameSlot struct {
	mu   sync.RWMutex
	data []byte
	at   time.Time
}

// Set stores a new frame, replacing the previous one.
func (s *FrameSlot) Set(frame []byte) {
	dst := make([]byte, len(frame))
	copy(dst, frame)
	s.mu.Lock()
	s.data = dst
	s.at = time.Now()
	s.mu.Unlock()
}

// Latest returns a copy of the current frame. It fails when no frame has
// arrived yet or the newest frame is older than maxAge (e.g. the
// streaming process died without clearing the slot).
func (s *FrameSlot) Latest(maxAge time.Duration) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) == 0 {
		return nil, fmt.Errorf("no frame available yet")
	}
	if time.Since(s.at) > maxAge {
		return nil, fmt.Errorf("frame is stale (>%s old)", maxAge)
	}
	dst := make([]byte, len(s.data))
	copy(dst, s.data)
	return dst, nil
}

// Clear drops the stored frame, e.g. when the preview stops.
func (s *FrameSlot) Clear() {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
}

const (
	pumpChunkSize   = 4096
	pumpBufferCeil  = 10 * 1024 * 1024
	frameSlotMaxAge = 5 * time.Second
)

// jpeg stream markers
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// pumpFrames reads a raw MJPEG byte stream, splits it into individual
// JPEG images on the SOI/EOI markers and publishes each complete frame
// into slot. It returns when the reader fails, which is how a dying
// streaming process shows up.
func pumpFrames(r io.Reader, slot *FrameSlot) {
	buf := make([]byte, pumpChunkSize)
	var frame []byte

	for {
		n, err := r.Read(buf)
		if err != nil {
			slog.Error("preview stream read error", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		chunk := buf[:n]

		if len(frame) == 0 {
			// Between frames: discard everything before the next SOI.
			start := bytes.Index(chunk, jpegSOI)
			if start == -1 {
				continue
			}
			chunk = chunk[start:]
		}
		frame = append(frame, chunk...)

		if end := bytes.LastIndex(frame, jpegEOI); end != -1 {
			slot.Set(frame[:end+2])

			// Bytes after EOI belong to the next frame.
			rest := frame[end+2:]
			if len(rest) > 0 {
				frame = append(frame[:0:0], rest...)
			} else {
				frame = nil
			}
		}

		if len(frame) > pumpBufferCeil {
			slog.Warn("preview frame buffer overflow, resetting")
			frame = nil
		}
	}
}
