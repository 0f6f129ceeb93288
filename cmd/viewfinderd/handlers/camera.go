package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/viewfinderhq/viewfinder/pkg/capability"
	"github.com/viewfinderhq/viewfinder/pkg/gallery"
	"github.com/viewfinderhq/viewfinder/pkg/session"
	"github.com/viewfinderhq/viewfinder/pkg/uploader"
)

var (
	capturesCounter metric.Int64Counter
	switchesCounter metric.Int64Counter
)

func init() {
	var err error
	meter := otel.Meter("github.com/viewfinderhq/viewfinder/cmd/viewfinderd")
	capturesCounter, err = meter.Int64Counter("viewfinder.captures",
		metric.WithDescription("Total number of still captures served"),
		metric.WithUnit("{captures}"),
	)
	if err != nil {
		slog.Error("Failed to create capture metrics", "error", err)
	}
	switchesCounter, err = meter.Int64Counter("viewfinder.camera_switches",
		metric.WithDescription("Total number of camera flips"),
		metric.WithUnit("{switches}"),
	)
	if err != nil {
		slog.Error("Failed to create switch metrics", "error", err)
	}
}

// CameraHandler exposes the capture session over HTTP. It holds no
// session state of its own beyond the overlay opacity acknowledgment.
type CameraHandler struct {
	Ctrl      *session.Controller
	Gestures  *session.GestureBridge
	Store     *gallery.Store
	Uploads   *uploader.Client // nil disables uploading
	Retention time.Duration

	opacityMu sync.Mutex
	opacity   float64
}

// fail maps session errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNoCamerasAvailable):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrSessionMissing),
		errors.Is(err, session.ErrSessionAlreadyRunning):
		status = http.StatusConflict
	case errors.Is(err, session.ErrInvalidOperation):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parsePosition(s string) (capability.Position, error) {
	switch s {
	case "front":
		return capability.PositionFront, nil
	case "rear", "":
		return capability.PositionRear, nil
	case "unspecified":
		return capability.PositionUnspecified, nil
	}
	return "", fmt.Errorf("unknown position %q", s)
}

type startRequest struct {
	Position       string `json:"position"`
	HighResolution bool   `json:"highResolution"`
	ZoomEnabled    *bool  `json:"zoomEnabled"`
}

func (h *CameraHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	pos, err := parsePosition(req.Position)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Ctrl.Prepare(pos, req.HighResolution); err != nil {
		fail(c, err)
		return
	}
	h.Gestures.SetZoomEnabled(req.ZoomEnabled == nil || *req.ZoomEnabled)
	c.JSON(http.StatusOK, gin.H{
		"state":    h.Ctrl.State(),
		"position": h.Ctrl.Position(),
	})
}

func (h *CameraHandler) Stop(c *gin.Context) {
	if err := h.Ctrl.Stop(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.Ctrl.State()})
}

func (h *CameraHandler) Flip(c *gin.Context) {
	if err := h.Ctrl.SwitchCamera(); err != nil {
		fail(c, err)
		return
	}
	switchesCounter.Add(c.Request.Context(), 1)
	c.JSON(http.StatusOK, gin.H{"position": h.Ctrl.Position()})
}

type captureRequest struct {
	Quality int `json:"quality"`
}

func (h *CameraHandler) Capture(c *gin.Context) {
	var req captureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}
	}

	data, err := h.Ctrl.CaptureStill(c.Request.Context(), req.Quality)
	if err != nil {
		fail(c, err)
		return
	}
	capturesCounter.Add(c.Request.Context(), 1)

	name := fmt.Sprintf("still-%s.jpg", time.Now().Format("20060102-150405.000"))
	if err := h.Store.Add(name, gallery.KindStill, data, h.Retention); err != nil {
		slog.Error("failed to store capture", "name", name, "error", err)
	} else if h.Uploads != nil {
		// Detached from the request context: the upload outlives the
		// HTTP response.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := h.Uploads.Upload(ctx, name, data); err != nil {
				slog.Warn("capture upload failed", "name", name, "error", err)
			}
		}()
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *CameraHandler) Sample(c *gin.Context) {
	var req captureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
			return
		}
	}
	data, err := h.Ctrl.CaptureSample(c.Request.Context(), req.Quality)
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *CameraHandler) RecordStart(c *gin.Context) {
	if err := h.Ctrl.StartRecording(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": true})
}

func (h *CameraHandler) RecordStop(c *gin.Context) {
	if err := h.Ctrl.StopRecording(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": false})
}

func (h *CameraHandler) PictureSizes(c *gin.Context) {
	sizes, err := h.Ctrl.SupportedPictureSizes()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pictureSizes": sizes})
}

func (h *CameraHandler) FlashModes(c *gin.Context) {
	modes, err := h.Ctrl.SupportedFlashModes()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flashModes": modes})
}

func (h *CameraHandler) GetFlashMode(c *gin.Context) {
	mode, err := h.Ctrl.FlashMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flashMode": mode})
}

func (h *CameraHandler) SetFlashMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode required"})
		return
	}
	if err := h.Ctrl.SetFlashMode(capability.FlashMode(req.Mode)); err != nil {
		fail(c, err)
		return
	}
	mode, err := h.Ctrl.FlashMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flashMode": mode})
}

func (h *CameraHandler) ExposureModes(c *gin.Context) {
	modes, err := h.Ctrl.ExposureModes()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exposureModes": modes})
}

func (h *CameraHandler) GetExposureMode(c *gin.Context) {
	mode, err := h.Ctrl.ExposureMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exposureMode": mode})
}

func (h *CameraHandler) SetExposureMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode required"})
		return
	}
	if err := h.Ctrl.SetExposureMode(capability.ExposureMode(req.Mode)); err != nil {
		fail(c, err)
		return
	}
	mode, err := h.Ctrl.ExposureMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exposureMode": mode})
}

func (h *CameraHandler) GetExposureCompensation(c *gin.Context) {
	v, err := h.Ctrl.ExposureCompensation()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exposureCompensation": v})
}

func (h *CameraHandler) ExposureCompensationRange(c *gin.Context) {
	min, max, err := h.Ctrl.ExposureCompensationRange()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"min": min, "max": max})
}

func (h *CameraHandler) SetExposureCompensation(c *gin.Context) {
	var req struct {
		Value float64 `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value required"})
		return
	}
	if err := h.Ctrl.SetExposureCompensation(req.Value); err != nil {
		fail(c, err)
		return
	}
	v, err := h.Ctrl.ExposureCompensation()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exposureCompensation": v})
}

func (h *CameraHandler) WhiteBalanceModes(c *gin.Context) {
	modes, err := h.Ctrl.WhiteBalanceModes()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whiteBalanceModes": modes})
}

func (h *CameraHandler) GetWhiteBalanceMode(c *gin.Context) {
	mode, err := h.Ctrl.WhiteBalanceMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whiteBalanceMode": mode})
}

func (h *CameraHandler) SetWhiteBalanceMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode required"})
		return
	}
	if err := h.Ctrl.SetWhiteBalanceMode(capability.WhiteBalanceMode(req.Mode)); err != nil {
		fail(c, err)
		return
	}
	mode, err := h.Ctrl.WhiteBalanceMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"whiteBalanceMode": mode})
}

func (h *CameraHandler) SetZoom(c *gin.Context) {
	var req struct {
		Factor float64 `json:"factor"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "factor required"})
		return
	}
	if err := h.Ctrl.SetZoom(req.Factor); err != nil {
		fail(c, err)
		return
	}
	z, err := h.Ctrl.Zoom()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zoom": z})
}

// Opacity acknowledges a preview overlay opacity. The value only
// matters to the rendering layer; the session core never reads it.
func (h *CameraHandler) Opacity(c *gin.Context) {
	var req struct {
		Opacity float64 `json:"opacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Opacity < 0 || req.Opacity > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "opacity must be between 0 and 1"})
		return
	}
	h.opacityMu.Lock()
	h.opacity = req.Opacity
	h.opacityMu.Unlock()
	c.JSON(http.StatusOK, gin.H{"opacity": req.Opacity})
}

func (h *CameraHandler) GestureTap(c *gin.Context) {
	var req struct {
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		ViewWidth  float64 `json:"viewWidth"`
		ViewHeight float64 `json:"viewHeight"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	// Gestures are best-effort: failures are logged inside the bridge.
	h.Gestures.Tap(req.X, req.Y, req.ViewWidth, req.ViewHeight)
	c.Status(http.StatusAccepted)
}

func (h *CameraHandler) GesturePinch(c *gin.Context) {
	var req struct {
		Phase string  `json:"phase"`
		Scale float64 `json:"scale"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}
	switch session.PinchPhase(req.Phase) {
	case session.PinchBegan, session.PinchChanged, session.PinchEnded:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown pinch phase %q", req.Phase)})
		return
	}
	h.Gestures.Pinch(session.PinchPhase(req.Phase), req.Scale)
	c.Status(http.StatusAccepted)
}

func (h *CameraHandler) Orientation(c *gin.Context) {
	var req struct {
		Orientation string `json:"orientation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "orientation required"})
		return
	}
	if err := h.Ctrl.ApplyOrientation(session.Orientation(req.Orientation)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orientation": h.Ctrl.Orientation()})
}

func (h *CameraHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":       h.Ctrl.State(),
		"position":    h.Ctrl.Position(),
		"orientation": h.Ctrl.Orientation(),
	})
}

func (h *CameraHandler) Stream(c *gin.Context) {
	if _, err := h.Ctrl.PreviewFrame(); err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Stream frames continuously
	ticker := time.NewTicker(16 * time.Millisecond) // ~60 fps
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			frame, err := h.Ctrl.PreviewFrame()
			if err != nil {
				// Session stopped mid-stream; end the response.
				return
			}

			// Write MJPEG frame
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			w.Write(frame)
			fmt.Fprintf(w, "\r\n")
			flusher.Flush()
		}
	}
}
