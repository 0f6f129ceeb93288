package handlers

import (
	"bytes"
	"encoding/json"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/viewfinderhq/viewfinder/pkg/gallery"
	"github.com/viewfinderhq/viewfinder/pkg/hw"
	"github.com/viewfinderhq/viewfinder/pkg/session"
)

type testRig struct {
	router *gin.Engine
	ctrl   *session.Controller
	store  *gallery.Store
}

func newTestRig(t *testing.T, devices ...hw.Device) *testRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := session.New(hw.NewStaticProvider(devices...), session.Options{})
	store := gallery.New(t.TempDir())
	h := &CameraHandler{
		Ctrl:      ctrl,
		Gestures:  session.NewGestureBridge(ctrl),
		Store:     store,
		Retention: time.Hour,
	}

	router := gin.New()
	camera := router.Group("/api/camera")
	camera.POST("/start", h.Start)
	camera.POST("/stop", h.Stop)
	camera.POST("/flip", h.Flip)
	camera.GET("/status", h.Status)
	camera.POST("/capture", h.Capture)
	camera.POST("/sample", h.Sample)
	camera.GET("/flash-modes", h.FlashModes)
	camera.POST("/flash-mode", h.SetFlashMode)
	camera.POST("/zoom", h.SetZoom)
	camera.POST("/opacity", h.Opacity)
	camera.POST("/gesture/pinch", h.GesturePinch)
	camera.POST("/orientation", h.Orientation)

	return &testRig{router: router, ctrl: ctrl, store: store}
}

func (r *testRig) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

func TestStartStopFlow(t *testing.T) {
	rig := newTestRig(t, hw.SimFrontWide(), hw.SimRearWide())

	w := rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", w.Code, w.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["state"] != "running" || resp["position"] != "rear" {
		t.Errorf("start response = %v", resp)
	}

	// Second start without stop conflicts.
	w = rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("double start = %d, want 409", w.Code)
	}

	w = rig.do(t, "POST", "/api/camera/stop", "")
	if w.Code != http.StatusOK {
		t.Errorf("stop = %d", w.Code)
	}
	// Stop is idempotent.
	w = rig.do(t, "POST", "/api/camera/stop", "")
	if w.Code != http.StatusOK {
		t.Errorf("second stop = %d", w.Code)
	}
}

func TestStartRejectsUnknownPosition(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	w := rig.do(t, "POST", "/api/camera/start", `{"position":"sideways"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("start = %d, want 400", w.Code)
	}
}

func TestStartNoCameras(t *testing.T) {
	rig := newTestRig(t)
	w := rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("start with no devices = %d, want 404", w.Code)
	}
}

func TestFlip(t *testing.T) {
	rig := newTestRig(t, hw.SimFrontWide(), hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "POST", "/api/camera/flip", "")
	if w.Code != http.StatusOK {
		t.Fatalf("flip = %d: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"front"`) {
		t.Errorf("flip response = %s, want front position", w.Body)
	}
}

func TestFlipWithoutSession(t *testing.T) {
	rig := newTestRig(t, hw.SimFrontWide(), hw.SimRearWide())
	w := rig.do(t, "POST", "/api/camera/flip", "")
	if w.Code != http.StatusConflict {
		t.Errorf("flip without session = %d, want 409", w.Code)
	}
}

func TestCaptureReturnsJPEGAndStores(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "POST", "/api/camera/capture", "")
	if w.Code != http.StatusOK {
		t.Fatalf("capture = %d: %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %q", ct)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("response is not a decodable JPEG: %v", err)
	}

	items, err := rig.store.Captures()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Kind != gallery.KindStill {
		t.Errorf("gallery = %+v, want one still", items)
	}
}

func TestCaptureWithoutSession(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	w := rig.do(t, "POST", "/api/camera/capture", "")
	if w.Code != http.StatusConflict {
		t.Errorf("capture without session = %d, want 409", w.Code)
	}
}

func TestSampleReturnsJPEG(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "POST", "/api/camera/sample", `{"quality":60}`)
	if w.Code != http.StatusOK {
		t.Fatalf("sample = %d: %s", w.Code, w.Body)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("sample is not a decodable JPEG: %v", err)
	}
}

func TestZoomSetReturnsClampedValue(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide()) // maxZoom 8.0
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "POST", "/api/camera/zoom", `{"factor":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("zoom = %d: %s", w.Code, w.Body)
	}
	var resp map[string]float64
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["zoom"] != 8.0 {
		t.Errorf("zoom = %v, want clamped 8.0", resp["zoom"])
	}
}

func TestFlashModesListsTorch(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "GET", "/api/camera/flash-modes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("flash-modes = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"torch"`) {
		t.Errorf("flash modes = %s, want torch listed", w.Body)
	}
}

func TestSetFlashModeRoundTripsThroughAPI(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "POST", "/api/camera/flash-mode", `{"mode":"on"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("flash-mode = %d: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"on"`) {
		t.Errorf("flash-mode response = %s", w.Body)
	}
}

func TestOpacityValidation(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())

	w := rig.do(t, "POST", "/api/camera/opacity", `{"opacity":0.4}`)
	if w.Code != http.StatusOK {
		t.Errorf("opacity = %d: %s", w.Code, w.Body)
	}
	w = rig.do(t, "POST", "/api/camera/opacity", `{"opacity":1.5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-range opacity = %d, want 400", w.Code)
	}
}

func TestPinchRejectsUnknownPhase(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "POST", "/api/camera/gesture/pinch", `{"phase":"hovered","scale":1.5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown phase = %d, want 400", w.Code)
	}
	w = rig.do(t, "POST", "/api/camera/gesture/pinch", `{"phase":"began","scale":1.0}`)
	if w.Code != http.StatusAccepted {
		t.Errorf("pinch began = %d, want 202", w.Code)
	}
}

func TestStartWithZoomDisabled(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear","zoomEnabled":false}`)

	w := rig.do(t, "POST", "/api/camera/gesture/pinch", `{"phase":"began","scale":2.0}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("pinch = %d, want 202", w.Code)
	}
	rig.do(t, "POST", "/api/camera/gesture/pinch", `{"phase":"ended","scale":2.0}`)
	if z, _ := rig.ctrl.Zoom(); z != 1.0 {
		t.Errorf("zoom with zoomEnabled=false = %v, want the untouched 1.0", z)
	}

	// Restarting without the flag restores the default-enabled pinch.
	rig.do(t, "POST", "/api/camera/stop", "")
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)
	rig.do(t, "POST", "/api/camera/gesture/pinch", `{"phase":"began","scale":2.0}`)
	rig.do(t, "POST", "/api/camera/gesture/pinch", `{"phase":"ended","scale":2.0}`)
	if z, _ := rig.ctrl.Zoom(); z != 2.0 {
		t.Errorf("zoom after re-enabled pinch = %v, want 2.0", z)
	}
}

func TestOrientationEndpoint(t *testing.T) {
	rig := newTestRig(t, hw.SimRearWide())
	rig.do(t, "POST", "/api/camera/start", `{"position":"rear"}`)

	w := rig.do(t, "POST", "/api/camera/orientation", `{"orientation":"landscapeLeft"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("orientation = %d: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), "landscapeLeft") {
		t.Errorf("orientation response = %s", w.Body)
	}
}
