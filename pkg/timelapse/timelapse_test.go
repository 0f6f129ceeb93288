package timelapse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/viewfinderhq/viewfinder/pkg/gallery"
	"github.com/viewfinderhq/viewfinder/pkg/uploader"
)

func TestNewRejectsBadSchedule(t *testing.T) {
	capture := func(ctx context.Context, quality int) ([]byte, error) { return nil, nil }
	if _, err := New("not a schedule", 85, time.Hour, capture, gallery.New(t.TempDir()), nil); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestShootStoresCapture(t *testing.T) {
	store := gallery.New(t.TempDir())
	var quality atomic.Int64
	capture := func(ctx context.Context, q int) ([]byte, error) {
		quality.Store(int64(q))
		return []byte("fake-jpeg"), nil
	}

	s, err := New("* * * * *", 70, time.Hour, capture, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.shoot()

	if quality.Load() != 70 {
		t.Errorf("capture quality = %d, want 70", quality.Load())
	}
	items, err := store.Captures()
	if err != nil {
		t.Fatalf("Captures: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d captures, want 1", len(items))
	}
	if items[0].Kind != gallery.KindTimelapse {
		t.Errorf("kind = %s, want timelapse", items[0].Kind)
	}
	if !strings.HasPrefix(items[0].Name, "timelapse-") || !strings.HasSuffix(items[0].Name, ".jpg") {
		t.Errorf("name = %q, want timelapse-*.jpg", items[0].Name)
	}
}

func TestShootUploads(t *testing.T) {
	var uploaded atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploaded.Add(1)
	}))
	defer server.Close()

	capture := func(ctx context.Context, q int) ([]byte, error) { return []byte("fake-jpeg"), nil }
	s, err := New("* * * * *", 85, time.Hour, capture, gallery.New(t.TempDir()),
		uploader.NewClient(server.URL, 5*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.shoot()

	if uploaded.Load() != 1 {
		t.Errorf("uploads = %d, want 1", uploaded.Load())
	}
}

func TestShootSwallowsCaptureFailure(t *testing.T) {
	store := gallery.New(t.TempDir())
	capture := func(ctx context.Context, q int) ([]byte, error) {
		return nil, fmt.Errorf("no running session")
	}
	s, err := New("* * * * *", 85, time.Hour, capture, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.shoot() // must not panic

	items, _ := store.Captures()
	if len(items) != 0 {
		t.Errorf("got %d captures from a failed shot", len(items))
	}
}
