// Package timelapse captures stills on a cron schedule into the
// capture gallery, optionally shipping each shot to an uploader.
package timelapse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/viewfinderhq/viewfinder/pkg/gallery"
	"github.com/viewfinderhq/viewfinder/pkg/logger"
	"github.com/viewfinderhq/viewfinder/pkg/uploader"
)

// CaptureFunc produces one JPEG still. It matches the capture
// coordinator's CaptureStill signature.
type CaptureFunc func(ctx context.Context, quality int) ([]byte, error)

const shotTimeout = 30 * time.Second

// Scheduler runs periodic captures. Runs that overlap a slow capture
// are skipped rather than queued.
type Scheduler struct {
	cron      *cron.Cron
	capture   CaptureFunc
	store     *gallery.Store
	uploads   *uploader.Client // nil disables uploading
	quality   int
	retention time.Duration
}

// New builds a scheduler for the given cron expression. Start must be
// called for shots to begin.
func New(schedule string, quality int, retention time.Duration, capture CaptureFunc, store *gallery.Store, uploads *uploader.Client) (*Scheduler, error) {
	cronLog := &logger.CronLogger{Logger: slog.Default()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
		),
		capture:   capture,
		store:     store,
		uploads:   uploads,
		quality:   quality,
		retention: retention,
	}
	if _, err := s.cron.AddFunc(schedule, s.shoot); err != nil {
		return nil, fmt.Errorf("invalid timelapse schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop ends scheduling and waits for a running shot to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) shoot() {
	ctx, cancel := context.WithTimeout(context.Background(), shotTimeout)
	defer cancel()

	data, err := s.capture(ctx, s.quality)
	if err != nil {
		slog.Warn("timelapse capture failed", "error", err)
		return
	}

	name := fmt.Sprintf("timelapse-%s.jpg", time.Now().Format("20060102-150405"))
	if err := s.store.Add(name, gallery.KindTimelapse, data, s.retention); err != nil {
		slog.Error("failed to store timelapse capture", "name", name, "error", err)
		return
	}
	slog.Info("timelapse capture stored", "name", name, "bytes", len(data))

	if s.uploads == nil {
		return
	}
	if err := s.uploads.Upload(ctx, name, data); err != nil {
		slog.Warn("timelapse upload failed", "name", name, "error", err)
	}
}
