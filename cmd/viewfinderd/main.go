package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/viewfinderhq/viewfinder/cmd/viewfinderd/handlers"
	"github.com/viewfinderhq/viewfinder/cmd/viewfinderd/middleware"
	"github.com/viewfinderhq/viewfinder/pkg/capability"
	"github.com/viewfinderhq/viewfinder/pkg/config"
	"github.com/viewfinderhq/viewfinder/pkg/gallery"
	"github.com/viewfinderhq/viewfinder/pkg/hw"
	"github.com/viewfinderhq/viewfinder/pkg/logger"
	"github.com/viewfinderhq/viewfinder/pkg/session"
	"github.com/viewfinderhq/viewfinder/pkg/telemetry"
	"github.com/viewfinderhq/viewfinder/pkg/timelapse"
	"github.com/viewfinderhq/viewfinder/pkg/uploader"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			// Logger is not set up yet.
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	logger.Setup(cfg.LogLevel)

	if cfg.Server.User == "" || cfg.Server.Password == "" {
		logger.Fatal("VIEWFINDER_USER and VIEWFINDER_PASSWORD environment variables must be set")
	}
	if cfg.Server.SessionSecret == "" {
		logger.Fatal("VIEWFINDER_SESSION_SECRET environment variable must be set")
	}

	ctx := context.Background()

	var telemetryShutdown func(context.Context) error
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(ctx, "viewfinderd", cfg.Telemetry.Endpoint)
		if err != nil {
			logger.Fatal("failed to initialize telemetry", "error", err)
		}
		telemetryShutdown = shutdown
	}

	provider := hw.NewPlatformProvider(hw.ProviderOptions{
		TorchChip:    cfg.Torch.Chip,
		TorchLineNum: cfg.Torch.Line,
	})
	ctrl := session.New(provider, session.Options{
		PreviewWidth:  cfg.Camera.PreviewWidth,
		PreviewHeight: cfg.Camera.PreviewHeight,
		PreviewFPS:    cfg.Camera.PreviewFPS,
		VideoPath:     cfg.Storage.VideoPath,
	})
	gestures := session.NewGestureBridge(ctrl)
	store := gallery.New(cfg.Storage.CaptureDir)

	var uploads *uploader.Client
	if cfg.Upload.URL != "" {
		uploads = uploader.NewClient(cfg.Upload.URL, cfg.UploadTimeout())
	}

	var tl *timelapse.Scheduler
	if cfg.Timelapse.Enabled {
		// Timelapse rigs want the session up before the first tick.
		pos := capability.Position(cfg.Camera.Position)
		if err := ctrl.Prepare(pos, cfg.Camera.HighResolution); err != nil {
			slog.Warn("could not start capture session at boot", "error", err)
		}
		var err error
		tl, err = timelapse.New(cfg.Timelapse.Schedule, cfg.Timelapse.Quality, cfg.Retention(),
			ctrl.CaptureStill, store, uploads)
		if err != nil {
			logger.Fatal("failed to build timelapse scheduler", "error", err)
		}
		tl.Start()
		slog.Info("timelapse scheduler running", "schedule", cfg.Timelapse.Schedule)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	router.SetTrustedProxies(cfg.Server.TrustedProxies)
	router.Use(sessions.Sessions("viewfinder", cookie.NewStore([]byte(cfg.Server.SessionSecret))))

	authHandler := &handlers.AuthHandler{
		User:     cfg.Server.User,
		Password: cfg.Server.Password,
	}
	cameraHandler := &handlers.CameraHandler{
		Ctrl:      ctrl,
		Gestures:  gestures,
		Store:     store,
		Uploads:   uploads,
		Retention: cfg.Retention(),
	}
	galleryHandler := &handlers.GalleryHandler{Store: store}

	// --- Public Routes ---
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"state": ctrl.State()})
	})
	router.POST("/login", authHandler.Login)
	router.POST("/logout", authHandler.Logout)

	// --- Authenticated Routes ---
	api := router.Group("/api", middleware.AuthRequired)

	camera := api.Group("/camera")
	camera.POST("/start", cameraHandler.Start)
	camera.POST("/stop", cameraHandler.Stop)
	camera.POST("/flip", cameraHandler.Flip)
	camera.GET("/status", cameraHandler.Status)
	camera.POST("/capture", cameraHandler.Capture)
	camera.POST("/sample", cameraHandler.Sample)
	camera.POST("/record/start", cameraHandler.RecordStart)
	camera.POST("/record/stop", cameraHandler.RecordStop)
	camera.GET("/picture-sizes", cameraHandler.PictureSizes)
	camera.GET("/flash-modes", cameraHandler.FlashModes)
	camera.GET("/flash-mode", cameraHandler.GetFlashMode)
	camera.POST("/flash-mode", cameraHandler.SetFlashMode)
	camera.GET("/exposure-modes", cameraHandler.ExposureModes)
	camera.GET("/exposure-mode", cameraHandler.GetExposureMode)
	camera.POST("/exposure-mode", cameraHandler.SetExposureMode)
	camera.GET("/exposure-compensation", cameraHandler.GetExposureCompensation)
	camera.GET("/exposure-compensation/range", cameraHandler.ExposureCompensationRange)
	camera.POST("/exposure-compensation", cameraHandler.SetExposureCompensation)
	camera.GET("/white-balance-modes", cameraHandler.WhiteBalanceModes)
	camera.GET("/white-balance-mode", cameraHandler.GetWhiteBalanceMode)
	camera.POST("/white-balance-mode", cameraHandler.SetWhiteBalanceMode)
	camera.POST("/zoom", cameraHandler.SetZoom)
	camera.POST("/opacity", cameraHandler.Opacity)
	camera.POST("/gesture/tap", cameraHandler.GestureTap)
	camera.POST("/gesture/pinch", cameraHandler.GesturePinch)
	camera.POST("/orientation", cameraHandler.Orientation)
	camera.GET("/stream", cameraHandler.Stream)

	api.GET("/captures", galleryHandler.List)
	router.GET("/captures/:name", middleware.AuthRequired, galleryHandler.Get)

	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: router,
	}

	go func() {
		slog.Info("server running", "addr", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if tl != nil {
		tl.Stop()
	}
	if err := ctrl.Stop(); err != nil {
		slog.Error("failed to stop capture session", "error", err)
	}
	if telemetryShutdown != nil {
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}
}
