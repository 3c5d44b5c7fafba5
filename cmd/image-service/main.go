package main

import (
	"context"
	"flag"
	"net/http"
	"runtime"
	"time"

	"github.com/YJChan/http-image-processor/internal/api"
	"github.com/YJChan/http-image-processor/internal/cmd"
	"github.com/YJChan/http-image-processor/internal/fonts"
	"github.com/YJChan/http-image-processor/internal/health"
	"github.com/YJChan/http-image-processor/internal/logger"
	"github.com/YJChan/http-image-processor/internal/metrics"
	"github.com/YJChan/http-image-processor/internal/pipeline"
	"github.com/YJChan/http-image-processor/internal/scheduler"

	"github.com/jamiealquiza/envy"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// Commandline flags
var (
	// Global
	listen        = flag.String("listen", ":8080", "listen address")
	metricsListen = flag.String("metrics-listen", ":8081", "listen address for the metrics http server")
	loglevel      = zap.LevelFlag("log-level", zap.InfoLevel, "log level (default \"info\") (debug, info, warn, error, dpanic, panic, fatal)")

	// Fonts
	fontDir = flag.String("font-dir", "", "directory with additional .ttf/.otf fonts to load at startup")

	// Scheduler
	workers    = flag.Int("workers", 0, "number of pipeline workers (0 means one per cpu)")
	queueDepth = flag.Int("queue-depth", 32, "number of jobs that may wait for a worker before submissions are rejected")
	jobTimeout = flag.Duration("job-timeout", 30*time.Second, "deadline for a single processing job")

	// Pipeline
	maxDimension   = flag.Int("max-dimension", pipeline.DefaultMaxDimension, "maximum accepted image width/height in pixels")
	maxUploadBytes = flag.Int64("max-upload-bytes", 64<<20, "maximum size of an uploaded request body")
)

func main() {
	// Parse environment variables
	envy.Parse("IMAGEPROC")

	// Parse commandline flags
	flag.Parse()

	// Initialize the logger
	log := logger.New(*loglevel)
	defer log.Sync()

	// Set GOMAXPROCS
	maxprocs.Set(maxprocs.Logger(log.Infof))

	// Set up context for shutting down
	shutdownCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	// Load the font registry. Any failure here is fatal: the service never
	// starts serving with a partial font table.
	registry, err := fonts.New()
	if err != nil {
		log.Fatalf("error initializing the font registry: %s", err)
	}

	if *fontDir != "" {
		if err := registry.Load(*fontDir); err != nil {
			log.Fatalf("error loading fonts from %s: %s", *fontDir, err)
		}
	}

	log.Infof("loaded fonts: %v", registry.IDs())

	// Set up the pipeline and the worker pool executing it
	pipe := &pipeline.Pipeline{
		Fonts:        registry,
		MaxDimension: *maxDimension,
	}

	poolSize := *workers
	if poolSize <= 0 {
		poolSize = runtime.GOMAXPROCS(0)
	}

	if *queueDepth < 0 {
		log.Fatalf("queue-depth must not be negative")
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sched := scheduler.New(workerCtx, log, poolSize, *queueDepth, *jobTimeout, pipe.Run)
	go sched.Run()
	log.Infof("starting worker pool with %d workers and queue depth %d", poolSize, *queueDepth)

	// Initialize and start the health checker
	checkerCtx, checkerCancel := context.WithCancel(context.Background())
	defer checkerCancel()

	checker := &health.Checker{
		Ctx:       checkerCtx,
		Scheduler: sched,
		Fonts:     registry,
		Log:       log,
	}
	go checker.Run()

	// Start the metrics http server
	metricsCtx, metricsCancel := context.WithCancel(context.Background())
	defer metricsCancel()

	go metrics.Serve(metricsCtx, log, checker, *metricsListen)

	// Start and listen on http
	imageAPI := &api.API{
		Scheduler:      sched,
		Fonts:          registry,
		HealthChecker:  checker,
		Log:            log,
		HandlerTimeout: cmd.HandlerTimeout,
		MaxUploadBytes: *maxUploadBytes,
	}
	server := &http.Server{
		Addr:         *listen,
		Handler:      imageAPI.Router(),
		ReadTimeout:  cmd.ReadTimeout,
		WriteTimeout: cmd.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Infof("shutting down the http server: %s", err)
			shutdown()
		}
	}()

	log.Infof("http server listening on %s", *listen)

	// Wait for shutdown or error
	err = cmd.WaitForInterrupt(shutdownCtx)
	log.Infof("shutting down: %s", err)

	// Shut down the http server, then the worker pool
	serverCtx, serverCancel := context.WithTimeout(context.Background(), cmd.WriteTimeout)
	defer serverCancel()
	if err := server.Shutdown(serverCtx); err != nil {
		log.Warnf("error shutting down: %s", err)
	}
}
