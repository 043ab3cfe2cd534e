package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-prep/internal/filesystem"
	"media-prep/internal/handlers"
	"media-prep/internal/logging"
	"media-prep/internal/media"
	"media-prep/internal/memory"
	"media-prep/internal/metrics"
	"media-prep/internal/middleware"
	"media-prep/internal/outbox"
	"media-prep/internal/sending"
	"media-prep/internal/startup"
	"media-prep/internal/tasks"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout   = 30 * time.Second
	metricsInterval   = time.Minute
	vacuumInterval    = 24 * time.Hour
	uploadSlack       = 1024 * 1024
	readHeaderTimeout = 10 * time.Second
)

type services struct {
	loop       *tasks.Loop
	stopLoop   context.CancelFunc
	queue      *tasks.Queue
	monitor    *memory.Monitor
	store      *outbox.Outbox
	collector  *metrics.Collector
	stopMaint  context.CancelFunc
	srv        *http.Server
	metricsSrv *http.Server
}

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	memory.ConfigureLimit(config.MemoryLimit, config.MemoryRatio)

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"spool":    config.SpoolDir,
		"database": config.DatabaseDir,
	}))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	outboxStart := time.Now()
	store, err := outbox.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize outbox: %v", err)
	}
	startup.LogOutboxInit(time.Since(outboxStart))

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips initialization failed: %v", err)
	}
	startup.LogVipsInit(media.IsVipsAvailable())

	probe := media.NewFFProbe(config.ProbeTimeout)
	startup.LogProbeInit(probe.Available())
	var prober media.Prober
	if probe.Available() {
		prober = probe
	}

	loop := tasks.NewLoop()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	startup.LogQueueInit(config.QueueStopTimeout)
	queue := tasks.NewQueue(loop, tasks.Options{
		StopTimeout: config.QueueStopTimeout,
		Observer:    metrics.NewQueueObserver(),
	})

	deps := sending.Deps{
		Classifier: media.NewClassifier(prober),
		Thumbnails: media.NewThumbnailBuilder(),
		Limits:     config.Limits(),
		Notifier:   store,
		Confirmer:  store,
		Observer:   metrics.NewPrepareObserver(),
		Memory:     monitor,
	}

	h := handlers.New(queue, store, handlers.Options{
		SpoolDir:   config.SpoolDir,
		Deps:       deps,
		Dispatcher: loop,
	})

	collector := metrics.NewCollector(store, metricsInterval)
	collector.SetDatabasePath(config.DatabasePath)
	collector.Start()

	maintCtx, stopMaint := context.WithCancel(context.Background())
	go runMaintenance(maintCtx, store)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		// uploads may be large; bodies are bounded by MaxBody instead
		ReadTimeout:  0,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	svc := &services{
		loop:       loop,
		stopLoop:   stopLoop,
		queue:      queue,
		monitor:    monitor,
		store:      store,
		collector:  collector,
		stopMaint:  stopMaint,
		srv:        srv,
		metricsSrv: metricsSrv,
	}

	done := make(chan struct{})
	go func() {
		handleShutdown(svc)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	r.Use(middleware.Logger(loggingConfig))
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	r.Use(middleware.MaxBody(maxRequestBody(config)))

	h.Register(r)
	return r
}

// maxRequestBody allows an album of files at the size limit plus multipart
// framing.
func maxRequestBody(config *startup.Config) int64 {
	return 10*config.MaxFileSize + uploadSlack
}

func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)

	return &http.Server{
		Addr:              ":" + port,
		Handler:           metricsMux,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runMaintenance refreshes connection metrics and vacuums the outbox daily.
func runMaintenance(ctx context.Context, store *outbox.Outbox) {
	metricsTicker := time.NewTicker(metricsInterval)
	defer metricsTicker.Stop()
	vacuumTicker := time.NewTicker(vacuumInterval)
	defer vacuumTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-metricsTicker.C:
			store.UpdateDBMetrics()
		case <-vacuumTicker.C:
			if err := store.Vacuum(ctx); err != nil {
				logging.Warn("Outbox vacuum failed: %v", err)
			}
		}
	}
}

func handleShutdown(svc *services) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := svc.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Closing preparation queue")
	svc.monitor.Stop()
	svc.queue.Close()
	startup.LogShutdownStepComplete("Preparation queue closed")

	startup.LogShutdownStep("Stopping owner loop")
	svc.stopLoop()
	svc.loop.Close()
	startup.LogShutdownStepComplete("Owner loop stopped")

	svc.stopMaint()
	svc.collector.Stop()

	if svc.metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := svc.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Closing outbox")
	if err := svc.store.Close(); err != nil {
		logging.Warn("Outbox close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Outbox closed")
	}

	media.ShutdownVips()
	startup.LogShutdownComplete()
}
