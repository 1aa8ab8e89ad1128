package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"trimsizer/internal/database"
	"trimsizer/internal/encoding"
	"trimsizer/internal/filesystem"
	"trimsizer/internal/handlers"
	"trimsizer/internal/logging"
	"trimsizer/internal/media"
	"trimsizer/internal/memory"
	"trimsizer/internal/metrics"
	"trimsizer/internal/middleware"
	"trimsizer/internal/outputs"
	"trimsizer/internal/progress"
	"trimsizer/internal/scratch"
	"trimsizer/internal/startup"
	"trimsizer/internal/storage"
	"trimsizer/internal/transcoder"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
	encoderCheckLimit = 10 * time.Second
)

func main() {
	startTime := time.Now()

	// GOMEMLIMIT has to be in place before anything allocates much.
	memResult := memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	filesystem.SetDefaultVolumeResolver(volumeResolver(config))

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	trans := transcoder.New(transcoder.Config{
		FFmpegPath:  config.FFmpegPath,
		FFprobePath: config.FFprobePath,
		Threads:     config.EncoderThreads,
	})
	checkCtx, cancelCheck := context.WithTimeout(context.Background(), encoderCheckLimit)
	encoderVersion, encoderErr := trans.Version(checkCtx)
	cancelCheck()
	startup.LogEncoderInit(encoderVersion, encoderErr)

	arenas, err := scratch.NewManager(config.ScratchDir)
	if err != nil {
		startup.LogFatal("Failed to initialize scratch directory: %v", err)
	}
	// Arenas left by a crash are garbage; nothing can be running yet.
	if freed, err := arenas.Purge(); err != nil {
		logging.Warn("Failed to purge stale scratch arenas: %v", err)
	} else if freed > 0 {
		metrics.ScratchPurgedBytesTotal.Add(float64(freed))
		logging.Info("  Purged %s of stale scratch data", memory.FormatBytes(freed))
	}

	store, err := outputs.New(config.OutputDir, config.OutputRetention)
	if err != nil {
		startup.LogFatal("Failed to initialize output directory: %v", err)
	}
	logging.Info("Scratch arenas under %s, artifacts under %s (kept %s)",
		arenas.Root(), store.Root(), store.Retention())

	orchestrator := encoding.NewOrchestrator(trans, arenas, encoding.Config{
		VerifyPalette: media.VerifyPalette,
	})

	publisher := setupStorage(config.Storage)

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	h := handlers.New(handlers.Deps{
		DB:           db,
		Orchestrator: orchestrator,
		Tool:         trans,
		Tracker:      progress.NewTracker(),
		Outputs:      store,
		Publisher:    publisher,
		Memory:       memMonitor,
	}, handlers.Options{
		UploadDir:      config.UploadDir,
		MaxUploadBytes: config.MaxUploadBytes,
	})
	h.SetEncoderStatus(encoderVersion, encoderErr)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	var collector *metrics.Collector
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		collector = metrics.NewCollector(&appStats{db: db, arenas: arenas, outputs: store}, collectorInterval)
		collector.Start()
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	janitor := newJanitor(store, db, config.JanitorInterval)
	startup.LogJanitorInit(config.OutputRetention, config.JanitorInterval)
	go janitor.run()

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           buildMiddleware(router, config),
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and artifact downloads are long; the streaming writer
		// applies its own per-write deadlines.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, metricsSrv, trans, janitor, collector, memMonitor)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StaticEnabled:   config.StaticEnabled,
		StorageEnabled:  publisher != nil,
		MaxUploadBytes:  config.MaxUploadBytes,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
}

// setupStorage connects the optional artifact bucket. A misconfigured
// bucket disables storage delivery instead of stopping the server.
func setupStorage(cfg storage.Config) handlers.Publisher {
	if !cfg.Enabled() {
		startup.LogStorageInit(cfg, nil)
		return nil
	}

	p, err := storage.New(cfg)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err = p.EnsureBucket(ctx)
		cancel()
	}
	startup.LogStorageInit(cfg, err)
	if err != nil {
		return nil
	}
	return p
}

func volumeResolver(config *startup.Config) *filesystem.VolumeResolver {
	return filesystem.NewVolumeResolver(map[string]string{
		"outputs": config.OutputDir,
		"uploads": config.UploadDir,
		"scratch": config.ScratchDir,
	})
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/encode", h.Encode).Methods("POST")
	api.HandleFunc("/probe", h.Probe).Methods("POST")
	api.HandleFunc("/bitrate", h.Bitrate).Methods("GET")
	api.HandleFunc("/progress", h.GetProgress).Methods("GET")
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/artifact", h.SessionArtifact).Methods("GET")
	api.HandleFunc("/sessions/{id}/poster", h.SessionPoster).Methods("GET")
	api.HandleFunc("/scratch/clear", h.ClearScratch).Methods("POST")

	if config.StaticEnabled {
		r.HandleFunc("/", serveStaticFile(filepath.Join(config.StaticDir, "index.html"), "text/html; charset=utf-8")).Methods("GET")
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(config.StaticDir)))
	}

	return r
}

// buildMiddleware wraps the router, outermost first: metrics, logging,
// isolation headers, compression.
func buildMiddleware(router http.Handler, config *startup.Config) http.Handler {
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(router)

	if config.CrossOriginIsolation {
		handler = middleware.CrossOriginIsolation()(handler)
	}

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}
	return handler
}

// serveStaticFile serves a single file with a fixed content type.
func serveStaticFile(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, path)
	}
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	metricsMux.HandleFunc("/health", h.LivenessCheck)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

// appStats feeds the metrics collector.
type appStats struct {
	db      *database.Database
	arenas  *scratch.Manager
	outputs *outputs.Store
}

func (a *appStats) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stats metrics.Stats
	if a.db != nil {
		if s, err := a.db.GetStats(ctx); err != nil {
			logging.Warn("metrics: failed to read session stats: %v", err)
		} else {
			stats.SessionsByStatus = s.ByStatus
		}
		stats.DBSizeBytes = a.db.FileSize()
	}
	if a.arenas != nil {
		stats.ScratchBytes, _ = a.arenas.Size()
		if ids, err := a.arenas.Arenas(); err == nil {
			stats.ScratchArenas = len(ids)
		}
	}
	if a.outputs != nil {
		stats.OutputBytes, _ = a.outputs.Size()
	}
	return stats
}

// janitor expires stored outputs on a fixed interval.
type janitor struct {
	outputs  *outputs.Store
	db       *database.Database
	interval time.Duration
	now      func() time.Time
	stop     chan struct{}
	done     chan struct{}
}

func newJanitor(store *outputs.Store, db *database.Database, interval time.Duration) *janitor {
	return &janitor{
		outputs:  store,
		db:       db,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (j *janitor) run() {
	defer close(j.done)
	if j.interval <= 0 || j.outputs.Retention() <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stop:
			return
		}
	}
}

func (j *janitor) sweep() {
	now := j.now()
	if _, err := j.outputs.Expire(now); err != nil {
		logging.Warn("Janitor: %v", err)
		return
	}
	if j.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.db.SetLastPurge(ctx, now); err != nil {
		logging.Warn("Janitor: failed to record purge time: %v", err)
	}
}

func (j *janitor) Stop() {
	close(j.stop)
	<-j.done
}

func handleShutdown(srv, metricsSrv *http.Server, trans *transcoder.Transcoder, j *janitor, collector *metrics.Collector, memMonitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Stopping janitor")
	j.Stop()
	startup.LogShutdownStepComplete("Janitor stopped")

	startup.LogShutdownStep(fmt.Sprintf("Killing %d in-flight encoder process(es)", trans.Active()))
	trans.Cleanup()
	startup.LogShutdownStepComplete("Encoder cleanup complete")

	if collector != nil {
		collector.Stop()
	}
	memMonitor.Stop()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownComplete()
}
