package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"trimsizer/internal/logging"
	"trimsizer/internal/memory"
	"trimsizer/internal/storage"
	"trimsizer/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DataDir              string
	StaticDir            string
	Port                 string
	MetricsPort          string
	MetricsEnabled       bool
	LogStaticFiles       bool
	LogHealthChecks      bool
	CrossOriginIsolation bool

	FFmpegPath      string
	FFprobePath     string
	EncoderThreads  int
	MaxUploadBytes  int64
	OutputRetention time.Duration
	JanitorInterval time.Duration

	Storage storage.Config

	// Derived paths
	ScratchDir   string
	UploadDir    string
	OutputDir    string
	DatabasePath string

	// StaticEnabled is false when StaticDir does not exist.
	StaticEnabled bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	staticDir := getEnv("STATIC_DIR", "./static")
	port := getEnv("PORT", "8001")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logStaticFiles := getEnvBool("LOG_STATIC_FILES", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	isolation := getEnvBool("CROSS_ORIGIN_ISOLATION", true)
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	ffprobePath := getEnv("FFPROBE_PATH", "ffprobe")
	maxUploadMB := getEnvInt("MAX_UPLOAD_MB", 2048)
	retentionStr := getEnv("OUTPUT_RETENTION", "24h")

	storageCfg := storage.Config{
		Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
		Bucket:    getEnv("STORAGE_BUCKET", ""),
		AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		UseSSL:    getEnvBool("STORAGE_USE_SSL", true),
		Region:    getEnv("STORAGE_REGION", ""),
		Prefix:    getEnv("STORAGE_PREFIX", ""),
	}

	logging.Info("  DATA_DIR:               %s", dataDir)
	logging.Info("  STATIC_DIR:             %s", staticDir)
	logging.Info("  PORT:                   %s", port)
	logging.Info("  METRICS_PORT:           %s", metricsPort)
	logging.Info("  METRICS_ENABLED:        %v", metricsEnabled)
	logging.Info("  FFMPEG_PATH:            %s", ffmpegPath)
	logging.Info("  FFPROBE_PATH:           %s", ffprobePath)
	logging.Info("  MAX_UPLOAD_MB:          %d", maxUploadMB)
	logging.Info("  OUTPUT_RETENTION:       %s", retentionStr)
	logging.Info("  CROSS_ORIGIN_ISOLATION: %v", isolation)
	logging.Info("  LOG_STATIC_FILES:       %v", logStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:      %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:              %s", logging.GetLevel())
	if storageCfg.Enabled() {
		logging.Info("  STORAGE_ENDPOINT:       %s", storageCfg.Endpoint)
		logging.Info("  STORAGE_BUCKET:         %s", storageCfg.Bucket)
		logging.Info("  STORAGE_USE_SSL:        %v", storageCfg.UseSSL)
	}

	retention, err := time.ParseDuration(retentionStr)
	if err != nil || retention <= 0 {
		logging.Warn("  Invalid OUTPUT_RETENTION, using default: 24h")
		retention = 24 * time.Hour
	}
	if maxUploadMB <= 0 {
		logging.Warn("  Invalid MAX_UPLOAD_MB, using default: 2048")
		maxUploadMB = 2048
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", dataDir)

	staticDir, err = filepath.Abs(staticDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve static directory path: %w", err)
	}

	config := &Config{
		DataDir:              dataDir,
		StaticDir:            staticDir,
		Port:                 port,
		MetricsPort:          metricsPort,
		MetricsEnabled:       metricsEnabled,
		LogStaticFiles:       logStaticFiles,
		LogHealthChecks:      logHealthChecks,
		CrossOriginIsolation: isolation,
		FFmpegPath:           ffmpegPath,
		FFprobePath:          ffprobePath,
		EncoderThreads:       workers.ForEncoder(),
		MaxUploadBytes:       int64(maxUploadMB) * 1024 * 1024,
		OutputRetention:      retention,
		JanitorInterval:      janitorInterval(retention),
		Storage:              storageCfg,
		ScratchDir:           filepath.Join(dataDir, "scratch"),
		UploadDir:            filepath.Join(dataDir, "uploads"),
		OutputDir:            filepath.Join(dataDir, "outputs"),
		DatabasePath:         filepath.Join(dataDir, "trimsizer.db"),
	}

	// Every working directory is required: encodes cannot run without them.
	for _, dir := range []struct{ path, name string }{
		{dataDir, "data"},
		{config.ScratchDir, "scratch"},
		{config.UploadDir, "upload"},
		{config.OutputDir, "output"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %-8s %s", dir.name, dir.path)
	}

	config.StaticEnabled = dirExists(staticDir)

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Encoder threads: %d", config.EncoderThreads)
	logging.Info("    Static UI:       %s", enabledString(config.StaticEnabled))
	logging.Info("    Object storage:  %s", enabledString(storageCfg.Enabled()))
	logging.Info("    Metrics:         %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// janitorInterval checks for expired outputs a few times per retention
// period, between one minute and one hour apart.
func janitorInterval(retention time.Duration) time.Duration {
	interval := retention / 4
	if interval < time.Minute {
		return time.Minute
	}
	if interval > time.Hour {
		return time.Hour
	}
	return interval
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv.
func LogMemoryConfig(res memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if !res.Configured {
		logging.Info("  GOMEMLIMIT not configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		return
	}
	logging.Info("  Source:     %s", res.Source)
	logging.Info("  GOMEMLIMIT: %s", memory.FormatBytes(res.GoMemLimit))
	if res.ContainerLimit > 0 {
		logging.Info("  Container:  %s (ratio %.2f)", memory.FormatBytes(res.ContainerLimit), res.Ratio)
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogEncoderInit logs the result of the ffmpeg availability check.
func LogEncoderInit(version string, err error) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Encode requests will fail with 503 until ffmpeg is installed")
		return
	}
	logging.Info("  [OK] %s", version)
}

// LogStorageInit logs object storage setup.
func LogStorageInit(cfg storage.Config, err error) {
	if !cfg.Enabled() {
		logging.Debug("  Object storage not configured, artifacts are served locally only")
		return
	}
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OBJECT STORAGE")
	logging.Info("------------------------------------------------------------")
	if err != nil {
		logging.Warn("  Storage setup failed: %v", err)
		logging.Warn("  delivery=storage requests will fail")
		return
	}
	logging.Info("  [OK] Publishing to %s/%s", cfg.Endpoint, cfg.Bucket)
}

// LogJanitorInit logs output retention settings.
func LogJanitorInit(retention, interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OUTPUT JANITOR")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Retention: %v (checked every %v)", retention, interval)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			// Prefix-less catch-all routes have no template
			pathTemplate = "/*"
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// Route areas used when logging the router.
const (
	areaEncoding    = "encoding"
	areaHistory     = "history"
	areaMaintenance = "maintenance"
	areaProbes      = "probes"
	areaUI          = "ui"
)

// LogHTTPRoutes logs how many routes each area registered, and the routes
// themselves at debug level.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	byArea := make(map[string][]RouteInfo)
	for _, route := range routes {
		area := routeArea(route.Path)
		byArea[area] = append(byArea[area], route)
	}
	areas := make([]string, 0, len(byArea))
	for area := range byArea {
		areas = append(areas, area)
	}
	sort.Strings(areas)

	for _, area := range areas {
		logging.Info("  %-12s %d route(s)", area+":", len(byArea[area]))
		for _, route := range byArea[area] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	logging.Info("")
	logging.Info("  Request logging:")
	logging.Info("    Static files:  %s", onOff(logStaticFiles, "LOG_STATIC_FILES"))
	logging.Info("    Health checks: %s", onOff(logHealthChecks, "LOG_HEALTH_CHECKS"))
}

func onOff(on bool, env string) string {
	if on {
		return "ON"
	}
	return fmt.Sprintf("OFF (set %s=true to enable)", env)
}

// routeArea names the part of the API a route template belongs to.
func routeArea(path string) string {
	switch {
	case path == "/api/encode", path == "/api/probe", path == "/api/bitrate", path == "/api/progress":
		return areaEncoding
	case path == "/api/sessions", strings.HasPrefix(path, "/api/sessions/"):
		return areaHistory
	case strings.HasPrefix(path, "/api/scratch"):
		return areaMaintenance
	case path == "/health", path == "/healthz", path == "/livez", path == "/readyz", path == "/version":
		return areaProbes
	default:
		return areaUI
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StaticEnabled   bool
	StorageEnabled  bool
	MaxUploadBytes  int64
	StartupDuration time.Duration
}

// LogServerStarted logs where the server listens and which optional parts
// are active.
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED in %v", config.StartupDuration)
	logging.Info("------------------------------------------------------------")
	logging.Info("  Encode API:    POST http://0.0.0.0:%s/api/encode (uploads up to %d MB)", config.Port, config.MaxUploadBytes>>20)
	if config.StaticEnabled {
		logging.Info("  Web UI:        http://0.0.0.0:%s/", config.Port)
	}
	if config.MetricsEnabled {
		logging.Info("  Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:       DISABLED")
	}
	if config.StorageEnabled {
		logging.Info("  Delivery:      download or storage")
	} else {
		logging.Info("  Delivery:      download only")
	}
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
  _       _               _
 | |_ _ _(_)_ __  ___ ___(_)___ ___ _ _
 |  _| '_| | '  \(_-</ -_) |_ // -_) '_|
  \__|_| |_|_|_|_/__/\___|_/__\___|_|

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
