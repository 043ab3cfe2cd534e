package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"media-prep/internal/logging"
	"media-prep/internal/memory"
	"media-prep/internal/sending"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "MEDIAPREP"

// DatabaseFile is the outbox file name inside DatabaseDir.
const DatabaseFile = "outbox.db"

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
	Port               string        `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	MetricsPort        string        `envconfig:"METRICS_PORT" default:"9090" validate:"required,numeric"`
	MetricsEnabled     bool          `envconfig:"METRICS_ENABLED" default:"true"`
	LogHealthChecks    bool          `envconfig:"LOG_HEALTH_CHECKS" default:"false"`
	SpoolDir           string        `envconfig:"SPOOL_DIR" default:"/spool" validate:"required"`
	DatabaseDir        string        `envconfig:"DATABASE_DIR" default:"/database" validate:"required"`
	MaxFileSize        int64         `envconfig:"MAX_FILE_SIZE" default:"1572864000" validate:"gt=0"`
	StickerMaxSize     int           `envconfig:"STICKER_MAX_SIZE" default:"512" validate:"gt=0"`
	MaxStickerInMemory int64         `envconfig:"MAX_STICKER_IN_MEMORY" default:"2097152" validate:"gt=0"`
	QueueStopTimeout   time.Duration `envconfig:"QUEUE_STOP_TIMEOUT" default:"5s" validate:"gte=0"`
	ProbeTimeout       time.Duration `envconfig:"PROBE_TIMEOUT" default:"30s" validate:"gt=0"`
	MemoryLimit        int64         `envconfig:"MEMORY_LIMIT" default:"0" validate:"gte=0"`
	MemoryRatio        float64       `envconfig:"MEMORY_RATIO" default:"0.85" validate:"gt=0,lte=1"`

	// Derived paths
	DatabasePath string `ignored:"true"`
}

// Limits returns the preparation limits carried by the configuration.
func (c *Config) Limits() sending.Limits {
	return sending.Limits{
		MaxFileSize:        c.MaxFileSize,
		StickerMaxSize:     c.StickerMaxSize,
		MaxStickerInMemory: c.MaxStickerInMemory,
	}
}

var validate = validator.New()

// ParseConfig reads the environment into a Config and validates it without
// touching the filesystem. A .env file in the working directory is loaded
// first when present; variables already set take precedence.
func ParseConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("failed to load .env file: %v", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, DatabaseFile)
	return &cfg, nil
}

// LoadConfig loads and validates configuration from environment variables
// and prepares the spool and database directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := ParseConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("  %s_PORT:                  %s", EnvPrefix, config.Port)
	logging.Info("  %s_METRICS_PORT:          %s", EnvPrefix, config.MetricsPort)
	logging.Info("  %s_METRICS_ENABLED:       %v", EnvPrefix, config.MetricsEnabled)
	logging.Info("  %s_LOG_HEALTH_CHECKS:     %v", EnvPrefix, config.LogHealthChecks)
	logging.Info("  %s_SPOOL_DIR:             %s", EnvPrefix, config.SpoolDir)
	logging.Info("  %s_DATABASE_DIR:          %s", EnvPrefix, config.DatabaseDir)
	logging.Info("  %s_MAX_FILE_SIZE:         %s", EnvPrefix, memory.FormatBytes(config.MaxFileSize))
	logging.Info("  %s_STICKER_MAX_SIZE:      %d px", EnvPrefix, config.StickerMaxSize)
	logging.Info("  %s_MAX_STICKER_IN_MEMORY: %s", EnvPrefix, memory.FormatBytes(config.MaxStickerInMemory))
	logging.Info("  %s_QUEUE_STOP_TIMEOUT:    %v", EnvPrefix, config.QueueStopTimeout)
	logging.Info("  %s_PROBE_TIMEOUT:         %v", EnvPrefix, config.ProbeTimeout)
	if config.MemoryLimit > 0 {
		logging.Info("  %s_MEMORY_LIMIT:          %s", EnvPrefix, memory.FormatBytes(config.MemoryLimit))
	} else {
		logging.Info("  %s_MEMORY_LIMIT:          (none)", EnvPrefix)
	}
	logging.Info("  %s_MEMORY_RATIO:          %.2f", EnvPrefix, config.MemoryRatio)
	logging.Info("  LOG_LEVEL:                      %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := resolveDirectories(config); err != nil {
		return nil, err
	}

	if err := ensureDirectory(config.SpoolDir, "spool"); err != nil {
		return nil, fmt.Errorf("spool directory error: %w", err)
	}
	if err := testWriteAccess(config.SpoolDir); err != nil {
		return nil, fmt.Errorf("spool directory is not writable (required for uploads): %w", err)
	}
	logging.Info("  [OK] Spool directory is writable")

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Outbox:      ENABLED (required)")
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func resolveDirectories(config *Config) error {
	spoolDir, err := filepath.Abs(config.SpoolDir)
	if err != nil {
		return fmt.Errorf("failed to resolve spool directory path: %w", err)
	}
	logging.Info("  Spool directory (absolute): %s", spoolDir)

	databaseDir, err := filepath.Abs(config.DatabaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", databaseDir)

	config.SpoolDir = spoolDir
	config.DatabaseDir = databaseDir
	config.DatabasePath = filepath.Join(databaseDir, DatabaseFile)
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogOutboxInit logs outbox database initialization
func LogOutboxInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OUTBOX INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Outbox initialized in %v", duration)
}

// LogProbeInit logs media probing availability and checks FFmpeg
func LogProbeInit(available bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA PROBING")
	logging.Info("------------------------------------------------------------")

	if !available {
		logging.Warn("  ffprobe not found in PATH")
		logging.Warn("  Songs and videos will be sent as plain documents")
		return
	}

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video thumbnails may be missing")
	} else {
		logging.Info("  [OK] FFmpeg is available")
	}
}

// LogVipsInit logs the image backend used for stickers and large images
func LogVipsInit(available bool) {
	if available {
		logging.Info("  [OK] libvips initialized")
		return
	}
	logging.Info("  libvips unavailable")
	logging.Info("  Sticker thumbnails fall back to JPEG")
}

// LogQueueInit logs preparation queue configuration
func LogQueueInit(stopTimeout time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PREPARATION QUEUE")
	logging.Info("------------------------------------------------------------")
	if stopTimeout > 0 {
		logging.Info("  Idle worker stop timeout: %v", stopTimeout)
	} else {
		logging.Info("  Idle worker stop timeout: never")
	}
	logging.Info("  [OK] Queue ready")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
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

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set %s_LOG_HEALTH_CHECKS=true to enable)", EnvPrefix)
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
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

func printBanner() {
	banner := `
------------------------------------------------------------
                    _ _
   _ __ ___   ___  __| (_) __ _       _ __  _ __ ___ _ __
  | '_ ' _ \ / _ \/ _' | |/ _' |_____| '_ \| '__/ _ \ '_ \
  | | | | | |  __/ (_| | | (_| |_____| |_) | | |  __/ |_) |
  |_| |_| |_|\___|\__,_|_|\__,_|     | .__/|_|  \___| .__/
                                     |_|            |_|
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

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

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

	if name == "spool" && logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			logging.Debug("    Leftover uploads: %d", len(entries))
		}
	}

	return nil
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

func checkFFmpeg() error {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH")
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(line))
	}

	return nil
}

