package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/nuance-dev/convierto-sub000/internal/logging"
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

// Config holds all application configuration
type Config struct {
	CacheDir   string
	DropDir    string
	DropTarget string
	Port       string

	CacheRetention time.Duration
	SweepInterval  time.Duration

	MaxConcurrent   int
	MaxAttempts     int
	MediaTimeout    time.Duration
	DocumentTimeout time.Duration
	Quality         float64

	LogHealthChecks bool
	MetricsEnabled  bool

	// WatcherEnabled is derived from DROP_DIR availability.
	WatcherEnabled bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cacheDir := getEnv("CACHE_DIR", "/cache")
	dropDir := getEnv("DROP_DIR", "")
	dropTarget := getEnv("DROP_TARGET", "png")
	port := getEnv("PORT", "8080")
	retention := getEnvDuration("CACHE_RETENTION", 24*time.Hour)
	sweepInterval := getEnvDuration("SWEEP_INTERVAL", time.Hour)
	maxConcurrent := getEnvInt("MAX_CONCURRENT", 1)
	maxAttempts := getEnvInt("MAX_ATTEMPTS", 3)
	mediaTimeout := getEnvDuration("MEDIA_TIMEOUT", 300*time.Second)
	documentTimeout := getEnvDuration("DOCUMENT_TIMEOUT", 180*time.Second)
	quality := getEnvFloat("QUALITY", 0.95)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  CACHE_DIR:          %s", cacheDir)
	if dropDir != "" {
		logging.Info("  DROP_DIR:           %s", dropDir)
		logging.Info("  DROP_TARGET:        %s", dropTarget)
	} else {
		logging.Info("  DROP_DIR:           (disabled)")
	}
	logging.Info("  PORT:               %s", port)
	logging.Info("  CACHE_RETENTION:    %s", retention)
	logging.Info("  SWEEP_INTERVAL:     %s", sweepInterval)
	logging.Info("  MAX_CONCURRENT:     %d", maxConcurrent)
	logging.Info("  MAX_ATTEMPTS:       %d", maxAttempts)
	logging.Info("  MEDIA_TIMEOUT:      %s", mediaTimeout)
	logging.Info("  DOCUMENT_TIMEOUT:   %s", documentTimeout)
	logging.Info("  QUALITY:            %.2f", quality)
	logging.Info("  METRICS_ENABLED:    %v", metricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:  %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())

	if maxConcurrent < 1 {
		logging.Warn("  Invalid MAX_CONCURRENT, using 1")
		maxConcurrent = 1
	}
	if maxAttempts < 1 {
		logging.Warn("  Invalid MAX_ATTEMPTS, using 1")
		maxAttempts = 1
	}
	if quality <= 0 || quality > 1 {
		logging.Warn("  Invalid QUALITY, using 0.95")
		quality = 0.95
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	cacheDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", cacheDir)

	if err := ensureDirectory(cacheDir, "cache"); err != nil {
		return nil, fmt.Errorf("cache directory error: %w", err)
	}

	logging.Debug("  Testing cache directory write access...")
	if err := testWriteAccess(cacheDir); err != nil {
		return nil, fmt.Errorf("cache directory is not writable (required): %w", err)
	}
	logging.Info("  [OK] Cache directory is writable")

	config := &Config{
		CacheDir:        cacheDir,
		DropDir:         dropDir,
		DropTarget:      dropTarget,
		Port:            port,
		CacheRetention:  retention,
		SweepInterval:   sweepInterval,
		MaxConcurrent:   maxConcurrent,
		MaxAttempts:     maxAttempts,
		MediaTimeout:    mediaTimeout,
		DocumentTimeout: documentTimeout,
		Quality:         quality,
		LogHealthChecks: logHealthChecks,
		MetricsEnabled:  metricsEnabled,
	}

	if dropDir != "" {
		dropDir, err = filepath.Abs(dropDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve drop directory path: %w", err)
		}
		config.DropDir = dropDir
		config.WatcherEnabled = setupOptionalDir(dropDir, "drop")
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Conversion:  ENABLED (required)")
	logging.Info("    Watcher:     %s", enabledString(config.WatcherEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("    failed to remove test file %s: %v", testFile, err)
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogBackendInit logs media backend initialization and tool availability
func LogBackendInit(tools map[string]bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("BACKEND INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	for _, name := range []string{"ffmpeg", "ffprobe", "pdftoppm", "pdfinfo", "magick"} {
		if tools[name] {
			logging.Info("  [OK] %s is available", name)
		} else {
			logging.Warn("  %s not found; conversions that need it will fail", name)
		}
	}
}

// LogCoordinatorInit logs coordinator configuration
func LogCoordinatorInit(maxConcurrent, maxAttempts int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("COORDINATOR INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Admission slots:  %d", maxConcurrent)
	logging.Info("  Max attempts:     %d", maxAttempts)
}

// LogWatcherStarted logs successful watcher start
func LogWatcherStarted(dir, target string) {
	logging.Info("  [OK] Watching %s (converting to %s)", dir, target)
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
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
   ______                 _           __
  / ____/___  ____ _   __(_)__  _____/ /_____
 / /   / __ \/ __ \ | / / / _ \/ ___/ __/ __ \
/ /___/ /_/ / / / / |/ / /  __/ /  / /_/ /_/ /
\____/\____/_/ /_/|___/_/\___/_/   \__/\____/

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

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid float value for %s: %q, using default: %f", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
