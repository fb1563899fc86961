// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides
// consistent logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - CACHE_DIR: Path to the conversion cache directory (default: /cache)
//   - DROP_DIR: Optional watched directory; files dropped into it are
//     converted automatically (default: disabled)
//   - DROP_TARGET: Target format extension for watched conversions
//     (default: png)
//   - PORT: HTTP server port (default: 8080)
//   - CACHE_RETENTION: Inactive cache entry lifetime as a Go duration
//     (default: 24h)
//   - SWEEP_INTERVAL: Periodic cache sweep interval (default: 1h)
//   - MAX_CONCURRENT: Number of conversion admission slots (default: 1)
//   - MAX_ATTEMPTS: Conversion attempts before giving up (default: 3)
//   - MEDIA_TIMEOUT: Per-attempt budget for image, audio, and video
//     conversions (default: 300s)
//   - DOCUMENT_TIMEOUT: Per-attempt budget for document conversions
//     (default: 180s)
//   - QUALITY: Default lossy quality factor in [0,1] (default: 0.95)
//   - RENDER_WORKERS: Worker count override for frame rendering
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - METRICS_ENABLED: Expose the Prometheus endpoint (default: true)
//
// # Directory Setup
//
// The cache directory is required and must be writable; the drop directory
// is optional and enables the filesystem watcher when present.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via
// [GetBuildInfo]: Version, Commit, BuildTime, and GoVersion.
package startup
