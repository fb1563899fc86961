// Package workers sizes worker pools for fan-out work such as waveform
// frame rendering. Counts derive from GOMAXPROCS, which tracks container
// CPU limits, and can be overridden with the RENDER_WORKERS environment
// variable.
package workers
