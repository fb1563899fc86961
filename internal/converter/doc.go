// Package converter implements the four conversion variants (image, audio,
// video, document) behind a shared capability contract, and the factory
// that selects a variant for a format pair.
//
// Each variant owns the subset of the compatibility matrix it implements
// and executes its strategies against the Media Backend. All temporary
// outputs are allocated through a task-scoped Workspace, which marks files
// active in the resource pool for the task's lifetime so the cache sweep
// never reclaims them mid-conversion.
//
// Variants emit monotonically non-decreasing progress in [0,1] and never
// leave a partial file at an output path on failure.
package converter
