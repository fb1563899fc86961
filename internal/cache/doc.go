// Package cache manages the lifecycle of temporary conversion artifacts.
//
// A Manager issues collision-free output locations under a dedicated cache
// root and reclaims stale entries. The sweep removes entries older than the
// retention window unless they are currently marked active; active marks
// come from the resource pool, which is how concurrent sweep-and-use is
// made safe without file locks.
//
// Sweeps run on startup and each time the active task count drains to zero.
// Individual sweep failures are logged and skipped so one unreachable file
// never aborts the sweep.
package cache
