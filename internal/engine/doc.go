// Package engine contains the conversion coordinator: the top-level entry
// point that validates input, gates work through admission control, selects
// a converter, executes it with bounded retry and per-attempt timeouts, and
// guarantees cleanup on every exit path.
//
// Conversions are processed through a fixed number of admission slots,
// one by default, trading throughput for predictable resource usage on a
// single desktop machine. The slot count is a tunable, not an architectural
// constant.
//
// Each request owns a Tracker: a forward-only stage machine (idle,
// analyzing, converting, optimizing, finalizing, completed, with failed
// reachable from any non-terminal stage) plus a monotonic fractional
// progress signal, observable over a subscription channel.
package engine
