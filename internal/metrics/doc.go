// Package metrics declares the Prometheus metrics exported by the
// conversion engine.
//
// Metrics are registered with the default registry via promauto at package
// load time and exposed through the /metrics endpoint. All metric names use
// the convierto_ prefix.
package metrics
