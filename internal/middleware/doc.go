// Package middleware provides HTTP middleware for the conversion service.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with path normalization
//   - Configurable filtering for health check endpoints
package middleware
