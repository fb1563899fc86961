// Package api provides the HTTP request handlers for the conversion
// service.
//
// It includes handlers for:
//   - Submitting conversion requests and polling their progress
//   - Downloading converted artifacts
//   - Listing supported formats
//   - Health checks and build information
package api
