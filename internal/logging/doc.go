// Package logging provides leveled logging for the conversion engine.
//
// Levels are configured from the environment:
//   - DEBUG=true (or 1/yes/on) enables debug output
//   - LOG_LEVEL=debug|info|warn|error selects the minimum level
//
// The default level is info. Output goes through the standard log package
// with a [LEVEL] prefix on each line.
package logging
