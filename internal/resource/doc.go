// Package resource implements admission control for conversion tasks.
//
// A Pool tracks the set of registered tasks per category, the temporary
// files currently in use, and answers pre-flight memory availability checks.
// The availability check is advisory-before-work: it runs once before the
// expensive backend calls, not continuously.
//
// The memory estimate for a conversion is a fixed base plus a penalty
// derived from the category pair. A conversion is rejected when the
// estimate exceeds half of the currently available physical memory; the
// half reservation is a safety margin against estimation error and
// concurrent tasks.
//
// All counters are internally synchronized and safe for concurrent use.
package resource
