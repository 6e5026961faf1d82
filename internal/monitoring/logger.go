// Package monitoring is the engine's diagnostics seam. Everything the
// run machinery says — guard decisions, per-tile warnings, and the
// Progress reporter's tick lines — funnels through the package-level
// Logf, so an embedding application can redirect or silence all of it
// in one place.
package monitoring

import "log"

// Logf emits one diagnostic line. It defaults to log.Printf; swap it
// through SetLogger rather than assigning directly.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, muting diagnostics and progress output alike.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
