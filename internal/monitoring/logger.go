package monitoring

import "log"

// Logf is the package-level diagnostic logger for the pipeline. It defaults
// to log.Printf; callers may swap it out with SetLogger. Malformed records
// and serial faults are reported here rather than surfaced to the operator,
// so redirecting this is the way to capture pipeline diagnostics.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
