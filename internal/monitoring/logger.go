// Package monitoring carries the process log hook and the diagnostic sink
// that pipeline stages report user-facing messages through.
package monitoring

import "log"

// Logf receives internal log lines from every package in this module. It
// writes through the standard logger until SetLogger replaces it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger routes Logf to f. A nil f discards log lines.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
