package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced with SetLogger; relay loops and the codec report through it
// so tests can redirect or mute their output.
var Logf func(format string, v ...interface{}) = log.Printf

// Warnf reports conditions that are tolerated but worth surfacing, such as a
// dropped datagram or a non-conforming envelope. It shares the sink installed
// by SetLogger.
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
