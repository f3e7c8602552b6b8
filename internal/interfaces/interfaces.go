// Package interfaces provides internal interface definitions for
// partcache. These are separate from the public API package to avoid
// import cycles between the public package and the internal subsystems it
// wires together.
package interfaces

// Logger is the logging contract used by every internal subsystem.
// *logging.Logger satisfies it; tests may supply a stub.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer is the metrics sink implemented by *partcache.MetricsObserver.
// Implementations must be safe for concurrent use: the hit-path calls
// come from every runtime's worker tasks concurrently.
type Observer interface {
	ObserveCommand(cmd string, latencyNs uint64, success bool)
	ObserveGetHit(bytes uint64)
	ObserveGetMiss()
	ObserveEviction(bytes uint64)
	ObserveConnOpen()
	ObserveConnClose()
}
