// Package logging provides a minimal logging interface and adapters for jarvis.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// used by the provider adapters, the factory and the chat session. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - JarvisLogger with component / session context and provider call helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - FileWriter, a size and age rotated log file sink
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{
//	    Level:  logging.LogLevelInfo,
//	    Format: "text",
//	    Output: logging.FileWriter(path),
//	})
//
// The chat terminal is owned by the presentation loop, so log output is
// normally routed to a file rather than stdout.
package logging
