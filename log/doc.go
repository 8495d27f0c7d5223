// Package log provides a context-scoped logrus logger, the same pattern
// used throughout the rest of the runtime for structured, leveled logging.
package log
