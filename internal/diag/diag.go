// Package diag provides a minimal diagnostics sink for the engine's
// non-fatal conditions (replay orphans, merge progress and conflict
// resolutions): a verbose-gated fmt.Fprintf sink rather than a
// structured logging library.
package diag

import (
	"fmt"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Sink receives a formatted diagnostic line. The default Sink is a no-op;
// callers that want visibility (e.g. cmd/partd with --verbose) install
// their own.
type Sink func(format string, args ...any)

// noop discards every diagnostic.
func noop(string, ...any) {}

// Default is the no-op sink used when nothing else is configured.
var Default Sink = noop

// Printf writes through s, or silently discards if s is nil.
func Printf(s Sink, format string, args ...any) {
	if s == nil {
		return
	}
	s(format, args...)
}

// ToWriter adapts a fmt.Stringer-free io.Writer-like target (anything
// with a Write([]byte) (int, error) method, e.g. os.Stderr) into a Sink.
func ToWriter(w interface {
	Write([]byte) (int, error)
}) Sink {
	return func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}
}

// FileSink opens (or creates) a rotating log file at path and returns a
// Sink backed by it, plus the lumberjack.Logger so the caller can Close it
// on shutdown. Rotation keeps at most maxSizeMB per file, maxBackups old
// files, and maxAgeDays of history.
func FileSink(path string, maxSizeMB, maxBackups, maxAgeDays int) (Sink, *lumberjack.Logger) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return ToWriter(lj), lj
}
