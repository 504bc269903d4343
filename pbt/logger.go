package pbt

import (
	"log"
	"os"
)

// Logger is the injectable logging sink the Controller and WorkerPool
// write lifecycle and error messages to.
type Logger interface {
	Printf(format string, args ...any)
}

// stdLogger adapts the standard library's *log.Logger to the Logger
// interface; it is the default used when no Logger is supplied.
type stdLogger struct {
	*log.Logger
}

// NewStdLogger returns a Logger writing to stderr with a timestamp
// prefix.
func NewStdLogger() Logger {
	return &stdLogger{log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *stdLogger) Printf(format string, args ...any) { l.Logger.Printf(format, args...) }

// noopLogger discards everything; useful for quiet test runs.
type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}
