package compose

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/phuhao00/spoor/v2"
)

// Logger is the narrow logging surface the composition core depends on.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// spoorLogger layers the leveled Debug/Info/Warn/Error surface over
// spoor's low-level Logger (Output/SetOutput), the same way
// aop/logger/log.go layers package-level leveled helpers over that
// interface: spoor itself only defines the plain Output/SetOutput pair
// plus the Level constants and their String() names, so every leveled
// wrapper in the corpus builds its own dispatch on top of those two
// primitives rather than finding one ready-made on spoor.Logger.
type spoorLogger struct {
	out   spoor.Logger
	level spoor.Level
}

// newSpoorLogger writes to stderr through the standard library's
// *log.Logger, which already satisfies spoor.Logger's Output/SetOutput
// pair, at spoor.DEBUG (everything passes the level check).
func newSpoorLogger() *spoorLogger {
	return &spoorLogger{
		out:   log.New(os.Stderr, "", log.LstdFlags),
		level: spoor.DEBUG,
	}
}

func (s *spoorLogger) write(lvl spoor.Level, msg string, args []interface{}) {
	if lvl < s.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	_ = s.out.Output(3, lvl.String()+" "+msg)
}

func (s *spoorLogger) Debug(msg string, args ...interface{}) { s.write(spoor.DEBUG, msg, args) }
func (s *spoorLogger) Info(msg string, args ...interface{})  { s.write(spoor.INFO, msg, args) }
func (s *spoorLogger) Warn(msg string, args ...interface{})  { s.write(spoor.WARN, msg, args) }
func (s *spoorLogger) Error(msg string, args ...interface{}) { s.write(spoor.ERROR, msg, args) }

var (
	defaultLogger     Logger
	defaultLoggerOnce sync.Once
)

// DefaultLogger returns the process-wide spoor-backed Logger used when a
// Container or Boot sequencer is not given an explicit one.
func DefaultLogger() Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = newSpoorLogger()
	})
	return defaultLogger
}

// noopLogger discards everything; used by tests that don't want log
// noise but still need a non-nil Logger.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// NoopLogger returns a Logger that discards all output.
func NoopLogger() Logger { return noopLogger{} }
