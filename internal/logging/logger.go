package logging

import (
	"log"
	"os"
	"reflect"
	"sync"
)

// Logger defines a minimal, printf-style logging contract.
//
// It intentionally matches the agent domain logger interface so code can depend
// on this package without importing internal/agent/ports.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// stdLogger writes leveled, component-scoped lines to stderr.
type stdLogger struct {
	mu        *sync.Mutex
	out       *log.Logger
	component string
}

var (
	rootOnce sync.Once
	rootOut  *log.Logger
	rootMu   sync.Mutex
)

func root() *log.Logger {
	rootOnce.Do(func() {
		rootOut = log.New(os.Stderr, "", log.LstdFlags)
	})
	return rootOut
}

// NewComponentLogger returns the default process logger scoped to component.
func NewComponentLogger(component string) Logger {
	return &stdLogger{mu: &rootMu, out: root(), component: component}
}

func (l *stdLogger) write(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.component != "" {
		l.out.Printf("[%s] [%s] "+format, append([]any{level, l.component}, args...)...)
		return
	}
	l.out.Printf("[%s] "+format, append([]any{level}, args...)...)
}

func (l *stdLogger) Debug(format string, args ...any) { l.write("DEBUG", format, args...) }
func (l *stdLogger) Info(format string, args ...any)  { l.write("INFO", format, args...) }
func (l *stdLogger) Warn(format string, args ...any)  { l.write("WARN", format, args...) }
func (l *stdLogger) Error(format string, args ...any) { l.write("ERROR", format, args...) }

type multiLogger struct {
	loggers []Logger
}

// Multi returns a logger fan-out that calls every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, logger := range loggers {
		if IsNil(logger) {
			continue
		}
		if ml, ok := logger.(*multiLogger); ok {
			flattened = append(flattened, ml.loggers...)
			continue
		}
		flattened = append(flattened, logger)
	}
	if len(flattened) == 0 {
		return Nop()
	}
	if len(flattened) == 1 {
		return flattened[0]
	}
	return &multiLogger{loggers: flattened}
}

func (l *multiLogger) Debug(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Debug(format, args...)
	}
}

func (l *multiLogger) Info(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Info(format, args...)
	}
}

func (l *multiLogger) Warn(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Warn(format, args...)
	}
}

func (l *multiLogger) Error(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Error(format, args...)
	}
}
