package primeros

import (
	"time"

	"github.com/joeycumines/logiface"
)

// event adapts a LogEntry into a logiface.Event, grounded on the custom
// Event pattern demonstrated by eventloop's own coverage tests
// (coverage_phase2_test.go / coverage_extra_test.go wire a minimal Event
// implementation through a Logger to assert on emitted fields). It only
// implements the subset of optional methods this package's call sites
// actually use; everything else falls through to UnimplementedEvent.
type event struct {
	logiface.UnimplementedEvent
	entry LogEntry
	level logiface.Level
}

func (e *event) Level() logiface.Level { return e.level }

func (e *event) AddField(key string, val any) {
	if e.entry.Context == nil {
		e.entry.Context = make(map[string]interface{}, 4)
	}
	e.entry.Context[key] = val
}

func (e *event) AddMessage(msg string) bool {
	e.entry.Message = msg
	return true
}

func (e *event) AddError(err error) bool {
	e.entry.Err = err
	return true
}

func (e *event) AddInt64(key string, val int64) bool {
	if key == "process" {
		e.entry.ProcessID = val
		return true
	}
	return false
}

// eventFactory and eventWriter implement logiface.EventFactory /
// logiface.Writer; eventWriter delivers to a fixed target Logger (this
// package's own Logger, not logiface's).
type eventFactory struct{ target Logger }

func (f eventFactory) NewEvent(level logiface.Level) *event {
	return &event{level: level, entry: LogEntry{Level: toLogLevel(level), Timestamp: time.Now()}}
}

type eventWriter struct{ target Logger }

func (w eventWriter) Write(e *event) error {
	w.target.Log(e.entry)
	return nil
}

func toLogLevel(l logiface.Level) LogLevel {
	switch {
	case l <= logiface.LevelError:
		return LevelError
	case l <= logiface.LevelWarning:
		return LevelWarn
	case l <= logiface.LevelInformational:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func toLogifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelError:
		return logiface.LevelError
	case LevelWarn:
		return logiface.LevelWarning
	case LevelInfo:
		return logiface.LevelInformational
	default:
		return logiface.LevelDebug
	}
}

// NewLogifaceLogger adapts an existing Logger into a *logiface.Logger[*event],
// so that callers already standardized on logiface elsewhere in a larger
// program (e.g. via logiface-zerolog or logiface-slog) can plug this
// package's kernel events into that same pipeline instead of maintaining two
// independent logging stacks. Events below minLevel are never delivered to
// target.
func NewLogifaceLogger(target Logger, minLevel LogLevel) *logiface.Logger[*event] {
	return logiface.L.New(
		logiface.WithOptions[*event](
			logiface.L.WithLevel[*event](toLogifaceLevel(minLevel)),
		),
		logiface.WithEventFactory[*event](eventFactory{target: target}),
		logiface.WithWriter[*event](eventWriter{target: target}),
	)
}

// logifaceLogger adapts a *logiface.Logger[*event] back into this
// package's Logger interface, so WithLogger can accept either stack
// interchangeably.
type logifaceLogger struct {
	l *logiface.Logger[*event]
}

// WrapLogifaceLogger lets a logiface-based logger serve as a Kernel Logger.
func WrapLogifaceLogger(l *logiface.Logger[*event]) Logger {
	return &logifaceLogger{l: l}
}

func (l *logifaceLogger) IsEnabled(level LogLevel) bool {
	target := toLogifaceLevel(level)
	configured := l.l.Level()
	return configured.Enabled() && (target <= configured || target > logiface.LevelTrace)
}

func (l *logifaceLogger) Log(entry LogEntry) {
	b := l.l.Build(toLogifaceLevel(entry.Level))
	if b == nil {
		return
	}
	if entry.ProcessID != 0 {
		b = b.Int64("process", entry.ProcessID)
	}
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	for k, v := range entry.Context {
		b = b.Any(k, v)
	}
	b.Log(entry.Message)
}
