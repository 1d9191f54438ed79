// Package rtlog is the structured-logging facade shared by every go-aio
// component. It wraps github.com/joeycumines/logiface, backed directly by
// log/slog, so runtime code depends only on the logiface.Logger[*Event]
// contract and never on a concrete handler.
package rtlog

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

type (
	// Event adapts logiface to an *slog.Logger, mirroring the shape of
	// logiface's other backend adapters (zerolog, logrus): a pooled value
	// embedding logiface.UnimplementedEvent, accumulating slog.Attr values
	// until Write hands them to the handler in one call.
	Event struct {
		//lint:ignore U1000 embedded for its methods
		unimplementedEvent
		lvl   logiface.Level
		msg   string
		attrs []slog.Attr
		err   error
	}

	// Logger implements logiface.EventFactory, logiface.EventReleaser and
	// logiface.Writer, backing them onto a single *slog.Logger.
	Logger struct {
		S *slog.Logger
	}

	// LoggerFactory embeds logiface.LoggerFactory[*Event], aliasing the
	// option constructors declared in this package.
	LoggerFactory struct {
		//lint:ignore U1000 embedded for its methods
		baseLoggerFactory
	}

	//lint:ignore U1000 used to embed without exporting
	unimplementedEvent = logiface.UnimplementedEvent

	//lint:ignore U1000 used to embed without exporting
	baseLoggerFactory = logiface.LoggerFactory[*Event]
)

// L is a LoggerFactory, usable to configure a logiface.Logger[*Event] with
// the option constructors below.
var L = LoggerFactory{}

var eventPool = sync.Pool{New: func() any { return new(Event) }}

// WithSlog configures a logiface logger to write through an *slog.Logger.
func WithSlog(s *slog.Logger) logiface.Option[*Event] {
	l := Logger{S: s}
	return L.WithOptions(
		L.WithWriter(&l),
		L.WithEventFactory(&l),
		L.WithEventReleaser(&l),
	)
}

// WithSlog is an alias of the package function of the same name.
func (LoggerFactory) WithSlog(s *slog.Logger) logiface.Option[*Event] { return WithSlog(s) }

func (x *Event) Level() logiface.Level {
	if x != nil {
		return x.lvl
	}
	return logiface.LevelDisabled
}

func (x *Event) AddField(key string, val any) {
	x.attrs = append(x.attrs, slog.Any(key, val))
}

func (x *Event) AddMessage(msg string) bool {
	x.msg = msg
	return true
}

func (x *Event) AddError(err error) bool {
	x.err = err
	x.attrs = append(x.attrs, slog.Any("error", err))
	return true
}

func (x *Event) AddString(key string, val string) bool {
	x.attrs = append(x.attrs, slog.String(key, val))
	return true
}

func (x *Event) AddInt(key string, val int) bool {
	x.attrs = append(x.attrs, slog.Int(key, val))
	return true
}

func (x *Event) AddInt64(key string, val int64) bool {
	x.attrs = append(x.attrs, slog.Int64(key, val))
	return true
}

func (x *Event) AddUint64(key string, val uint64) bool {
	x.attrs = append(x.attrs, slog.Uint64(key, val))
	return true
}

func (x *Event) AddFloat64(key string, val float64) bool {
	x.attrs = append(x.attrs, slog.Float64(key, val))
	return true
}

func (x *Event) AddBool(key string, val bool) bool {
	x.attrs = append(x.attrs, slog.Bool(key, val))
	return true
}

func (x *Event) AddDuration(key string, val time.Duration) bool {
	x.attrs = append(x.attrs, slog.Duration(key, val))
	return true
}

func (x *Event) AddTime(key string, val time.Time) bool {
	x.attrs = append(x.attrs, slog.Time(key, val))
	return true
}

// NewEvent maps logiface levels onto slog levels, skipping allocation
// entirely when the underlying logger has the level disabled.
func (x *Logger) NewEvent(level logiface.Level) *Event {
	if !x.S.Enabled(context.Background(), slogLevel(level)) {
		return nil
	}
	event := eventPool.Get().(*Event)
	event.lvl = level
	return event
}

func (x *Logger) ReleaseEvent(event *Event) {
	if event != nil {
		*event = Event{}
		eventPool.Put(event)
	}
}

func (x *Logger) Write(event *Event) error {
	x.S.LogAttrs(context.Background(), slogLevel(event.lvl), event.msg, event.attrs...)
	return nil
}

// slogLevel maps a logiface.Level onto the nearest slog.Level, following the
// mapping logiface itself recommends in its Level doc comment.
func slogLevel(level logiface.Level) slog.Level {
	switch {
	case level <= logiface.LevelError:
		return slog.LevelError
	case level <= logiface.LevelWarning:
		return slog.LevelWarn
	case level <= logiface.LevelInformational:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// Std is the type every go-aio component accepts for diagnostics. A nil
// *Std is valid and logs nowhere (Or falls back to Default).
type Std = logiface.Logger[*Event]

var (
	defaultMu     sync.Mutex
	defaultLogger atomic.Pointer[Std]
)

// New builds a Logger writing structured events through handler.
// A nil handler defaults to slog.NewTextHandler(os.Stderr, nil).
func New(handler slog.Handler, level logiface.Level) *Std {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return logiface.New[*Event](
		WithSlog(slog.New(handler)),
		L.WithLevel(level),
	)
}

// SetDefault installs l as the process-wide default, used by Default when a
// component wasn't explicitly configured with a Logger.
func SetDefault(l *Std) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger.Store(l)
}

// Default returns the process-wide default logger, initializing a stderr
// text-handler logger at informational level on first use.
func Default() *Std {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := New(nil, logiface.LevelInformational)
	defaultLogger.Store(l)
	return l
}

// Or returns l if non-nil, otherwise Default(). Components call this at the
// point of use so a nil Logger field never needs a nil check.
func Or(l *Std) *Std {
	if l != nil {
		return l
	}
	return Default()
}

// RaiseVerbosity raises lvl by one logiface level per step (toward Trace),
// saturating at LevelTrace. Used to implement -v/-vv/-vvv/-vvvv from the CLI.
func RaiseVerbosity(lvl logiface.Level, steps int) logiface.Level {
	for i := 0; i < steps && lvl < logiface.LevelTrace; i++ {
		lvl++
	}
	return lvl
}
