// Package telemetry is the leveled logger shared by the orchestrator and
// the tool executor. Entries always go to the console when logging is on;
// entries carrying a userId are also persisted when a store is configured.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// lower is the level used to report a failure of a sink.
func (l Level) lower() Level {
	if l == LevelDebug {
		return LevelDebug
	}
	return l - 1
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

type Fields map[string]any

// Entry is one log record as handed to a Store.
type Entry struct {
	Level     Level
	Message   string
	Context   map[string]any
	Timestamp time.Time
}

// UserID returns the entry's userId context value, if any.
func (e Entry) UserID() string {
	s, _ := e.Context["userId"].(string)
	return s
}

func (e Entry) ConversationID() string {
	s, _ := e.Context["conversationId"].(string)
	return s
}

// Store persists entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
}

type Options struct {
	Enabled bool
	// Persist sends entries with a userId to the Store.
	Persist bool
	// Verbose records full message payloads and tool inputs/outputs.
	Verbose bool
	Level   Level
	Console io.Writer
	Pretty  bool
	Service string
}

const storeTimeout = 2 * time.Second

type Logger struct {
	opts    Options
	console zerolog.Logger
	store   Store
	now     func() time.Time
}

// New builds a logger. store may be nil, in which case nothing is persisted.
func New(opts Options, store Store) *Logger {
	w := opts.Console
	if w == nil {
		w = os.Stderr
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	zl := zerolog.New(w).Level(opts.Level.zerolog()).With().Timestamp()
	if opts.Service != "" {
		zl = zl.Str("service", opts.Service)
	}
	return &Logger{opts: opts, console: zl.Logger(), store: store, now: time.Now}
}

// Nop returns a logger that drops everything.
func Nop() *Logger {
	return New(Options{Console: io.Discard}, nil)
}

func (l *Logger) Verbose() bool { return l.opts.Enabled && l.opts.Verbose }

func (l *Logger) Debug(ctx context.Context, msg string, f Fields) { l.Log(ctx, LevelDebug, msg, f) }
func (l *Logger) Info(ctx context.Context, msg string, f Fields)  { l.Log(ctx, LevelInfo, msg, f) }
func (l *Logger) Warn(ctx context.Context, msg string, f Fields)  { l.Log(ctx, LevelWarning, msg, f) }
func (l *Logger) Error(ctx context.Context, msg string, f Fields) { l.Log(ctx, LevelError, msg, f) }

// Log writes one entry. It never fails; sink errors are reported to the
// console one level below the original entry.
func (l *Logger) Log(ctx context.Context, level Level, msg string, f Fields) {
	if !l.opts.Enabled || level < l.opts.Level {
		return
	}
	e := Entry{Level: level, Message: msg, Context: SanitizeFields(f), Timestamp: l.now()}
	l.writeConsole(e)

	if l.opts.Persist && l.store != nil && e.UserID() != "" {
		l.persist(ctx, e)
	}
}

func (l *Logger) writeConsole(e Entry) {
	defer func() {
		// console failures are swallowed
		_ = recover()
	}()
	ev := l.console.WithLevel(e.Level.zerolog())
	for _, k := range sortedKeys(e.Context) {
		ev = ev.Interface(k, e.Context[k])
	}
	ev.Msg(e.Message)
}

func (l *Logger) persist(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("log store panic: %v", r)
			}
		}()
		return l.store.Insert(ctx, e)
	}()
	if err == nil {
		return
	}
	level := e.Level.lower()
	if level < l.opts.Level {
		return
	}
	l.writeConsole(Entry{
		Level:     level,
		Message:   "telemetry: persisting log entry failed",
		Context:   map[string]any{"error": err.Error(), "entryMessage": e.Message},
		Timestamp: l.now(),
	})
}
