// Package notify delivers transient operator notifications, the terminal
// analogue of toast messages.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity of a notification.
type Level int8

const (
	Info Level = iota
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Notification is one message shown to the operator.
type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier surfaces a message to the operator. Implementations must be safe
// for concurrent use and must not block.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// Log writes notifications to a slog.Logger.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a notifier writing to logger (slog.Default when nil).
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With(slog.String("module", "notify"))}
}

func (l *Log) Notify(ctx context.Context, level Level, message string) {
	lvl := slog.LevelInfo
	switch level {
	case Warn:
		lvl = slog.LevelWarn
	case Error:
		lvl = slog.LevelError
	}
	l.logger.Log(ctx, lvl, "notification", slog.String("message", message))
}

// Feed keeps the most recent notifications for display. Entries expire
// after ttl, like a toast.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	size  int
	ttl   time.Duration
	now   func() time.Time
}

// NewFeed creates a feed holding at most size entries.
func NewFeed(size int, ttl time.Duration) *Feed {
	if size <= 0 {
		size = 5
	}
	return &Feed{size: size, ttl: ttl, now: time.Now}
}

func (f *Feed) Notify(_ context.Context, level Level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, Notification{Level: level, Message: message, At: f.now()})
	if len(f.items) > f.size {
		f.items = f.items[len(f.items)-f.size:]
	}
}

// Active returns the unexpired notifications, oldest first.
func (f *Feed) Active() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-f.ttl)
	out := make([]Notification, 0, len(f.items))
	for _, n := range f.items {
		if f.ttl <= 0 || n.At.After(cutoff) {
			out = append(out, n)
		}
	}
	return out
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, level Level, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, level, message)
		}
	}
}

// Recorder keeps every notification. Used in tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(_ context.Context, level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Level: level, Message: message, At: time.Now()})
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Messages returns the recorded messages at level.
func (r *Recorder) Messages(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, n := range r.items {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}
