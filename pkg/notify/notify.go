// Package notify carries transient user notifications (toasts) out of the
// services. Sinks decide whether they are logged, pushed to a client or kept
// for inspection.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/apperr"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one toast.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Notifier receives notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Success sends a success toast.
func Success(n Notifier, message string) {
	if n == nil || message == "" {
		return
	}
	n.Notify(Notification{Level: LevelSuccess, Message: message})
}

// Error sends an error toast built from err. Taxonomy errors contribute their
// user-facing message and code; anything else is shown with fallback.
func Error(n Notifier, err error, fallback string) {
	if n == nil || err == nil {
		return
	}
	note := Notification{Level: LevelError, Message: fallback}
	code := apperr.CodeOf(err)
	if code != apperr.CodeUnknown || note.Message == "" {
		note.Message = apperr.Message(err)
	}
	note.Code = string(code)
	n.Notify(note)
}

// Logger writes notifications to zap. Errors go to the error level, the rest
// to info.
type Logger struct {
	logger *zap.SugaredLogger
}

// NewLogger returns a logging sink. A nil logger discards output.
func NewLogger(logger *zap.SugaredLogger) *Logger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Notify(n Notification) {
	kv := []any{"level", n.Level, "message", n.Message}
	if n.Code != "" {
		kv = append(kv, "code", n.Code)
	}
	if n.Level == LevelError {
		l.logger.Errorw("notification", kv...)
		return
	}
	l.logger.Infow("notification", kv...)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// Count returns how many notifications of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Level == level {
			n++
		}
	}
	return n
}

// Reset drops recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notes = nil
	r.mu.Unlock()
}

// Multi fans a notification out to every sink.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

// Discard drops everything.
var Discard Notifier = NotifierFunc(func(Notification) {})
