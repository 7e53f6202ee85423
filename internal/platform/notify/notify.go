// Package notify provides Notifier implementations for environments without
// a UI toast layer.
package notify

import (
	"log/slog"
	"sync"
)

// Notifier surfaces user-facing success, warning and error messages.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

// Log routes notifications to a structured logger.
type Log struct {
	log *slog.Logger
}

// NewLog returns a notifier that writes to log.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With(slog.String("component", "notify"))}
}

func (n *Log) Success(msg string) { n.log.Info(msg, slog.Bool("success", true)) }
func (n *Log) Warning(msg string) { n.log.Warn(msg) }
func (n *Log) Error(msg string)   { n.log.Error(msg) }

// Message is one recorded notification.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Recorder keeps the most recent notifications in memory so the local API
// can hand them to a browser front end, and forwards each one to next.
type Recorder struct {
	mu       sync.Mutex
	limit    int
	messages []Message
	next     Notifier
}

// NewRecorder keeps at most limit messages (50 if limit <= 0). next may be nil.
func NewRecorder(limit int, next Notifier) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit, next: next}
}

func (r *Recorder) Success(msg string) {
	r.add("success", msg)
	if r.next != nil {
		r.next.Success(msg)
	}
}

func (r *Recorder) Warning(msg string) {
	r.add("warning", msg)
	if r.next != nil {
		r.next.Warning(msg)
	}
}

func (r *Recorder) Error(msg string) {
	r.add("error", msg)
	if r.next != nil {
		r.next.Error(msg)
	}
}

// Messages returns a copy of the recorded messages, oldest first.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

func (r *Recorder) add(level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: text})
	if len(r.messages) > r.limit {
		r.messages = r.messages[len(r.messages)-r.limit:]
	}
}
