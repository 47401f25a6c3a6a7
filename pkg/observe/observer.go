// Package observe defines the sink that pipeline components report
// validation outcomes to. Components receive an Observer explicitly; nothing
// reads process-wide logging state.
package observe

import "sync"

// Observer receives informational and warning messages.
// Implementations must not affect control flow.
type Observer interface {
	// Info records an informational message with key-value pairs.
	Info(msg string, keyvals ...interface{})

	// Warn records a non-fatal warning with key-value pairs.
	Warn(msg string, keyvals ...interface{})
}

// Warning kinds attached under the "warning" key.
const (
	// WarningEmptyResult flags a log with zero events.
	WarningEmptyResult = "EmptyResultWarning"

	// WarningShortCases flags cases with fewer than two events.
	WarningShortCases = "ShortCaseWarning"
)

// Nop discards all messages.
type Nop struct{}

// Info does nothing.
func (Nop) Info(string, ...interface{}) {}

// Warn does nothing.
func (Nop) Warn(string, ...interface{}) {}

// Message is one recorded observation.
type Message struct {
	Level   string
	Text    string
	KeyVals []interface{}
}

// Value returns the value recorded under key, if any.
func (m Message) Value(key string) (interface{}, bool) {
	for i := 0; i+1 < len(m.KeyVals); i += 2 {
		if k, ok := m.KeyVals[i].(string); ok && k == key {
			return m.KeyVals[i+1], true
		}
	}
	return nil, false
}

// Recorder keeps every message in memory. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Info records an informational message.
func (r *Recorder) Info(msg string, keyvals ...interface{}) {
	r.record("info", msg, keyvals)
}

// Warn records a warning.
func (r *Recorder) Warn(msg string, keyvals ...interface{}) {
	r.record("warn", msg, keyvals)
}

func (r *Recorder) record(level, msg string, keyvals []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: msg, KeyVals: keyvals})
}

// Messages returns a copy of everything recorded.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Warnings returns the recorded warnings carrying the given kind.
func (r *Recorder) Warnings(kind string) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Level != "warn" {
			continue
		}
		if v, ok := m.Value("warning"); ok && v == kind {
			out = append(out, m)
		}
	}
	return out
}

// Verify interface compliance.
var (
	_ Observer = Nop{}
	_ Observer = (*Recorder)(nil)
)
