package monitoring

import (
	"sync"
)

// Sink receives user-facing diagnostics such as "No data loaded" from the
// pipeline. Implementations must be safe for use from the goroutine running
// the pipeline.
type Sink interface {
	Report(msg string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg string)

// Report calls f(msg).
func (f SinkFunc) Report(msg string) { f(msg) }

// LogSink reports through Logf.
type LogSink struct {
	Prefix string
}

// Report logs msg.
func (s LogSink) Report(msg string) {
	Logf("%s%s", s.Prefix, msg)
}

// Discard drops every message.
var Discard Sink = SinkFunc(func(string) {})

// Recorder keeps every reported message in order.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
}

// Report appends msg.
func (r *Recorder) Report(msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}
