package activity

import (
	"context"
	"sync"
)

// Recorder is a Hook that keeps every event in memory. The CLI uses it to
// log a command's milestones; tests use it for assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// FailWith makes subsequent Notify calls return err after recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// Events returns a copy of what has been recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Verbs lists the recorded verbs in emission order.
func (r *Recorder) Verbs() []string {
	events := r.Events()
	verbs := make([]string, len(events))
	for i, event := range events {
		verbs[i] = event.Verb
	}
	return verbs
}
