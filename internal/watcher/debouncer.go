package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events per path. Each path gets its own
// deferred timer; a new event for the same path cancels and reschedules it,
// so the event fires only after the window passes with no further activity.
// Events for the same path merge according to these rules:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan Event
	stopped bool
}

type pendingEvent struct {
	event   Event
	firstOp Operation
	timer   *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan Event, 64),
	}
}

// Add schedules an event for debounced delivery, coalescing with any
// pending event for the same path and resetting that path's timer.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	if existing, ok := d.pending[path]; ok {
		coalesced := coalesce(existing, event)
		if coalesced == nil {
			existing.timer.Stop()
			delete(d.pending, path)
			return
		}
		existing.event = *coalesced
		existing.timer.Reset(d.window)
		return
	}

	pe := &pendingEvent{event: event, firstOp: event.Operation}
	pe.timer = time.AfterFunc(d.window, func() { d.fire(path) })
	d.pending[path] = pe
}

// fire delivers the pending event for one path.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	pe, ok := d.pending[path]
	if ok {
		delete(d.pending, path)
	}
	stopped := d.stopped
	d.mu.Unlock()

	if !ok || stopped {
		return
	}

	select {
	case d.output <- pe.event:
	default:
		slog.Warn("debouncer_output_full",
			slog.String("path", pe.event.Path))
	}
}

// Output returns the channel of debounced events.
func (d *Debouncer) Output() <-chan Event {
	return d.output
}

// Stop cancels pending timers and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true

	for path, pe := range d.pending {
		pe.timer.Stop()
		delete(d.pending, path)
	}
	close(d.output)
}

// coalesce merges a new event into the pending one.
// Returns nil if the events cancel each other out.
func coalesce(existing *pendingEvent, next Event) *Event {
	switch existing.firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			// CREATE + MODIFY = CREATE (keep original)
			return &existing.event
		case OpDelete:
			// CREATE + DELETE = nothing
			return nil
		default:
			return &next
		}

	case OpModify:
		// MODIFY + anything = latest wins
		return &next

	case OpDelete:
		if next.Operation == OpCreate {
			// DELETE + CREATE = MODIFY (file was replaced)
			result := next
			result.Operation = OpModify
			return &result
		}
		return &next

	default:
		return &next
	}
}
