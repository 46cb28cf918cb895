package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectOne(t *testing.T, d *Debouncer, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-d.Output():
		return ev
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced event")
		return Event{}
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(Event{Path: "characters/a.md", Operation: OpCreate, Timestamp: time.Now()})

	// Then: the event passes through after the debounce window
	ev := collectOne(t, d, 500*time.Millisecond)
	assert.Equal(t, "characters/a.md", ev.Path)
	assert.Equal(t, OpCreate, ev.Operation)
}

func TestDebouncer_BurstForSamePath_CoalescesToOne(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	// When: a save burst produces several modify events
	for i := 0; i < 5; i++ {
		d.Add(Event{Path: "a.md", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	// Then: exactly one event comes out
	ev := collectOne(t, d, time.Second)
	assert.Equal(t, OpModify, ev.Operation)

	select {
	case extra := <-d.Output():
		t.Fatalf("unexpected second event: %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncer_DistinctPathsDebounceIndependently(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(Event{Path: "a.md", Operation: OpModify, Timestamp: time.Now()})
	d.Add(Event{Path: "b.md", Operation: OpModify, Timestamp: time.Now()})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := collectOne(t, d, time.Second)
		seen[ev.Path] = true
	}
	assert.True(t, seen["a.md"])
	assert.True(t, seen["b.md"])
}

func TestDebouncer_CoalescingRules(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want *Operation
	}{
		{"create then modify keeps create", []Operation{OpCreate, OpModify}, opPtr(OpCreate)},
		{"create then delete cancels", []Operation{OpCreate, OpDelete}, nil},
		{"modify then delete keeps delete", []Operation{OpModify, OpDelete}, opPtr(OpDelete)},
		{"delete then create becomes modify (atomic rename)", []Operation{OpDelete, OpCreate}, opPtr(OpModify)},
		{"modify then modify keeps modify", []Operation{OpModify, OpModify}, opPtr(OpModify)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(40 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(Event{Path: "x.md", Operation: op, Timestamp: time.Now()})
			}

			if tt.want == nil {
				select {
				case ev := <-d.Output():
					t.Fatalf("expected no event, got %+v", ev)
				case <-time.After(150 * time.Millisecond):
				}
				return
			}

			ev := collectOne(t, d, time.Second)
			assert.Equal(t, *tt.want, ev.Operation)
		})
	}
}

func TestDebouncer_TimerResetsOnNewEvent(t *testing.T) {
	// Given: a window of 100ms
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// When: events keep arriving every 50ms for 300ms
	start := time.Now()
	for i := 0; i < 6; i++ {
		d.Add(Event{Path: "x.md", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(50 * time.Millisecond)
	}

	// Then: the event arrives only after the burst quiets down
	ev := collectOne(t, d, time.Second)
	require.Equal(t, OpModify, ev.Operation)
	assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond,
		"dispatch waits for a quiet window")
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	d.Add(Event{Path: "x.md", Operation: OpModify, Timestamp: time.Now()})
	d.Stop()
	d.Stop()

	// Adding after stop is a no-op, not a panic.
	d.Add(Event{Path: "y.md", Operation: OpCreate, Timestamp: time.Now()})
}

func opPtr(op Operation) *Operation { return &op }
