// Package eventbus is the mutation event broadcaster spec §4.8
// describes: user-visible commits through the sync-aware or raw store
// surface (local edits, pulled records, first-load pages, conflict and
// missing-record resolutions) publish a {table, kind} event to
// interested subscribers. The raw write that stamps a pushed add's
// remote id and updated_at onto its row (changelog.Log.Ack) publishes
// no event.
//
// Grounded on the teacher's use of Bubble Tea tea.Msg values
// (internal/version/checker.go's UpdateAvailableMsg) as the event
// payload shape: tea.Msg is `interface{}`, so MutationEvent satisfies it
// with no extra method, letting the reference TUI in cmd/dyncctl feed
// bus events straight into a Bubble Tea program's Update loop.
package eventbus

import "sync"

// Kind discriminates the mutation that produced an event.
type Kind string

const (
	Added   Kind = "added"
	Updated Kind = "updated"
	Removed Kind = "removed"
)

// MutationEvent is published after every committed store mutation (spec
// §4.8). It satisfies Bubble Tea's tea.Msg (an empty interface) without
// importing bubbletea here, keeping this package dependency-free.
type MutationEvent struct {
	Table   string
	LocalID string
	Kind    Kind
}

// Handler receives published events. Per spec §4.8, handlers run
// synchronously in the publisher's goroutine and must not mutate the
// store.
type Handler func(MutationEvent)

// Unsubscribe detaches a previously registered handler. Calling it more
// than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id     uint64
	table  string // empty matches every table
	handle Handler
}

// Bus is the engine-owned broadcaster. The zero value is an empty Bus,
// the same as New returns.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

// New returns an empty Bus.
func New() *Bus { return &Bus{} }

// Subscribe registers handler for events on table, or every table if
// table is empty. The returned Unsubscribe removes the registration;
// calling it leaks nothing even if invoked after the Bus itself is
// discarded.
func (b *Bus) Subscribe(table string, handler Handler) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, table: table, handle: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers event to every subscriber whose table filter matches,
// synchronously, in registration order. Per spec §4.8, mutation events
// are delivered in commit order: callers publish once per committed
// mutation, in the order those mutations committed.
func (b *Bus) Publish(event MutationEvent) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s.table == "" || s.table == event.Table {
			s.handle(event)
		}
	}
}
