package events

import (
	"fmt"
	"sync"

	"github.com/san-kum/testbed/internal/world"
)

type ContactKind uint8

const (
	ContactStarted ContactKind = iota
	ContactStopped
)

func (k ContactKind) String() string {
	if k == ContactStopped {
		return "stopped"
	}
	return "started"
}

type ContactEvent struct {
	Kind      ContactKind
	Collider1 world.ColliderID
	Collider2 world.ColliderID
}

func (e ContactEvent) String() string {
	return fmt.Sprintf("contact %s %d-%d", e.Kind, e.Collider1, e.Collider2)
}

type Proximity uint8

const (
	Disjoint Proximity = iota
	Intersecting
)

func (p Proximity) String() string {
	if p == Intersecting {
		return "intersecting"
	}
	return "disjoint"
}

// ProximityEvent reports a sensor overlap transition.
type ProximityEvent struct {
	Collider1 world.ColliderID
	Collider2 world.ColliderID
	Prev      Proximity
	New       Proximity
}

func (e ProximityEvent) String() string {
	return fmt.Sprintf("proximity %d-%d %s->%s", e.Collider1, e.Collider2, e.Prev, e.New)
}

// Handler receives events while a backend advances. Implementations must be
// safe for concurrent use.
type Handler interface {
	HandleContact(ContactEvent)
	HandleProximity(ProximityEvent)
}

// queue is an unbounded multi-producer, single-consumer FIFO.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

func (q *queue[T]) drain() []T {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

func (q *queue[T]) peek() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := make([]T, len(q.items))
	copy(out, q.items)
	return out
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Collector aggregates the contact and proximity events of one step. The
// two channels are independent: each preserves its own order, but no order
// is defined between them.
type Collector struct {
	contacts    queue[ContactEvent]
	proximities queue[ProximityEvent]
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) HandleContact(e ContactEvent)     { c.contacts.push(e) }
func (c *Collector) HandleProximity(e ProximityEvent) { c.proximities.push(e) }

// View copies the pending events without consuming them.
func (c *Collector) View() View {
	return View{contacts: c.contacts.peek(), proximities: c.proximities.peek()}
}

// Poll drains both channels and returns what was pending. It never blocks
// and an empty result is not an error.
func (c *Collector) Poll() Batch {
	return Batch{Contacts: c.contacts.drain(), Proximities: c.proximities.drain()}
}

// Pending reports how many contact and proximity events are queued.
func (c *Collector) Pending() (contacts, proximities int) {
	return c.contacts.len(), c.proximities.len()
}

type Batch struct {
	Contacts    []ContactEvent
	Proximities []ProximityEvent
}

func (b Batch) Empty() bool { return len(b.Contacts) == 0 && len(b.Proximities) == 0 }

// View is a read-only window on one step's events, handed to callbacks.
type View struct {
	contacts    []ContactEvent
	proximities []ProximityEvent
}

func (v View) NumContacts() int    { return len(v.contacts) }
func (v View) NumProximities() int { return len(v.proximities) }

func (v View) Contacts(yield func(ContactEvent) bool) {
	for _, e := range v.contacts {
		if !yield(e) {
			return
		}
	}
}

func (v View) Proximities(yield func(ProximityEvent) bool) {
	for _, e := range v.proximities {
		if !yield(e) {
			return
		}
	}
}

// NewView builds a view over the given events. Used by tests and by
// backends that replay events outside a Collector.
func NewView(contacts []ContactEvent, proximities []ProximityEvent) View {
	return View{contacts: contacts, proximities: proximities}
}
