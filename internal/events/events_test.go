package events

import (
	"sync"
	"testing"
)

func TestCollectorPollDrainsBoth(t *testing.T) {
	c := NewCollector()
	c.HandleContact(ContactEvent{Kind: ContactStarted, Collider1: 1, Collider2: 2})
	c.HandleContact(ContactEvent{Kind: ContactStopped, Collider1: 1, Collider2: 2})
	c.HandleProximity(ProximityEvent{Collider1: 3, Collider2: 4, Prev: Disjoint, New: Intersecting})

	batch := c.Poll()
	if len(batch.Contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(batch.Contacts))
	}
	if batch.Contacts[0].Kind != ContactStarted || batch.Contacts[1].Kind != ContactStopped {
		t.Errorf("contact order not preserved: %v", batch.Contacts)
	}
	if len(batch.Proximities) != 1 {
		t.Fatalf("expected 1 proximity, got %d", len(batch.Proximities))
	}

	after := c.Poll()
	if !after.Empty() {
		t.Errorf("expected empty poll after drain, got %+v", after)
	}
	if nc, np := c.Pending(); nc != 0 || np != 0 {
		t.Errorf("pending after drain: %d %d", nc, np)
	}
}

func TestCollectorViewDoesNotConsume(t *testing.T) {
	c := NewCollector()
	c.HandleContact(ContactEvent{Collider1: 1, Collider2: 2})

	v := c.View()
	if v.NumContacts() != 1 {
		t.Fatalf("expected 1 contact in view, got %d", v.NumContacts())
	}
	if nc, _ := c.Pending(); nc != 1 {
		t.Errorf("view consumed events, %d pending", nc)
	}

	c.HandleContact(ContactEvent{Collider1: 5, Collider2: 6})
	if v.NumContacts() != 1 {
		t.Error("view aliased the live queue")
	}
}

func TestViewIterators(t *testing.T) {
	v := NewView(
		[]ContactEvent{{Collider1: 1}, {Collider1: 2}, {Collider1: 3}},
		[]ProximityEvent{{Collider1: 9}},
	)

	var seen []uint32
	for e := range v.Contacts {
		seen = append(seen, uint32(e.Collider1))
		if e.Collider1 == 2 {
			break
		}
	}
	if len(seen) != 2 {
		t.Errorf("expected early stop after 2, got %v", seen)
	}

	n := 0
	for range v.Proximities {
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 proximity, got %d", n)
	}
}

func TestCollectorConcurrentProducers(t *testing.T) {
	c := NewCollector()
	const producers, each = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				c.HandleContact(ContactEvent{})
				c.HandleProximity(ProximityEvent{})
			}
		}()
	}
	wg.Wait()

	batch := c.Poll()
	if len(batch.Contacts) != producers*each || len(batch.Proximities) != producers*each {
		t.Errorf("lost events: %d contacts, %d proximities", len(batch.Contacts), len(batch.Proximities))
	}
}
