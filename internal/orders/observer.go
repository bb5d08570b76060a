package orders

import (
	"github.com/vaidashi/restaurant-pos/internal/models"
)

// EventKind says why an order changed
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventStatus   EventKind = "status"
	EventRollback EventKind = "rollback"
	EventRemote   EventKind = "remote"
)

// Event is delivered to observers after the store changed. Order is a copy.
type Event struct {
	Kind  EventKind     `json:"kind"`
	Order *models.Order `json:"order"`
}

// Observer receives store events. It is called outside the store lock and must not block.
type Observer func(Event)

// Subscribe registers fn and returns a function that removes it
func (s *Store) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(kind EventKind, order *models.Order) {
	s.obsMu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range observers {
		fn(Event{Kind: kind, Order: order.Clone()})
	}
}
