package store

import (
	"context"

	"github.com/roach88/listsync/internal/item"
)

// subscriberBuffer is how many undelivered events a subscriber may lag
// behind before it is disconnected.
const subscriberBuffer = 256

type subscription struct {
	listID string
	ch     chan item.Event
}

// subscribers fans published events out to live subscriptions. Callers
// hold the owning backend's mutex.
type subscribers struct {
	next int
	m    map[int]*subscription
}

func (s *subscribers) add(listID string) (int, <-chan item.Event) {
	if s.m == nil {
		s.m = make(map[int]*subscription)
	}
	s.next++
	sub := &subscription{listID: listID, ch: make(chan item.Event, subscriberBuffer)}
	s.m[s.next] = sub
	return s.next, sub.ch
}

func (s *subscribers) remove(id int) {
	if sub, ok := s.m[id]; ok {
		close(sub.ch)
		delete(s.m, id)
	}
}

// publish delivers ev without blocking. A subscriber whose buffer is full
// is closed, which tells it to reconnect and resume from the event log.
func (s *subscribers) publish(ev item.Event) {
	for id, sub := range s.m {
		if sub.listID != ev.ListID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			s.remove(id)
		}
	}
}

func (s *subscribers) closeAll() {
	for id := range s.m {
		s.remove(id)
	}
}

// watch removes the subscription once ctx ends.
func watch(ctx context.Context, lock func(), unlock func(), subs *subscribers, id int) {
	go func() {
		<-ctx.Done()
		lock()
		defer unlock()
		subs.remove(id)
	}()
}
