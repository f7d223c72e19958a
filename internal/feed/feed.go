// Package feed provides a minimal latest-wins publish/subscribe topic.
//
// Every derived value in the application (transaction lists, category
// lists, dashboard summaries, error slots) is republished on a Topic
// whenever its inputs change. Subscribers that fall behind only ever see
// the most recent value: each subscription buffers exactly one pending
// value and a newer publish replaces an unread older one.
package feed

import "sync"

type Topic[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
	last T
	set  bool
}

func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a consumer. The returned channel immediately
// carries the last published value, if any. The cancel function tears
// the subscription down and closes the channel.
func (t *Topic[T]) Subscribe() (<-chan T, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan T, 1)
	id := t.next
	t.next++
	t.subs[id] = ch
	if t.set {
		ch <- t.last
	}

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers v to every subscriber, replacing any value a slow
// subscriber has not read yet.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = v
	t.set = true
	for _, ch := range t.subs {
		select {
		case ch <- v:
		default:
			// Drop the stale pending value, then deliver the new one.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Last returns the most recently published value and whether any value
// has been published at all.
func (t *Topic[T]) Last() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.set
}
