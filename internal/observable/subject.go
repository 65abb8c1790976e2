package observable

import "sync"

// Observable is the read side of a Subject: a value that always has a current
// state and notifies subscribers whenever it changes.
type Observable[T any] interface {
	Value() T
	Subscribe(buffer int) *Subscription[T]
}

// Subject holds the latest value of T and broadcasts every new value to its
// subscribers. The zero value is not usable, create one with NewSubject.
type Subject[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[*Subscription[T]]struct{}
	closed bool
}

// Subscription receives the values published by a Subject.
type Subscription[T any] struct {
	ch      chan T
	subject *Subject[T]
	once    sync.Once
}

// NewSubject creates a subject seeded with the given initial value
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		value: initial,
		subs:  make(map[*Subscription[T]]struct{}),
	}
}

// Value returns the current value
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Next stores value as the current value and delivers it to every subscriber.
// A subscriber whose buffer is full loses its oldest pending value so that the
// newest one is always delivered.
func (s *Subject[T]) Next(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	if s.closed {
		return
	}
	for sub := range s.subs {
		deliver(sub.ch, value)
	}
}

// Subscribe registers a new subscriber. The returned channel immediately
// receives the current value. Buffers smaller than one are raised to one.
func (s *Subject[T]) Subscribe(buffer int) *Subscription[T] {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription[T]{
		ch:      make(chan T, buffer),
		subject: s,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	s.subs[sub] = struct{}{}
	sub.ch <- s.value
	return sub
}

// SubscriberCount returns the number of active subscriptions
func (s *Subject[T]) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close ends every subscription. Later calls to Next still update the value.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		delete(s.subs, sub)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// C returns the channel values are delivered on. It is closed once the
// subscription ends.
func (sub *Subscription[T]) C() <-chan T {
	return sub.ch
}

// Unsubscribe stops delivery and closes the channel. Safe to call repeatedly.
func (sub *Subscription[T]) Unsubscribe() {
	s := sub.subject
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}

func deliver[T any](ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}
	// Full: drop the oldest pending value
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- value:
	default:
	}
}
