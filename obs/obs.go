// Copyright 2026 The Pazz Network Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package obs provides small publish/subscribe primitives used to expose
// reactive state to consumers such as a UI layer.
//
// Two flavors exist: Value retains its most recent value and replays it to
// every new subscriber, Stream delivers only values published after
// subscribing.
package obs

import "sync"

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Value holds a current value of type T and notifies subscribers whenever it
// is replaced.
// A new subscriber is immediately called with the current value.
type Value[T any] struct {
	mu   sync.Mutex
	v    T
	subs []subscriber[T]
	next uint64
}

// NewValue returns a Value initialized to v.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

// Set replaces the current value and notifies all subscribers in
// subscription order.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	o.v = v
	subs := make([]subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn and calls it once with the current value.
// The returned function cancels the subscription; calling it more than once
// has no effect.
//
// The replay runs outside the lock: a Set racing with Subscribe may deliver
// the newer value before the replay delivers the older one. Callers on the
// session's single dispatch goroutine never observe this; concurrent
// subscribers must treat the replayed value as a starting point, not the
// latest.
func (o *Value[T]) Subscribe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs = append(o.subs, subscriber[T]{id: id, fn: fn})
	v := o.v
	o.mu.Unlock()

	fn(v)
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i], o.subs[i+1:]...)
				return
			}
		}
	}
}

// Stream broadcasts published values to all current subscribers.
// Unlike Value it retains nothing: values published before a subscription are
// never seen by that subscriber.
type Stream[T any] struct {
	mu   sync.Mutex
	subs []subscriber[T]
	next uint64
}

// NewStream returns an empty stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{}
}

// Publish delivers v to all subscribers in subscription order.
func (o *Stream[T]) Publish(v T) {
	o.mu.Lock()
	subs := make([]subscriber[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn to be called for every subsequently published value.
// The returned function cancels the subscription.
func (o *Stream[T]) Subscribe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.next
	o.next++
	o.subs = append(o.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i], o.subs[i+1:]...)
				return
			}
		}
	}
}
