// Package store holds the observable values a session is made of.
package store

import "sync"

// Subscription identifies a registered listener.
type Subscription uint64

type listener[T any] struct {
	id Subscription
	fn func(T)
}

// Value is an observable cell. Set replaces the value and then calls every
// listener in subscription order, on the calling goroutine, after the
// internal lock has been released. Listeners must not call Set on the value
// that is notifying them.
type Value[T any] struct {
	mu        sync.Mutex
	v         T
	quiet     bool
	nextID    Subscription
	listeners []listener[T]
}

// NewValue returns a Value holding v.
func NewValue[T any](v T) *Value[T] {
	return &Value[T]{v: v}
}

// Get returns the current value.
func (c *Value[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Set replaces the value and notifies listeners unless the value is quiet.
func (c *Value[T]) Set(v T) {
	c.mu.Lock()
	c.v = v
	var ls []listener[T]
	if !c.quiet {
		ls = make([]listener[T], len(c.listeners))
		copy(ls, c.listeners)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l.fn(v)
	}
}

// SetSilently replaces the value without notifying anyone.
func (c *Value[T]) SetSilently(v T) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Notify calls every listener with the current value, as if it had just
// been set.
func (c *Value[T]) Notify() {
	c.Set(c.Get())
}

// Subscribe registers fn and returns a handle for Unsubscribe.
func (c *Value[T]) Subscribe(fn func(T)) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners = append(c.listeners, listener[T]{id: c.nextID, fn: fn})
	return c.nextID
}

// Unsubscribe removes a listener. It reports whether the listener was
// registered.
func (c *Value[T]) Unsubscribe(id Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// SetQuiet suppresses (true) or restores (false) notifications.
func (c *Value[T]) SetQuiet(quiet bool) {
	c.mu.Lock()
	c.quiet = quiet
	c.mu.Unlock()
}

// Quiet reports whether notifications are suppressed.
func (c *Value[T]) Quiet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quiet
}

// Listeners returns the number of registered listeners.
func (c *Value[T]) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}
