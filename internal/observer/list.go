// Package observer provides the subscribe/unsubscribe registry shared by
// stores, replicated maps, awareness and the transport provider.
package observer

import (
	"slices"
	"sync"
)

// List is a registry of callbacks. The zero value is ready to use.
type List[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

// Add registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (l *List[T]) Add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}

	id := l.next
	l.next++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.fns, id)
	}
}

// Notify calls every registered function with v, in registration order.
// Callbacks run without the registry lock held and may add or remove entries.
func (l *List[T]) Notify(v T) {
	l.mu.Lock()

	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}

	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered callbacks.
func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.fns)
}
