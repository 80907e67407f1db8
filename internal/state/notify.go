package state

import "sync"

// Observers is a set of change callbacks. The zero value is ready to use.
// Callbacks are invoked synchronously in subscription order.
type Observers[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(T)
	order  []int
}

// Subscribe registers fn and returns a function that removes it.
func (o *Observers[T]) Subscribe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]func(T))
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.order = append(o.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			for i, v := range o.order {
				if v == id {
					o.order = append(o.order[:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Notify calls every subscriber with v.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	fns := make([]func(T), 0, len(o.order))
	for _, id := range o.order {
		fns = append(fns, o.subs[id])
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
