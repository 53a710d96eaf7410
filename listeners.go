package main

import (
	"sync"
	"sync/atomic"
)

// listeners tracks the page input listeners of the viewer. Listeners that
// can be removed register a remover; the rest must check attached before
// forwarding an event.
type listeners struct {
	detached atomic.Bool

	mu       sync.Mutex
	removers []func()
}

func (l *listeners) attached() bool {
	return !l.detached.Load()
}

// add registers remove to run on detach. It runs immediately when the
// listeners are already detached.
func (l *listeners) add(remove func()) {
	l.mu.Lock()
	if l.detached.Load() {
		l.mu.Unlock()
		remove()
		return
	}
	l.removers = append(l.removers, remove)
	l.mu.Unlock()
}

// detach runs the removers once. Later calls do nothing.
func (l *listeners) detach() {
	l.mu.Lock()
	if l.detached.Swap(true) {
		l.mu.Unlock()
		return
	}
	rs := l.removers
	l.removers = nil
	l.mu.Unlock()

	for i := len(rs) - 1; i >= 0; i-- {
		rs[i]()
	}
}
