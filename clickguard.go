package main

import (
	"time"

	"github.com/benbjohnson/clock"
)

const (
	clickGuardDuration  = 100 * time.Millisecond
	doubleClickInterval = 300 * time.Millisecond
)

// clickGuard suppresses the click event the browser fires at the end of a
// drag and detects double clicks among the remaining ones.
type clickGuard struct {
	clock clock.Clock

	deadline  time.Time
	moved     bool
	lastClick time.Time
}

func (c *clickGuard) now() time.Time {
	if c.clock == nil {
		c.clock = clock.New()
	}
	return c.clock.Now()
}

func (c *clickGuard) Move() {
	c.moved = true
}

func (c *clickGuard) DragStart() {
	c.moved = false
}

func (c *clickGuard) DragEnd() {
	c.deadline = c.now().Add(clickGuardDuration)
}

func (c *clickGuard) Click() bool {
	return c.deadline.IsZero() || !c.moved || c.deadline.Before(c.now())
}

// DoubleClick registers a click and reports whether it completes a double
// click. Clicks swallowed by the guard reset the sequence.
func (c *clickGuard) DoubleClick() bool {
	if !c.Click() {
		c.lastClick = time.Time{}
		return false
	}
	now := c.now()
	if !c.lastClick.IsZero() && now.Sub(c.lastClick) <= doubleClickInterval {
		c.lastClick = time.Time{}
		return true
	}
	c.lastClick = now
	return false
}
