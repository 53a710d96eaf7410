package main

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestClickGuard(t *testing.T) {
	clk := clock.NewMock()
	cg := &clickGuard{clock: clk}

	if !cg.Click() {
		t.Error("First click event must be treated as click")
	}
	if !cg.Click() {
		t.Error("Second click event must be treated as click")
	}

	cg.DragStart()
	if !cg.Click() {
		t.Error("Click during drag must be treated as click")
	}
	cg.DragEnd()
	if !cg.Click() {
		t.Error("Click right after dragging without move must be treated as click")
	}

	cg.DragStart()
	cg.Move()
	if cg.Click() {
		t.Error("Click during drag must not be treated as click")
	}
	cg.DragEnd()
	if cg.Click() {
		t.Error("Click right after dragging must not be treated as click")
	}

	clk.Add(clickGuardDuration + time.Millisecond)
	if !cg.Click() {
		t.Error("Click after guard duration must be treated as click")
	}
}

func TestClickGuard_DoubleClick(t *testing.T) {
	testCases := map[string]struct {
		interval time.Duration
		drag     bool
		expected bool
	}{
		"Fast":      {interval: 200 * time.Millisecond, expected: true},
		"Slow":      {interval: 400 * time.Millisecond, expected: false},
		"AfterDrag": {interval: 50 * time.Millisecond, drag: true, expected: false},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			clk := clock.NewMock()
			cg := &clickGuard{clock: clk}

			if cg.DoubleClick() {
				t.Fatal("First click must not be treated as double click")
			}
			if tt.drag {
				cg.DragStart()
				cg.Move()
				cg.DragEnd()
			}
			clk.Add(tt.interval)
			if got := cg.DoubleClick(); got != tt.expected {
				t.Errorf("Expected: %v, got: %v", tt.expected, got)
			}
		})
	}

	t.Run("Triple", func(t *testing.T) {
		clk := clock.NewMock()
		cg := &clickGuard{clock: clk}
		cg.DoubleClick()
		clk.Add(100 * time.Millisecond)
		if !cg.DoubleClick() {
			t.Fatal("Second click must complete double click")
		}
		clk.Add(100 * time.Millisecond)
		if cg.DoubleClick() {
			t.Error("Third click must start a new sequence")
		}
	})
}
