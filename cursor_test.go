package main

import (
	"testing"
)

func TestCursorFor(t *testing.T) {
	testCases := map[string]struct {
		state    state
		mode     gestureMode
		expected cursor
	}{
		"Idle":     {state: stateIdle, expected: cursorDefault},
		"Loading":  {state: stateLoading, expected: cursorProgress},
		"Error":    {state: stateLoadError, expected: cursorNotAllowed},
		"Ready":    {state: stateReady, expected: cursorGrab},
		"Rotating": {state: stateReady, mode: gestureRotate, expected: cursorGrabbing},
		"Pinching": {state: stateLoading, mode: gesturePinch, expected: cursorGrabbing},
		"Panning":  {state: stateReady, mode: gesturePan, expected: cursorMove},
		"Disposed": {state: stateDisposed, expected: cursorDefault},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			if c := cursorFor(tt.state, tt.mode); c != tt.expected {
				t.Errorf("Expected: %s, got: %s", tt.expected, c)
			}
		})
	}
}
