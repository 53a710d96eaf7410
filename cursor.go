package main

type cursor string

const (
	cursorDefault    cursor = "default"
	cursorGrab       cursor = "grab"
	cursorGrabbing   cursor = "grabbing"
	cursorMove       cursor = "move"
	cursorProgress   cursor = "progress"
	cursorNotAllowed cursor = "not-allowed"
)

func cursorFor(s state, mode gestureMode) cursor {
	switch mode {
	case gestureRotate, gesturePinch:
		return cursorGrabbing
	case gesturePan:
		return cursorMove
	}
	switch s {
	case stateLoading:
		return cursorProgress
	case stateLoadError:
		return cursorNotAllowed
	case stateReady:
		return cursorGrab
	default:
		return cursorDefault
	}
}
