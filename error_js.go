package main

import (
	"errors"
	"fmt"
	"syscall/js"
)

var errContextLostEvent = errors.New("received context lost event")

func errorToJS(err error) js.Value {
	return js.Global().Get("Error").New(err.Error())
}

// jsPanicError converts a value recovered from a failed JS call.
func jsPanicError(rec interface{}) error {
	if jsErr, ok := rec.(js.Error); ok {
		return jsErr
	}
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("javascript call panicked: %v", rec)
}
