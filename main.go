//go:build !js

package main

import (
	"fmt"
	"os"
)

// The viewer only runs in the browser; build with GOOS=js GOARCH=wasm.
func main() {
	fmt.Fprintln(os.Stderr, "splatview viewer must be built with GOOS=js GOARCH=wasm")
	os.Exit(1)
}
