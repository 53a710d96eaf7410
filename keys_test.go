package main

import (
	"testing"
)

func TestFlyKeys(t *testing.T) {
	testCases := map[string]struct {
		keys               []string
		forward, right, up float32
	}{
		"Forward":    {keys: []string{"KeyW"}, forward: 1},
		"Arrows":     {keys: []string{"ArrowDown", "ArrowLeft"}, forward: -1, right: -1},
		"Diagonal":   {keys: []string{"KeyW", "KeyD", "KeyE"}, forward: 1, right: 1, up: 1},
		"Opposite":   {keys: []string{"KeyW", "KeyS"}},
		"Duplicated": {keys: []string{"KeyW", "ArrowUp"}, forward: 1},
		"Down":       {keys: []string{"KeyQ"}, up: -1},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			k := flyKeys{}
			for _, code := range tt.keys {
				if !k.press(code) {
					t.Fatalf("%s must be a fly key", code)
				}
			}
			if !k.active() {
				t.Error("Keys must be active")
			}
			f, r, u := k.direction()
			if f != tt.forward || r != tt.right || u != tt.up {
				t.Errorf("Expected: (%f, %f, %f), got: (%f, %f, %f)", tt.forward, tt.right, tt.up, f, r, u)
			}
			for _, code := range tt.keys {
				k.release(code)
			}
			if k.active() {
				t.Error("Keys must be inactive after release")
			}
		})
	}
}

func TestFlyKeys_Ignored(t *testing.T) {
	k := flyKeys{}
	if k.press("KeyZ") {
		t.Error("KeyZ must not be a fly key")
	}
	if k.active() {
		t.Error("Ignored key must not activate")
	}
	k.press("KeyA")
	k.releaseAll()
	if k.active() {
		t.Error("releaseAll must clear held keys")
	}
}
