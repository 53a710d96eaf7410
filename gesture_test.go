package main

import (
	"testing"
)

func TestGesture_Rotate(t *testing.T) {
	v, _ := newTestViewer(t, &fakeRenderer{}, nil)
	v.Resize(800, 600)
	g := newGesture(v)

	g.pointerDown(pointer{id: 1, x: 100, y: 100})
	if !g.active() {
		t.Error("Gesture must be active while a pointer is held")
	}
	g.pointerMove(pointer{id: 1, x: 160, y: 100})
	if v.view.dYaw >= 0 {
		t.Errorf("Dragging right must rotate, got: %f", v.view.dYaw)
	}
	g.pointerUp(pointer{id: 1, x: 160, y: 100})
	if g.active() || v.view.dragging {
		t.Error("Drag must end when the pointer is lifted")
	}
}

func TestGesture_PanButton(t *testing.T) {
	testCases := map[string]pointer{
		"RightButton": {id: 1, x: 100, y: 100, button: 2},
		"Shift":       {id: 1, x: 100, y: 100, shift: true},
	}
	for name, p := range testCases {
		p := p
		t.Run(name, func(t *testing.T) {
			v, _ := newTestViewer(t, &fakeRenderer{}, nil)
			v.Resize(800, 600)
			g := newGesture(v)

			g.pointerDown(p)
			p.x += 50
			g.pointerMove(p)
			if v.view.dPan.Norm() == 0 || v.view.dYaw != 0 {
				t.Errorf("Expected pan, got pan: %v, yaw: %f", v.view.dPan, v.view.dYaw)
			}
		})
	}
}

func TestGesture_Pinch(t *testing.T) {
	v, _ := newTestViewer(t, &fakeRenderer{}, nil)
	v.Resize(800, 600)
	g := newGesture(v)
	d0 := v.view.distance

	g.pointerDown(pointer{id: 1, x: 100, y: 100})
	g.pointerDown(pointer{id: 2, x: 200, y: 100})
	if v.view.dragging {
		t.Error("Second pointer must end the rotation")
	}
	g.pointerMove(pointer{id: 2, x: 300, y: 100})
	if v.view.distance >= d0 {
		t.Errorf("Spreading fingers must zoom in, distance: %f -> %f", d0, v.view.distance)
	}
	d1 := v.view.distance
	g.pointerMove(pointer{id: 1, x: 250, y: 100})
	if v.view.distance <= d1 {
		t.Errorf("Pinching fingers must zoom out, distance: %f -> %f", d1, v.view.distance)
	}

	g.pointerUp(pointer{id: 2})
	if !g.active() || g.mode != gestureRotate {
		t.Error("Remaining pointer must continue as rotation")
	}
	g.pointerUp(pointer{id: 1})
	if g.active() {
		t.Error("Gesture must end when every pointer is lifted")
	}
}

func TestGesture_ThreeFingerPan(t *testing.T) {
	v, _ := newTestViewer(t, &fakeRenderer{}, nil)
	v.Resize(800, 600)
	g := newGesture(v)

	g.pointerDown(pointer{id: 1, x: 100, y: 100})
	g.pointerDown(pointer{id: 2, x: 200, y: 100})
	g.pointerDown(pointer{id: 3, x: 300, y: 100})
	if g.mode != gesturePan {
		t.Fatalf("Expected pan mode, got: %d", g.mode)
	}
	g.pointerMove(pointer{id: 1, x: 100, y: 190})
	g.pointerMove(pointer{id: 2, x: 200, y: 190})
	g.pointerMove(pointer{id: 3, x: 300, y: 190})
	if v.view.dPan.Norm() == 0 {
		t.Error("Three fingers must pan")
	}

	g.pointerMove(pointer{id: 9, x: 0, y: 0})
	g.pointerUp(pointer{id: 9})
	if len(g.pointers) != 3 {
		t.Error("Unknown pointers must be ignored")
	}
}
