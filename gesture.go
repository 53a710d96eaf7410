package main

import (
	"math"
)

type gestureMode int

const (
	gestureNone gestureMode = iota
	gestureRotate
	gesturePinch
	gesturePan
)

// pinchZoomScale converts pinch distance change in pixels to zoom steps.
const pinchZoomScale = 0.02

// pointer is the part of a DOM PointerEvent used for gestures.
type pointer struct {
	id     int
	x, y   int
	button int
	shift  bool
}

// gesture turns pointer events into orbit controls: one pointer drags
// (rotate, or pan with a non-primary button or shift), two pointers pinch
// to zoom and three pointers pan.
type gesture struct {
	v        *viewer
	pointers map[int]pointer

	mode      gestureMode
	distance0 float64
}

func newGesture(v *viewer) *gesture {
	return &gesture{v: v, pointers: map[int]pointer{}}
}

func (g *gesture) pointerDown(p pointer) {
	g.end()
	g.pointers[p.id] = p
	switch len(g.pointers) {
	case 1:
		b := dragRotate
		if p.button != 0 || p.shift {
			b = dragPan
		}
		g.v.DragStart(p.x, p.y, b)
		g.mode = gestureRotate
		if b == dragPan {
			g.mode = gesturePan
		}
	case 2:
		g.distance0 = g.spread()
		g.mode = gesturePinch
	default:
		x, y := g.centroid()
		g.v.DragStart(x, y, dragPan)
		g.mode = gesturePan
	}
}

func (g *gesture) pointerMove(p pointer) {
	if _, ok := g.pointers[p.id]; !ok {
		return
	}
	g.pointers[p.id] = p
	switch g.mode {
	case gestureRotate:
		g.v.Drag(p.x, p.y)
	case gesturePinch:
		d := g.spread()
		g.v.Zoom((g.distance0 - d) * pinchZoomScale)
		g.distance0 = d
	case gesturePan:
		x, y := g.centroid()
		g.v.Drag(x, y)
	}
}

func (g *gesture) pointerUp(p pointer) {
	if _, ok := g.pointers[p.id]; !ok {
		return
	}
	g.end()
	delete(g.pointers, p.id)
	// Lifting a finger restarts the gesture with the remaining ones.
	rest := g.pointers
	g.pointers = map[int]pointer{}
	for _, q := range rest {
		g.pointerDown(q)
	}
}

// active reports whether a pointer is held.
func (g *gesture) active() bool {
	return len(g.pointers) > 0
}

func (g *gesture) end() {
	switch g.mode {
	case gestureRotate, gesturePan:
		g.v.DragEnd()
	}
	g.mode = gestureNone
}

func (g *gesture) spread() float64 {
	var pp []pointer
	for _, p := range g.pointers {
		pp = append(pp, p)
	}
	if len(pp) < 2 {
		return 0
	}
	return math.Hypot(float64(pp[0].x-pp[1].x), float64(pp[0].y-pp[1].y))
}

func (g *gesture) centroid() (int, int) {
	var x, y int
	for _, p := range g.pointers {
		x += p.x
		y += p.y
	}
	n := len(g.pointers)
	if n == 0 {
		return 0, 0
	}
	return x / n, y / n
}
