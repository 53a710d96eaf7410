package main

import (
	"math"

	"github.com/seqsense/pcgol/mat"

	"github.com/seqsense/splatview/frame"
)

type dragButton int

const (
	dragRotate dragButton = iota
	dragPan
)

const (
	dampingFactor = 0.05
	minDistance   = 0.1
	maxDistance   = 500
	pitchMargin   = 0.01
	zoomStep      = 1.05
	restThreshold = 1e-5
)

// view is an orbit camera around target with damped rotation and pan.
// yaw is the azimuth measured from +Z toward +X and pitch the polar angle
// from +Y.
type view struct {
	home frame.Camera

	target   mat.Vec3
	distance float64
	yaw      float64
	pitch    float64

	dYaw, dPitch float64
	dPan         mat.Vec3

	dragging     bool
	button       dragButton
	lastX, lastY int
}

func newView(home frame.Camera) *view {
	v := &view{}
	v.setHome(home)
	return v
}

func (v *view) setHome(c frame.Camera) {
	v.home = c
	v.reset()
}

func (v *view) reset() {
	off := v.home.Position.Sub(v.home.Target)
	v.target = v.home.Target
	r := float64(off.Norm())
	v.distance = clampFloat(r, minDistance, maxDistance)
	v.pitch = math.Pi / 2
	if r > 0 {
		v.pitch = clampFloat(math.Acos(clampFloat(float64(off[1])/r, -1, 1)), pitchMargin, math.Pi-pitchMargin)
	}
	v.yaw = math.Atan2(float64(off[0]), float64(off[2]))
	v.dYaw, v.dPitch = 0, 0
	v.dPan = mat.Vec3{}
}

func (v *view) offset() mat.Vec3 {
	sp, cp := math.Sincos(v.pitch)
	sy, cy := math.Sincos(v.yaw)
	return mat.Vec3{
		float32(v.distance * sp * sy),
		float32(v.distance * cp),
		float32(v.distance * sp * cy),
	}
}

func (v *view) right() mat.Vec3 {
	sy, cy := math.Sincos(v.yaw)
	return mat.Vec3{float32(cy), 0, float32(-sy)}
}

// screenUp is the upward direction of the image plane.
func (v *view) screenUp() mat.Vec3 {
	sp, cp := math.Sincos(v.pitch)
	sy, cy := math.Sincos(v.yaw)
	return mat.Vec3{float32(-cp * sy), float32(sp), float32(-cp * cy)}
}

func (v *view) camera() frame.Camera {
	c := v.home
	c.Target = v.target
	c.Position = v.target.Add(v.offset())
	c.Up = mat.Vec3{0, 1, 0}
	if far := float32(v.distance * 4); c.Far < far {
		c.Far = far
	}
	return c
}

func (v *view) dragStart(x, y int, b dragButton) {
	v.dragging = true
	v.button = b
	v.lastX, v.lastY = x, y
}

func (v *view) dragEnd() {
	v.dragging = false
}

// drag feeds the pointer position. height is the canvas height in pixels;
// a drag across the full height rotates by one turn.
func (v *view) drag(x, y, height int) bool {
	if !v.dragging {
		return false
	}
	dx, dy := float64(x-v.lastX), float64(y-v.lastY)
	v.lastX, v.lastY = x, y
	if dx == 0 && dy == 0 {
		return false
	}
	h := float64(height)
	if h <= 0 {
		h = 1
	}
	switch v.button {
	case dragRotate:
		v.dYaw -= 2 * math.Pi * dx / h
		v.dPitch -= 2 * math.Pi * dy / h
	case dragPan:
		d := v.distance * math.Tan(float64(v.home.FOV)/2)
		v.dPan = v.dPan.
			Add(v.right().Mul(float32(-2 * dx * d / h))).
			Add(v.screenUp().Mul(float32(2 * dy * d / h)))
	}
	return true
}

// zoom scales the distance to the target. Positive steps move away.
func (v *view) zoom(steps float64) {
	v.distance = clampFloat(v.distance*math.Pow(zoomStep, steps), minDistance, maxDistance)
}

// fly translates the camera and its target along the view axes.
func (v *view) fly(forward, right, up, speed float32) {
	fwd := v.offset().Mul(-1).Normalized()
	d := fwd.Mul(forward * speed).
		Add(v.right().Mul(right * speed)).
		Add(mat.Vec3{0, up * speed, 0})
	v.target = v.target.Add(d)
}

// update applies a damped share of the pending motion and reports whether
// motion remains.
func (v *view) update() bool {
	v.yaw += v.dYaw * dampingFactor
	v.pitch = clampFloat(v.pitch+v.dPitch*dampingFactor, pitchMargin, math.Pi-pitchMargin)
	v.target = v.target.Add(v.dPan.Mul(dampingFactor))

	v.dYaw *= 1 - dampingFactor
	v.dPitch *= 1 - dampingFactor
	v.dPan = v.dPan.Mul(1 - dampingFactor)

	if !v.moving() {
		v.dYaw, v.dPitch = 0, 0
		v.dPan = mat.Vec3{}
		return false
	}
	return true
}

func (v *view) moving() bool {
	return math.Abs(v.dYaw) > restThreshold ||
		math.Abs(v.dPitch) > restThreshold ||
		float64(v.dPan.Norm()) > restThreshold
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
