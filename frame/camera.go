package frame

import (
	"math"

	"github.com/seqsense/pcgol/mat"
)

// Camera is a perspective camera looking at Target.
type Camera struct {
	Position mat.Vec3
	Target   mat.Vec3
	Up       mat.Vec3
	FOV      float32
	Near     float32
	Far      float32
}

// Home returns the camera framing a cloud with the given bounding radius:
// a three-quarter elevated view of the origin.
func Home(radius float32, o Options) Camera {
	o = o.withDefaults()
	if !(radius > 0) || math.IsInf(float64(radius), 0) {
		radius = o.TargetSize / 2
	}
	d := radius * o.DistanceFactor
	return Camera{
		Position: mat.Vec3{d, d * o.Elevation, d},
		Up:       mat.Vec3{0, 1, 0},
		FOV:      o.FOV,
		Near:     radius * o.NearFactor,
		Far:      radius * o.FarFactor,
	}
}

// Distance returns the distance between the camera and its target.
func (c Camera) Distance() float32 {
	return c.Position.Sub(c.Target).Norm()
}

// Forward returns the unit viewing direction.
func (c Camera) Forward() mat.Vec3 {
	return c.Target.Sub(c.Position).Normalized()
}

// Right returns the unit vector pointing to the right of the view.
func (c Camera) Right() mat.Vec3 {
	return cross(c.Forward(), c.Up).Normalized()
}

// ViewMatrix returns the world to camera transform.
func (c Camera) ViewMatrix() mat.Mat4 {
	f := c.Forward()
	s := cross(f, c.Up).Normalized()
	u := cross(s, f)
	return mat.Mat4{
		s[0], u[0], -f[0], 0,
		s[1], u[1], -f[1], 0,
		s[2], u[2], -f[2], 0,
		-s.Dot(c.Position), -u.Dot(c.Position), f.Dot(c.Position), 1,
	}
}

// Projection returns the perspective projection for the given aspect ratio
// (width / height). FOV is applied vertically.
func (c Camera) Projection(aspect float32) mat.Mat4 {
	if !(aspect > 0) {
		aspect = 1
	}
	// mat.Perspective takes the horizontal field of view.
	fovX := 2 * math.Atan(math.Tan(float64(c.FOV)/2)*float64(aspect))
	return mat.Perspective(float32(fovX), aspect, c.Near, c.Far)
}

func cross(a, b mat.Vec3) mat.Vec3 {
	return mat.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
