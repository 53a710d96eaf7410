// Package frame normalizes a cloud into a fixed size around the origin and
// places the home camera so the whole cloud is in view.
package frame

import (
	"math"
	"sort"

	"github.com/seqsense/pcgol/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/seqsense/splatview/cloud"
)

const (
	DefaultTargetSize     = 2
	DefaultExtent         = 5
	DefaultDistanceFactor = 3
	DefaultElevation      = 0.5
	DefaultNearFactor     = 0.01
	DefaultFarFactor      = 100
	DefaultFOV            = math.Pi / 3
)

type Options struct {
	// TargetSize is the largest dimension of the cloud after normalization.
	TargetSize float32 `yaml:"target_size" env:"TARGET_SIZE"`
	// DefaultExtent replaces a zero or non-finite extent.
	DefaultExtent float32 `yaml:"default_extent" env:"DEFAULT_EXTENT"`
	// DistanceFactor is the camera distance in units of the bounding radius.
	DistanceFactor float32 `yaml:"distance_factor" env:"DISTANCE_FACTOR"`
	// Elevation is the camera height relative to its horizontal distance.
	Elevation  float32 `yaml:"elevation" env:"ELEVATION"`
	NearFactor float32 `yaml:"near_factor" env:"NEAR_FACTOR"`
	FarFactor  float32 `yaml:"far_factor" env:"FAR_FACTOR"`
	// FOV is the vertical field of view in radians.
	FOV float32 `yaml:"fov" env:"FOV"`
	// Trim is the fraction of points ignored on each side of every axis
	// when computing bounds. Zero uses the exact bounding box.
	Trim float64 `yaml:"trim" env:"TRIM"`
}

func DefaultOptions() Options {
	return Options{
		TargetSize:     DefaultTargetSize,
		DefaultExtent:  DefaultExtent,
		DistanceFactor: DefaultDistanceFactor,
		Elevation:      DefaultElevation,
		NearFactor:     DefaultNearFactor,
		FarFactor:      DefaultFarFactor,
		FOV:            DefaultFOV,
	}
}

// withDefaults fills zero fields so a partially configured Options is usable.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TargetSize <= 0 {
		o.TargetSize = d.TargetSize
	}
	if o.DefaultExtent <= 0 {
		o.DefaultExtent = d.DefaultExtent
	}
	if o.DistanceFactor <= 0 {
		o.DistanceFactor = d.DistanceFactor
	}
	if o.Elevation == 0 {
		o.Elevation = d.Elevation
	}
	if o.NearFactor <= 0 {
		o.NearFactor = d.NearFactor
	}
	if o.FarFactor <= o.NearFactor {
		o.FarFactor = d.FarFactor
	}
	if o.FOV <= 0 || o.FOV >= math.Pi {
		o.FOV = d.FOV
	}
	if o.Trim < 0 || o.Trim >= 0.5 {
		o.Trim = 0
	}
	return o
}

// Normalization describes the transform applied to a cloud.
type Normalization struct {
	// Bounds is the box of the input before normalization.
	Bounds Box
	Center mat.Vec3
	Size   mat.Vec3
	// Extent is the largest dimension used for scaling, after fallback.
	Extent float32
	Scale  float32
	// Radius is the bounding radius of the normalized cloud.
	Radius float32
	// Empty is set when no finite point was found.
	Empty bool
	// Outliers counts finite points outside the trimmed bounds.
	Outliers int
}

// Apply maps a point of the input cloud into normalized space.
func (n Normalization) Apply(v mat.Vec3) mat.Vec3 {
	return v.Sub(n.Center).Mul(n.Scale)
}

// Matrix returns the affine transform equivalent to Apply.
func (n Normalization) Matrix() mat.Mat4 {
	s := n.Scale
	return mat.Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		-n.Center[0] * s, -n.Center[1] * s, -n.Center[2] * s, 1,
	}
}

// Bounds returns the box over the finite points. ok is false when there is
// no finite point.
func Bounds(points []mat.Vec3) (Box, bool) {
	b := EmptyBox()
	ok := false
	for _, p := range points {
		if !isFinite(p) {
			continue
		}
		b.Extend(p)
		ok = true
	}
	return b, ok
}

// TrimmedBounds returns the box spanning the [trim, 1-trim] quantiles of
// each axis, so a few stray splats do not shrink the framed object.
func TrimmedBounds(points []mat.Vec3, trim float64) (Box, bool) {
	full, ok := Bounds(points)
	if !ok || trim <= 0 {
		return full, ok
	}
	axis := make([]float64, 0, len(points))
	var b Box
	for i := 0; i < 3; i++ {
		axis = axis[:0]
		for _, p := range points {
			if isFinite(p) {
				axis = append(axis, float64(p[i]))
			}
		}
		sort.Float64s(axis)
		b.Min[i] = float32(stat.Quantile(trim, stat.Empirical, axis, nil))
		b.Max[i] = float32(stat.Quantile(1-trim, stat.Empirical, axis, nil))
	}
	return Intersection(b, full), true
}

// Plan computes the normalization of points without modifying them.
func Plan(points []mat.Vec3, o Options) Normalization {
	o = o.withDefaults()

	b, ok := TrimmedBounds(points, o.Trim)
	n := Normalization{Empty: !ok}
	if ok {
		n.Bounds = b
		n.Center = b.Center()
		n.Size = b.Size()
		n.Extent = b.MaxExtent()
		if o.Trim > 0 {
			for _, p := range points {
				if isFinite(p) && !b.IsInside(p) {
					n.Outliers++
				}
			}
		}
	}
	if !(n.Extent > 0) || math.IsInf(float64(n.Extent), 0) {
		n.Extent = o.DefaultExtent
	}
	n.Scale = o.TargetSize / n.Extent
	n.Radius = n.Extent * n.Scale / 2
	return n
}

// Normalize translates c so its bounds are centered at the origin and scales
// it so the largest dimension equals the target size. Splat scales are
// multiplied by the same factor.
func Normalize(c *cloud.Cloud, o Options) Normalization {
	n := Plan(c.Positions, o)
	for i, p := range c.Positions {
		c.Positions[i] = n.Apply(p)
	}
	for i, s := range c.Scales {
		c.Scales[i] = s.Mul(n.Scale)
	}
	return n
}
