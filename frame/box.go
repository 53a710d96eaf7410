package frame

import (
	"math"

	"github.com/seqsense/pcgol/mat"
)

// Box is an axis aligned bounding box.
type Box struct {
	Min, Max mat.Vec3
}

// EmptyBox returns an inverted box which Extend can grow from.
func EmptyBox() Box {
	inf := float32(math.Inf(1))
	return Box{
		Min: mat.Vec3{inf, inf, inf},
		Max: mat.Vec3{-inf, -inf, -inf},
	}
}

func (b *Box) Extend(v mat.Vec3) {
	for i := range v {
		if v[i] < b.Min[i] {
			b.Min[i] = v[i]
		}
		if v[i] > b.Max[i] {
			b.Max[i] = v[i]
		}
	}
}

func (b Box) IsValid() bool {
	return !(b.Min[0] > b.Max[0] ||
		b.Min[1] > b.Max[1] ||
		b.Min[2] > b.Max[2])
}

func (b Box) IsInside(v mat.Vec3) bool {
	return !(v[0] < b.Min[0] ||
		v[1] < b.Min[1] ||
		v[2] < b.Min[2] ||
		b.Max[0] < v[0] ||
		b.Max[1] < v[1] ||
		b.Max[2] < v[2])
}

func (b Box) Center() mat.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box) Size() mat.Vec3 {
	return b.Max.Sub(b.Min)
}

// MaxExtent returns the largest dimension of the box.
func (b Box) MaxExtent() float32 {
	s := b.Size()
	return float32Max(s[0], float32Max(s[1], s[2]))
}

// Intersection returns the overlap of a and b. The result is invalid when
// they do not overlap.
func Intersection(a, b Box) Box {
	return Box{
		Min: mat.Vec3{
			float32Max(a.Min[0], b.Min[0]),
			float32Max(a.Min[1], b.Min[1]),
			float32Max(a.Min[2], b.Min[2]),
		},
		Max: mat.Vec3{
			float32Min(a.Max[0], b.Max[0]),
			float32Min(a.Max[1], b.Max[1]),
			float32Min(a.Max[2], b.Max[2]),
		},
	}
}

func isFinite(v mat.Vec3) bool {
	for _, e := range v {
		if math.IsNaN(float64(e)) || math.IsInf(float64(e), 0) {
			return false
		}
	}
	return true
}

func float32Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func float32Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
