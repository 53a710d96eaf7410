// Package cloud holds the decoded point/splat cloud and the readers for the
// container formats accepted by the viewer.
package cloud

import (
	"errors"
	"path"
	"strings"

	"github.com/seqsense/pcgol/mat"
)

type Format int

const (
	FormatUnknown Format = iota
	FormatPLY
	FormatPCD
	FormatSplat
)

func (f Format) String() string {
	switch f {
	case FormatPLY:
		return "ply"
	case FormatPCD:
		return "pcd"
	case FormatSplat:
		return "splat"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownFormat = errors.New("unknown point cloud format")
	ErrNoPosition    = errors.New("point cloud has no position attribute")
	ErrTruncated     = errors.New("point cloud data is truncated")
)

// Color is a linear RGB triple in [0, 1].
type Color [3]float32

// DefaultColor is used for every point when the source has no color attribute.
var DefaultColor = Color{1, 1, 1}

// Quat is a rotation quaternion ordered as w, x, y, z.
type Quat [4]float32

func (q Quat) Normalized() Quat {
	n := q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
	if n == 0 {
		return Quat{1, 0, 0, 0}
	}
	s := 1 / sqrt32(n)
	return Quat{q[0] * s, q[1] * s, q[2] * s, q[3] * s}
}

// Cloud is a decoded cloud. Optional attributes are nil when absent,
// otherwise they have the same length as Positions.
type Cloud struct {
	Positions []mat.Vec3
	Colors    []Color
	Opacity   []float32
	Scales    []mat.Vec3
	Rotations []Quat

	Format Format
}

func (c *Cloud) Len() int {
	return len(c.Positions)
}

func (c *Cloud) HasColor() bool {
	return c.Colors != nil && len(c.Colors) == len(c.Positions)
}

// IsSplat reports whether the cloud carries gaussian covariance attributes.
func (c *Cloud) IsSplat() bool {
	return c.Scales != nil && c.Rotations != nil
}

func (c *Cloud) ColorAt(i int) Color {
	if !c.HasColor() {
		return DefaultColor
	}
	return c.Colors[i]
}

func (c *Cloud) OpacityAt(i int) float32 {
	if len(c.Opacity) != len(c.Positions) {
		return 1
	}
	return c.Opacity[i]
}

// FormatFromName guesses the container from a file name or URL.
func FormatFromName(name string) Format {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".ply":
		return FormatPLY
	case ".pcd":
		return FormatPCD
	case ".splat":
		return FormatSplat
	default:
		return FormatUnknown
	}
}
