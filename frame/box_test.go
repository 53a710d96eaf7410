package frame

import (
	"math"
	"reflect"
	"testing"

	"github.com/seqsense/pcgol/mat"
)

func TestIntersection(t *testing.T) {
	testCases := map[string]struct {
		a, b     Box
		expected Box
		valid    bool
	}{
		"Overlap": {
			a:        Box{mat.Vec3{1, 2, 3}, mat.Vec3{5, 6, 7}},
			b:        Box{mat.Vec3{4, 5, 6}, mat.Vec3{7, 8, 9}},
			expected: Box{mat.Vec3{4, 5, 6}, mat.Vec3{5, 6, 7}},
			valid:    true,
		},
		"Contained": {
			a:        Box{mat.Vec3{0, 0, 0}, mat.Vec3{10, 10, 10}},
			b:        Box{mat.Vec3{1, 2, 3}, mat.Vec3{4, 5, 6}},
			expected: Box{mat.Vec3{1, 2, 3}, mat.Vec3{4, 5, 6}},
			valid:    true,
		},
		"Disjoint": {
			a:        Box{mat.Vec3{1, 2, 3}, mat.Vec3{3, 4, 5}},
			b:        Box{mat.Vec3{6, 7, 8}, mat.Vec3{9, 10, 11}},
			expected: Box{mat.Vec3{6, 7, 8}, mat.Vec3{3, 4, 5}},
			valid:    false,
		},
	}

	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			for _, out := range []Box{Intersection(tt.a, tt.b), Intersection(tt.b, tt.a)} {
				if !reflect.DeepEqual(tt.expected, out) {
					t.Errorf("Expected box: %v, got: %v", tt.expected, out)
				}
				if out.IsValid() != tt.valid {
					t.Errorf("Expected validity %v, got %v", tt.valid, out.IsValid())
				}
			}
		})
	}
}

func TestBox_IsInside(t *testing.T) {
	b := Box{mat.Vec3{4, 5, 6}, mat.Vec3{5, 6, 7}}
	testCases := map[string]struct {
		p      mat.Vec3
		inside bool
	}{
		"Inside":   {p: mat.Vec3{4.5, 5.6, 6.7}, inside: true},
		"OnCorner": {p: mat.Vec3{5, 6, 7}, inside: true},
		"OutsideX": {p: mat.Vec3{3.5, 5.6, 6.7}},
		"OutsideY": {p: mat.Vec3{4.5, 6.6, 6.7}},
		"OutsideZ": {p: mat.Vec3{4.5, 5.6, 7.7}},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			if inside := b.IsInside(tt.p); inside != tt.inside {
				t.Errorf("Expected IsInside(%v) to be %v", tt.p, tt.inside)
			}
		})
	}
}

func TestBounds(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	testCases := map[string]struct {
		points []mat.Vec3
		box    Box
		ok     bool
		center mat.Vec3
		extent float32
	}{
		"Cube": {
			points: []mat.Vec3{{-1, 0, 2}, {3, 1, 4}, {0, -2, 3}},
			box:    Box{mat.Vec3{-1, -2, 2}, mat.Vec3{3, 1, 4}},
			ok:     true,
			center: mat.Vec3{1, -0.5, 3},
			extent: 4,
		},
		"SkipNonFinite": {
			points: []mat.Vec3{{nan, 0, 0}, {1, 1, 1}, {inf, 0, 0}, {2, 3, 1}},
			box:    Box{mat.Vec3{1, 1, 1}, mat.Vec3{2, 3, 1}},
			ok:     true,
			center: mat.Vec3{1.5, 2, 1},
			extent: 2,
		},
		"SinglePoint": {
			points: []mat.Vec3{{7, 8, 9}},
			box:    Box{mat.Vec3{7, 8, 9}, mat.Vec3{7, 8, 9}},
			ok:     true,
			center: mat.Vec3{7, 8, 9},
		},
	}
	for name, tt := range testCases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			b, ok := Bounds(tt.points)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if !reflect.DeepEqual(tt.box, b) {
				t.Errorf("Expected box: %v, got: %v", tt.box, b)
			}
			if c := b.Center(); !c.Equal(tt.center) {
				t.Errorf("Expected center: %v, got: %v", tt.center, c)
			}
			if e := b.MaxExtent(); e != tt.extent {
				t.Errorf("Expected extent: %v, got: %v", tt.extent, e)
			}
		})
	}

	t.Run("Empty", func(t *testing.T) {
		if _, ok := Bounds(nil); ok {
			t.Error("Expected no bounds for empty input")
		}
	})
}

func TestTrimmedBounds(t *testing.T) {
	var points []mat.Vec3
	for i := 0; i < 100; i++ {
		points = append(points, mat.Vec3{float32(i) / 99, 0, 0})
	}
	points = append(points, mat.Vec3{1000, 0, 0})

	b, ok := TrimmedBounds(points, 0.05)
	if !ok {
		t.Fatal("Expected bounds")
	}
	if b.Max[0] > 1 {
		t.Errorf("Outlier must be trimmed, got max %v", b.Max)
	}
	if !b.IsValid() {
		t.Errorf("Expected valid box, got %v", b)
	}

	full, _ := TrimmedBounds(points, 0)
	if full.Max[0] != 1000 {
		t.Errorf("Zero trim must keep all points, got max %v", full.Max)
	}
}
