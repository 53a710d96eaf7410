package main

import (
	"encoding/binary"
	"math"

	"github.com/seqsense/splatview/cloud"
)

// Interleaved vertex layout uploaded to the GPU:
// position (3 x float32), color (4 x uint8, normalized), splat size (float32).
const (
	vertexStride      = 20
	vertexColorOffset = 12
	vertexSizeOffset  = 16
)

// packVertices interleaves c into the vertex layout. The size is the largest
// splat scale, or zero for plain points.
func packVertices(c *cloud.Cloud) []byte {
	n := c.Len()
	buf := make([]byte, n*vertexStride)
	splat := len(c.Scales) == n && n > 0
	for i, p := range c.Positions {
		b := buf[i*vertexStride : (i+1)*vertexStride]
		binary.LittleEndian.PutUint32(b[0:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(p[1]))
		binary.LittleEndian.PutUint32(b[8:], math.Float32bits(p[2]))

		col := c.ColorAt(i)
		b[vertexColorOffset+0] = unorm8(col[0])
		b[vertexColorOffset+1] = unorm8(col[1])
		b[vertexColorOffset+2] = unorm8(col[2])
		b[vertexColorOffset+3] = unorm8(c.OpacityAt(i))

		var size float32
		if splat {
			s := c.Scales[i]
			size = float32(math.Max(float64(s[0]), math.Max(float64(s[1]), float64(s[2]))))
		}
		binary.LittleEndian.PutUint32(b[vertexSizeOffset:], math.Float32bits(size))
	}
	return buf
}

func unorm8(v float32) byte {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	default:
		return byte(v*255 + 0.5)
	}
}
