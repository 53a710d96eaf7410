package cloud

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/seqsense/pcgol/mat"
)

// splatRecordSize is the byte size of one .splat record:
// position 3xf32, scale 3xf32, RGBA 4xu8, rotation 4xu8.
const splatRecordSize = 32

func decodeSplat(r io.Reader) (*Cloud, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(b)%splatRecordSize != 0 {
		return nil, fmt.Errorf("splat: %d bytes is not a multiple of %d: %w", len(b), splatRecordSize, ErrTruncated)
	}
	n := len(b) / splatRecordSize
	c := &Cloud{
		Positions: make([]mat.Vec3, n),
		Colors:    make([]Color, n),
		Opacity:   make([]float32, n),
		Scales:    make([]mat.Vec3, n),
		Rotations: make([]Quat, n),
	}
	f32 := func(p []byte) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(p))
	}
	for i := 0; i < n; i++ {
		rec := b[i*splatRecordSize : (i+1)*splatRecordSize]
		c.Positions[i] = mat.Vec3{f32(rec[0:]), f32(rec[4:]), f32(rec[8:])}
		c.Scales[i] = mat.Vec3{f32(rec[12:]), f32(rec[16:]), f32(rec[20:])}
		c.Colors[i] = Color{
			float32(rec[24]) / 255,
			float32(rec[25]) / 255,
			float32(rec[26]) / 255,
		}
		c.Opacity[i] = float32(rec[27]) / 255
		c.Rotations[i] = Quat{
			(float32(rec[28]) - 128) / 128,
			(float32(rec[29]) - 128) / 128,
			(float32(rec[30]) - 128) / 128,
			(float32(rec[31]) - 128) / 128,
		}.Normalized()
	}
	return c, nil
}

// EncodeSplat writes c as .splat records. Missing attributes are filled with
// the defaults used when decoding.
func EncodeSplat(w io.Writer, c *Cloud) error {
	rec := make([]byte, splatRecordSize)
	put := func(p []byte, v float32) {
		binary.LittleEndian.PutUint32(p, math.Float32bits(v))
	}
	u8 := func(v float32) byte {
		return byte(math.Round(float64(clamp01(v) * 255)))
	}
	q8 := func(v float32) byte {
		x := math.Round(float64(v)*128 + 128)
		if x < 0 {
			x = 0
		} else if x > 255 {
			x = 255
		}
		return byte(x)
	}
	for i, p := range c.Positions {
		put(rec[0:], p[0])
		put(rec[4:], p[1])
		put(rec[8:], p[2])
		s := mat.Vec3{0.01, 0.01, 0.01}
		q := Quat{1, 0, 0, 0}
		if c.IsSplat() {
			s, q = c.Scales[i], c.Rotations[i]
		}
		put(rec[12:], s[0])
		put(rec[16:], s[1])
		put(rec[20:], s[2])
		col := c.ColorAt(i)
		rec[24], rec[25], rec[26] = u8(col[0]), u8(col[1]), u8(col[2])
		rec[27] = u8(c.OpacityAt(i))
		rec[28], rec[29], rec[30], rec[31] = q8(q[0]), q8(q[1]), q8(q[2]), q8(q[3])
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
