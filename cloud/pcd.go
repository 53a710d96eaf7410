package cloud

import (
	"io"
	"math"

	"github.com/seqsense/pcgol/mat"
	"github.com/seqsense/pcgol/pc"
)

func decodePCD(r io.Reader) (*Cloud, error) {
	pp, err := pc.Unmarshal(r)
	if err != nil {
		return nil, err
	}
	it, err := pp.Vec3Iterator()
	if err != nil {
		return nil, ErrNoPosition
	}
	n := it.Len()
	c := &Cloud{
		Positions: make([]mat.Vec3, 0, n),
	}
	for i := 0; i < n; i++ {
		c.Positions = append(c.Positions, it.Vec3())
		it.Incr()
	}

	packed, ok := pcdPackedColor(pp)
	if !ok {
		return c, nil
	}
	c.Colors = make([]Color, 0, len(c.Positions))
	for i := 0; i < len(c.Positions); i++ {
		v := packed()
		c.Colors = append(c.Colors, Color{
			float32((v>>16)&0xFF) / 255,
			float32((v>>8)&0xFF) / 255,
			float32(v&0xFF) / 255,
		})
	}
	return c, nil
}

// pcdPackedColor returns a generator of the packed 0x00RRGGBB values stored
// in the rgb or rgba field. PCL stores them either as U4 or bit-cast to F4.
func pcdPackedColor(pp *pc.PointCloud) (func() uint32, bool) {
	for i, f := range pp.Fields {
		if f != "rgb" && f != "rgba" {
			continue
		}
		if pp.Size[i] != 4 {
			return nil, false
		}
		switch pp.Type[i] {
		case "U":
			it, err := pp.Uint32Iterator(f)
			if err != nil {
				return nil, false
			}
			return func() uint32 {
				v := it.Uint32()
				it.Incr()
				return v
			}, true
		case "F":
			it, err := pp.Float32Iterator(f)
			if err != nil {
				return nil, false
			}
			return func() uint32 {
				v := math.Float32bits(it.Float32())
				it.Incr()
				return v
			}, true
		}
	}
	return nil, false
}
