package cloud

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/seqsense/pcgol/mat"
)

// shC0 is the zeroth order spherical harmonic coefficient.
const shC0 = 0.28209479177387814

// plyReserveMax bounds the capacity reserved from a header count. Larger
// clouds grow by append as records are actually read.
const plyReserveMax = 1 << 16

type plyEncoding int

const (
	plyASCII plyEncoding = iota
	plyBinaryLittleEndian
	plyBinaryBigEndian
)

var plyTypeNames = map[string]string{
	"char": "char", "int8": "char",
	"uchar": "uchar", "uint8": "uchar",
	"short": "short", "int16": "short",
	"ushort": "ushort", "uint16": "ushort",
	"int": "int", "int32": "int",
	"uint": "uint", "uint32": "uint",
	"float": "float", "float32": "float",
	"double": "double", "float64": "double",
}

var plyTypeSize = map[string]int{
	"char": 1, "uchar": 1,
	"short": 2, "ushort": 2,
	"int": 4, "uint": 4,
	"float": 4, "double": 8,
}

type plyProperty struct {
	name     string
	typ      string
	list     bool
	countTyp string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

// stride returns the byte size of one record, or 0 when the element has lists.
func (e *plyElement) stride() int {
	n := 0
	for _, p := range e.props {
		if p.list {
			return 0
		}
		n += plyTypeSize[p.typ]
	}
	return n
}

type plyHeader struct {
	encoding plyEncoding
	elements []plyElement
}

func (h *plyHeader) vertex() (int, *plyElement) {
	for i := range h.elements {
		if h.elements[i].name == "vertex" {
			return i, &h.elements[i]
		}
	}
	return -1, nil
}

func readPLYHeader(br *bufio.Reader) (*plyHeader, error) {
	h := &plyHeader{}
	first := true
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("ply header: %w", ErrTruncated)
			}
			return nil, err
		}
		args := strings.Fields(line)
		if first {
			if len(args) != 1 || args[0] != "ply" {
				return nil, errors.New("ply header: missing magic")
			}
			first = false
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "format":
			if len(args) < 2 {
				return nil, errors.New("ply header: invalid format line")
			}
			switch args[1] {
			case "ascii":
				h.encoding = plyASCII
			case "binary_little_endian":
				h.encoding = plyBinaryLittleEndian
			case "binary_big_endian":
				h.encoding = plyBinaryBigEndian
			default:
				return nil, fmt.Errorf("ply header: unsupported format %q", args[1])
			}
		case "comment", "obj_info":
		case "element":
			if len(args) != 3 {
				return nil, errors.New("ply header: invalid element line")
			}
			n, err := strconv.Atoi(args[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("ply header: invalid element count %q", args[2])
			}
			h.elements = append(h.elements, plyElement{name: args[1], count: n})
		case "property":
			if len(h.elements) == 0 {
				return nil, errors.New("ply header: property before element")
			}
			el := &h.elements[len(h.elements)-1]
			p, err := parsePLYProperty(args[1:])
			if err != nil {
				return nil, err
			}
			el.props = append(el.props, p)
		case "end_header":
			return h, nil
		default:
			return nil, fmt.Errorf("ply header: unknown keyword %q", args[0])
		}
	}
}

func parsePLYProperty(args []string) (plyProperty, error) {
	if len(args) == 4 && args[0] == "list" {
		ct, ok1 := plyTypeNames[args[1]]
		it, ok2 := plyTypeNames[args[2]]
		if !ok1 || !ok2 {
			return plyProperty{}, fmt.Errorf("ply header: invalid list property %v", args)
		}
		return plyProperty{name: args[3], typ: it, list: true, countTyp: ct}, nil
	}
	if len(args) != 2 {
		return plyProperty{}, fmt.Errorf("ply header: invalid property %v", args)
	}
	t, ok := plyTypeNames[args[0]]
	if !ok {
		return plyProperty{}, fmt.Errorf("ply header: invalid property type %q", args[0])
	}
	return plyProperty{name: args[1], typ: t}, nil
}

func decodePLY(r io.Reader) (*Cloud, error) {
	br := bufio.NewReader(r)
	h, err := readPLYHeader(br)
	if err != nil {
		return nil, err
	}
	vi, v := h.vertex()
	if v == nil {
		return nil, ErrNoPosition
	}
	vb, err := newVertexBuilder(v)
	if err != nil {
		return nil, err
	}
	switch h.encoding {
	case plyASCII:
		err = readPLYASCII(br, h, vi, vb)
	case plyBinaryLittleEndian:
		err = readPLYBinary(br, h, vi, binary.LittleEndian, vb)
	case plyBinaryBigEndian:
		err = readPLYBinary(br, h, vi, binary.BigEndian, vb)
	}
	if err != nil {
		return nil, err
	}
	return vb.cloud, nil
}

func readPLYBinary(br *bufio.Reader, h *plyHeader, vi int, order binary.ByteOrder, vb *vertexBuilder) error {
	for i := 0; i <= vi; i++ {
		el := &h.elements[i]
		var fn func([]float64)
		if i == vi {
			fn = vb.add
		}
		if err := readPLYElement(br, el, order, fn); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return fmt.Errorf("ply element %s: %w", el.name, ErrTruncated)
			}
			return err
		}
	}
	return nil
}

// readPLYElement reads all records of el and passes the scalar values to fn.
// List properties are skipped. A nil fn discards the element.
func readPLYElement(br *bufio.Reader, el *plyElement, order binary.ByteOrder, fn func([]float64)) error {
	stride := el.stride()
	if stride > 0 && int64(el.count) > math.MaxInt64/int64(stride) {
		return io.ErrUnexpectedEOF
	}
	if fn == nil && stride > 0 {
		_, err := io.CopyN(io.Discard, br, int64(stride)*int64(el.count))
		return err
	}
	vals := make([]float64, len(el.props))
	var buf []byte
	if stride > 0 {
		buf = make([]byte, stride)
	} else {
		buf = make([]byte, 8)
	}
	for n := 0; n < el.count; n++ {
		if stride > 0 {
			if _, err := io.ReadFull(br, buf); err != nil {
				return err
			}
			off := 0
			for i, p := range el.props {
				vals[i] = plyBinaryValue(buf[off:], p.typ, order)
				off += plyTypeSize[p.typ]
			}
		} else {
			for i, p := range el.props {
				sz := plyTypeSize[p.typ]
				if p.list {
					csz := plyTypeSize[p.countTyp]
					if _, err := io.ReadFull(br, buf[:csz]); err != nil {
						return err
					}
					cnt := int64(plyBinaryValue(buf, p.countTyp, order))
					if cnt < 0 {
						return fmt.Errorf("ply element %s: negative list length", el.name)
					}
					if _, err := io.CopyN(io.Discard, br, cnt*int64(sz)); err != nil {
						return err
					}
					continue
				}
				if _, err := io.ReadFull(br, buf[:sz]); err != nil {
					return err
				}
				vals[i] = plyBinaryValue(buf, p.typ, order)
			}
		}
		if fn != nil {
			fn(vals)
		}
	}
	return nil
}

func plyBinaryValue(b []byte, typ string, order binary.ByteOrder) float64 {
	switch typ {
	case "char":
		return float64(int8(b[0]))
	case "uchar":
		return float64(b[0])
	case "short":
		return float64(int16(order.Uint16(b)))
	case "ushort":
		return float64(order.Uint16(b))
	case "int":
		return float64(int32(order.Uint32(b)))
	case "uint":
		return float64(order.Uint32(b))
	case "float":
		return float64(math.Float32frombits(order.Uint32(b)))
	case "double":
		return math.Float64frombits(order.Uint64(b))
	}
	return 0
}

// readPLYASCII hands the body to goply. The header is rewritten with
// canonical type names and blank lines are dropped since goply accepts
// neither.
func readPLYASCII(br *bufio.Reader, h *plyHeader, vi int, vb *vertexBuilder) (err error) {
	var src bytes.Buffer
	src.WriteString("ply\nformat ascii 1.0\n")
	var total int64
	for i := 0; i <= vi; i++ {
		el := &h.elements[i]
		fmt.Fprintf(&src, "element %s %d\n", el.name, el.count)
		for _, p := range el.props {
			if p.list {
				fmt.Fprintf(&src, "property list %s %s %s\n", p.countTyp, p.typ, p.name)
			} else {
				fmt.Fprintf(&src, "property %s %s\n", p.typ, p.name)
			}
		}
		total += int64(el.count)
	}
	src.WriteString("end_header\n")

	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	var n int64
	for n < total && sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		src.Write(line)
		src.WriteByte('\n')
		n++
	}
	if err := sc.Err(); err != nil {
		return err
	}
	// goply allocates every declared record up front.
	if n < total {
		return fmt.Errorf("ply ascii: %d of %d records: %w", n, total, ErrTruncated)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ply ascii: %v", r)
		}
	}()
	ply := goply.New(&src)

	v := &h.elements[vi]
	vals := make([]float64, len(v.props))
	for _, e := range ply.Elements("vertex") {
		for i, p := range v.props {
			if p.list {
				continue
			}
			vals[i] = plyASCIIValue(e.Property(p.name))
		}
		vb.add(vals)
	}
	return nil
}

func plyASCIIValue(v interface{}) float64 {
	switch v := v.(type) {
	case int8:
		return float64(v)
	case uint8:
		return float64(v)
	case int16:
		return float64(v)
	case uint16:
		return float64(v)
	case int32:
		return float64(v)
	case uint32:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// vertexBuilder maps vertex properties onto cloud attributes.
type vertexBuilder struct {
	cloud *Cloud

	pos     [3]int
	color   [3]int
	colorSc float32
	shDC    bool
	alpha   int
	alphaSc float32
	logit   bool
	scale   [3]int
	rot     [4]int
}

func newVertexBuilder(el *plyElement) (*vertexBuilder, error) {
	idx := make(map[string]int, len(el.props))
	typ := make(map[string]string, len(el.props))
	for i, p := range el.props {
		if p.list {
			continue
		}
		idx[p.name] = i
		typ[p.name] = p.typ
	}
	find := func(names ...string) ([]int, bool) {
		out := make([]int, len(names))
		for i, n := range names {
			j, ok := idx[n]
			if !ok {
				return nil, false
			}
			out[i] = j
		}
		return out, true
	}

	reserve := el.count
	if reserve > plyReserveMax {
		reserve = plyReserveMax
	}
	vb := &vertexBuilder{
		cloud: &Cloud{Positions: make([]mat.Vec3, 0, reserve)},
		alpha: -1,
		color: [3]int{-1, -1, -1},
		scale: [3]int{-1, -1, -1},
		rot:   [4]int{-1, -1, -1, -1},
	}
	p, ok := find("x", "y", "z")
	if !ok {
		return nil, ErrNoPosition
	}
	copy(vb.pos[:], p)

	if c, ok := find("red", "green", "blue"); ok {
		copy(vb.color[:], c)
		vb.colorSc = normScale(typ["red"])
	} else if c, ok := find("f_dc_0", "f_dc_1", "f_dc_2"); ok {
		copy(vb.color[:], c)
		vb.shDC = true
	}
	if vb.color[0] >= 0 {
		vb.cloud.Colors = make([]Color, 0, reserve)
	}

	if a, ok := idx["alpha"]; ok {
		vb.alpha = a
		vb.alphaSc = normScale(typ["alpha"])
	} else if a, ok := idx["opacity"]; ok {
		vb.alpha = a
		vb.logit = true
	}
	if vb.alpha >= 0 {
		vb.cloud.Opacity = make([]float32, 0, reserve)
	}

	s, okS := find("scale_0", "scale_1", "scale_2")
	r, okR := find("rot_0", "rot_1", "rot_2", "rot_3")
	if okS && okR {
		copy(vb.scale[:], s)
		copy(vb.rot[:], r)
		vb.cloud.Scales = make([]mat.Vec3, 0, reserve)
		vb.cloud.Rotations = make([]Quat, 0, reserve)
	}
	return vb, nil
}

// normScale returns the factor mapping a stored channel value to [0, 1].
func normScale(typ string) float32 {
	switch typ {
	case "uchar":
		return 1.0 / 255
	case "ushort":
		return 1.0 / 65535
	default:
		return 1
	}
}

func (b *vertexBuilder) add(v []float64) {
	c := b.cloud
	c.Positions = append(c.Positions, mat.Vec3{
		float32(v[b.pos[0]]), float32(v[b.pos[1]]), float32(v[b.pos[2]]),
	})
	if c.Colors != nil {
		var col Color
		for i, j := range b.color {
			if b.shDC {
				col[i] = clamp01(0.5 + shC0*float32(v[j]))
			} else {
				col[i] = clamp01(float32(v[j]) * b.colorSc)
			}
		}
		c.Colors = append(c.Colors, col)
	}
	if c.Opacity != nil {
		a := float32(v[b.alpha])
		if b.logit {
			a = sigmoid(a)
		} else {
			a = clamp01(a * b.alphaSc)
		}
		c.Opacity = append(c.Opacity, a)
	}
	if c.Scales != nil {
		c.Scales = append(c.Scales, mat.Vec3{
			exp32(float32(v[b.scale[0]])),
			exp32(float32(v[b.scale[1]])),
			exp32(float32(v[b.scale[2]])),
		})
		c.Rotations = append(c.Rotations, Quat{
			float32(v[b.rot[0]]), float32(v[b.rot[1]]), float32(v[b.rot[2]]), float32(v[b.rot[3]]),
		}.Normalized())
	}
}
