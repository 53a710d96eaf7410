package cloud

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
)

const sniffLen = 64

// Decode reads a cloud, detecting the container from its leading bytes.
func Decode(r io.Reader) (*Cloud, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF {
		return nil, err
	}
	f := sniff(head)
	if f == FormatUnknown {
		return nil, ErrUnknownFormat
	}
	return DecodeFormat(br, f)
}

// DecodeFormat reads a cloud stored in the given container.
func DecodeFormat(r io.Reader, f Format) (*Cloud, error) {
	var (
		c   *Cloud
		err error
	)
	switch f {
	case FormatPLY:
		c, err = decodePLY(r)
	case FormatPCD:
		c, err = decodePCD(r)
	case FormatSplat:
		c, err = decodeSplat(r)
	default:
		return Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f, err)
	}
	c.Format = f
	return c, nil
}

func sniff(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, []byte("ply\n")), bytes.HasPrefix(head, []byte("ply\r\n")):
		return FormatPLY
	case bytes.HasPrefix(head, []byte("# .PCD")),
		bytes.HasPrefix(head, []byte("VERSION")),
		bytes.HasPrefix(head, []byte("FIELDS")):
		return FormatPCD
	case len(head) > 0:
		// .splat has no magic; the record layout is checked while reading.
		return FormatSplat
	}
	return FormatUnknown
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func sigmoid(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}

func exp32(v float32) float32 {
	return float32(math.Exp(float64(v)))
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
