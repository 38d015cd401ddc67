// Package packet converts numeric records into the raw little-endian
// datagram payloads sent by the replay loop, and back.
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrLengthMismatch reports a record whose element count differs from
	// a fixed packet length.
	ErrLengthMismatch = errors.New("record length does not match packet length")
	// ErrOverflow reports a finite value too large for the element width.
	ErrOverflow = errors.New("value out of range for element width")
)

// Width is the size in bytes of one packed element.
type Width int

const (
	// Float32 packs each element as an IEEE-754 single ("float").
	Float32 Width = 4
	// Float64 packs each element as an IEEE-754 double ("double").
	Float64 Width = 8
)

// ParseWidth maps a configured type name to a Width.
func ParseWidth(name string) (Width, error) {
	switch name {
	case "float":
		return Float32, nil
	case "double":
		return Float64, nil
	default:
		return 0, fmt.Errorf("unsupported data type %q, supported only 'float' or 'double'", name)
	}
}

// Valid reports whether w is one of the supported widths.
func (w Width) Valid() bool {
	return w == Float32 || w == Float64
}

// String returns the configuration name of the width.
func (w Width) String() string {
	switch w {
	case Float32:
		return "float"
	case Float64:
		return "double"
	default:
		return fmt.Sprintf("width(%d)", int(w))
	}
}

// Spec describes the packet layout. Count 0 means each packet carries as
// many elements as the record it was built from.
type Spec struct {
	Width Width
	Count int
}

// Dynamic reports whether the packet size follows the record length.
func (s Spec) Dynamic() bool {
	return s.Count == 0
}

type putFunc func(dst []byte, v float64) error

// float32Limit is the smallest magnitude that rounds to infinity as a
// float32: MaxFloat32 plus half an ulp.
const float32Limit = 0x1.ffffffp127

func putFloat32(dst []byte, v float64) error {
	if math.Abs(v) >= float32Limit && !math.IsInf(v, 0) {
		return ErrOverflow
	}
	binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	return nil
}

func putFloat64(dst []byte, v float64) error {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	return nil
}

// Packer serializes records according to a Spec. It is safe for
// concurrent use.
type Packer struct {
	spec Spec
	put  putFunc
}

// New validates spec and returns a Packer for it.
func New(spec Spec) (*Packer, error) {
	if spec.Count < 0 {
		return nil, fmt.Errorf("packet length cannot be negative: %d", spec.Count)
	}

	p := &Packer{spec: spec}
	switch spec.Width {
	case Float32:
		p.put = putFloat32
	case Float64:
		p.put = putFloat64
	default:
		return nil, fmt.Errorf("unsupported element width: %d bytes", int(spec.Width))
	}
	return p, nil
}

// Spec returns the packet layout.
func (p *Packer) Spec() Spec {
	return p.spec
}

// Size returns the payload size in bytes for n elements.
func (p *Packer) Size(n int) int {
	return n * int(p.spec.Width)
}

// Pack encodes rec. It yields ok == false and no payload when Encode
// fails.
func (p *Packer) Pack(rec []float64) (payload []byte, ok bool) {
	payload, err := p.Encode(rec)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Encode encodes rec. In fixed-length mode a record with the wrong number
// of elements returns ErrLengthMismatch. A finite element that does not fit
// the width returns an error wrapping ErrOverflow.
func (p *Packer) Encode(rec []float64) ([]byte, error) {
	if !p.spec.Dynamic() && len(rec) != p.spec.Count {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(rec), p.spec.Count)
	}

	w := int(p.spec.Width)
	payload := make([]byte, len(rec)*w)
	for i, v := range rec {
		if err := p.put(payload[i*w:], v); err != nil {
			return nil, fmt.Errorf("element %d (%g) as %s: %w", i+1, v, p.spec.Width, err)
		}
	}
	return payload, nil
}

// Unpack decodes a payload produced by Pack. The element count is implied
// by the payload length.
func Unpack(payload []byte, w Width) ([]float64, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("unsupported element width: %d bytes", int(w))
	}
	size := int(w)
	if len(payload)%size != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of %d", len(payload), size)
	}

	values := make([]float64, len(payload)/size)
	for i := range values {
		chunk := payload[i*size:]
		if w == Float32 {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		} else {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		}
	}
	return values, nil
}
