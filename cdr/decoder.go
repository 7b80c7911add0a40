package cdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrScheme   = errors.New("cdr: unsupported encapsulation scheme")
	ErrTooLarge = errors.New("cdr: length exceeds remaining data")
)

// Decoder reads XCDR1 encoded values.
type Decoder struct {
	bin binary.ByteOrder
	b   []byte
	off int
}

// NewDecoder parses the encapsulation header of b and returns a
// decoder positioned at the start of the body.
func NewDecoder(b []byte) (*Decoder, error) {
	bin, err := Scheme(b)
	if err != nil {
		return nil, err
	}
	return &Decoder{bin: bin, b: b[HeaderLen:]}, nil
}

// Scheme reports the byte order of an encapsulated payload.
func Scheme(b []byte) (binary.ByteOrder, error) {
	if len(b) < HeaderLen {
		return nil, io.ErrUnexpectedEOF
	}
	switch binary.BigEndian.Uint16(b) {
	case SchemeCDRLE:
		return binary.LittleEndian, nil
	case SchemeCDRBE:
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: 0x%04x", ErrScheme, binary.BigEndian.Uint16(b))
}

// Remaining is the number of unread body bytes.
func (d *Decoder) Remaining() int {
	return len(d.b) - d.off
}

func (d *Decoder) align(n int) {
	if r := d.off % n; r != 0 {
		d.off += n - r
	}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.b) {
		return nil, io.ErrUnexpectedEOF
	}
	p := d.b[d.off : d.off+n]
	d.off += n
	return p, nil
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	return v != 0, err
}

func (d *Decoder) Uint8() (uint8, error) {
	p, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (d *Decoder) Uint16() (uint16, error) {
	d.align(2)
	p, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.bin.Uint16(p), nil
}

func (d *Decoder) Uint32() (uint32, error) {
	d.align(4)
	p, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.bin.Uint32(p), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	d.align(8)
	p, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.bin.Uint64(p), nil
}

func (d *Decoder) Float32() (float32, error) {
	v, err := d.Uint32()
	return math.Float32frombits(v), err
}

func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	return math.Float64frombits(v), err
}

func (d *Decoder) String() (string, error) {
	n, err := d.Uint32()
	if err != nil {
		return "", err
	}
	if n == 0 {
		// some writers send a zero length for the empty string
		return "", nil
	}
	if int(n) > d.Remaining() {
		return "", ErrTooLarge
	}
	p, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(p[:n-1]), nil
}

func (d *Decoder) Octets() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if int(n) > d.Remaining() {
		return nil, ErrTooLarge
	}
	p, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, p)
	return out, nil
}

// seqLen reads a sequence length and sanity checks it against the
// remaining data, assuming each element takes at least one byte.
func (d *Decoder) seqLen() (int, error) {
	n, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if int(n) > d.Remaining() {
		return 0, ErrTooLarge
	}
	return int(n), nil
}
