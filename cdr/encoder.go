package cdr

import (
	"encoding/binary"
	"math"
)

// encapsulation identifiers, always written big endian
const (
	SchemeCDRBE = 0x0000
	SchemeCDRLE = 0x0001

	HeaderLen = 4
)

// Encoder appends XCDR1 encoded values to a buffer.
// Alignment is relative to the first byte after the encapsulation header.
type Encoder struct {
	bin  binary.ByteOrder
	buf  []byte
	base int
}

// NewEncoder returns an encoder that writes an encapsulation header
// for the given byte order.
func NewEncoder(bin binary.ByteOrder) *Encoder {
	scheme := uint16(SchemeCDRLE)
	if bin == binary.BigEndian {
		scheme = SchemeCDRBE
	}
	e := &Encoder{bin: bin, buf: make([]byte, HeaderLen, 64), base: HeaderLen}
	binary.BigEndian.PutUint16(e.buf, scheme)
	return e
}

// newRawEncoder has no encapsulation header; used for key hashes.
func newRawEncoder(bin binary.ByteOrder) *Encoder {
	return &Encoder{bin: bin}
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len is the body length, excluding the encapsulation header.
func (e *Encoder) Len() int {
	return len(e.buf) - e.base
}

func (e *Encoder) align(n int) {
	for (len(e.buf)-e.base)%n != 0 {
		e.buf = append(e.buf, 0)
	}
}

func (e *Encoder) PutBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (e *Encoder) PutUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) PutUint16(v uint16) {
	e.align(2)
	var b [2]byte
	e.bin.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint32(v uint32) {
	e.align(4)
	var b [4]byte
	e.bin.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint64(v uint64) {
	e.align(8)
	var b [8]byte
	e.bin.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutFloat32(v float32) {
	e.PutUint32(math.Float32bits(v))
}

func (e *Encoder) PutFloat64(v float64) {
	e.PutUint64(math.Float64bits(v))
}

// PutString writes the length including the terminating NUL, the bytes, then NUL.
func (e *Encoder) PutString(s string) {
	e.PutUint32(uint32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// PutOctets writes a sequence<octet>.
func (e *Encoder) PutOctets(b []byte) {
	e.PutUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}
