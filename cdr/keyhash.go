package cdr

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrBadProgram = errors.New("cdr: malformed op-code program")

// KeyHashLen is the size of an RTPS key hash.
const KeyHashLen = 16

// KeyHash walks an encapsulated payload with the op-code program and
// returns the RTPS key hash: the big-endian CDR encoding of the key
// members, zero padded to 16 bytes, or its MD5 digest when the key is
// longer or not of bounded size. A program with no keys yields the zero hash.
// The walk also validates that the payload matches the program.
func KeyHash(ops []uint32, payload []byte) ([KeyHashLen]byte, error) {
	var kh [KeyHashLen]byte
	d, err := NewDecoder(payload)
	if err != nil {
		return kh, err
	}
	w := &walker{ops: ops, d: d, key: newRawEncoder(binary.BigEndian)}
	pc, err := w.members(0, false)
	if err != nil {
		return kh, err
	}
	if pc != len(ops) {
		return kh, ErrBadProgram
	}
	kb := w.key.Bytes()
	if w.unbounded || len(kb) > KeyHashLen {
		return md5.Sum(kb), nil
	}
	copy(kh[:], kb)
	return kh, nil
}

// Validate checks that payload decodes cleanly against ops.
func Validate(ops []uint32, payload []byte) error {
	_, err := KeyHash(ops, payload)
	return err
}

type walker struct {
	ops       []uint32
	d         *Decoder
	key       *Encoder
	unbounded bool
}

// members runs a member list until its OpRTS and returns the pc after it.
func (w *walker) members(pc int, inKey bool) (int, error) {
	for {
		if pc >= len(w.ops) {
			return pc, ErrBadProgram
		}
		if opCode(w.ops[pc]) == OpRTS {
			return pc + 1, nil
		}
		next, err := w.value(pc, inKey || isKeyOp(w.ops[pc]))
		if err != nil {
			return pc, err
		}
		pc = next
	}
}

// value consumes one value described at pc.
func (w *walker) value(pc int, key bool) (int, error) {
	if pc >= len(w.ops) || opCode(w.ops[pc]) != OpADR {
		return pc, ErrBadProgram
	}
	op := w.ops[pc]
	switch opType(op) {
	case TypeBLN, Type1BY:
		v, err := w.d.Uint8()
		if err != nil {
			return pc, err
		}
		if key {
			w.key.PutUint8(v)
		}
	case Type2BY:
		v, err := w.d.Uint16()
		if err != nil {
			return pc, err
		}
		if key {
			w.key.PutUint16(v)
		}
	case Type4BY:
		v, err := w.d.Uint32()
		if err != nil {
			return pc, err
		}
		if key {
			w.key.PutUint32(v)
		}
	case Type8BY:
		v, err := w.d.Uint64()
		if err != nil {
			return pc, err
		}
		if key {
			w.key.PutUint64(v)
		}
	case TypeSTR:
		s, err := w.d.String()
		if err != nil {
			return pc, err
		}
		if key {
			w.unbounded = true
			w.key.PutString(s)
		}
	case TypeSEQ:
		n, err := w.d.seqLen()
		if err != nil {
			return pc, err
		}
		if key {
			w.unbounded = true
			w.key.PutUint32(uint32(n))
		}
		for i := 0; i < n; i++ {
			if _, err := w.value(pc+1, key); err != nil {
				return pc, err
			}
		}
		return skip(w.ops, pc+1), nil
	case TypeARR:
		if pc+2 >= len(w.ops) {
			return pc, ErrBadProgram
		}
		n := int(w.ops[pc+1])
		for i := 0; i < n; i++ {
			if _, err := w.value(pc+2, key); err != nil {
				return pc, err
			}
		}
		return skip(w.ops, pc+2), nil
	case TypeSTU:
		return w.members(pc+1, key)
	default:
		return pc, fmt.Errorf("%w: type 0x%x at %d", ErrBadProgram, opType(op)>>16, pc)
	}
	return pc + 1, nil
}
