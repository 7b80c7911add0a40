package cdr

import (
	"reflect"
)

// Marshalling op-codes. Each word is op<<24 | type<<16 | flags.
// A program is the member list of the top-level struct followed by OpRTS.
//
//	ADR|prim            primitive or string member
//	ADR|SEQ, elem       sequence, followed by the element descriptor
//	ADR|ARR, n, elem    array of n elements
//	ADR|STU, ..., RTS   nested struct members
const (
	OpRTS uint32 = 0x00 << 24
	OpADR uint32 = 0x01 << 24

	Type1BY uint32 = 0x01 << 16
	Type2BY uint32 = 0x02 << 16
	Type4BY uint32 = 0x03 << 16
	Type8BY uint32 = 0x04 << 16
	TypeSTR uint32 = 0x05 << 16
	TypeSEQ uint32 = 0x06 << 16
	TypeARR uint32 = 0x07 << 16
	TypeSTU uint32 = 0x08 << 16
	TypeBLN uint32 = 0x09 << 16

	FlagKey    uint32 = 0x01
	FlagSigned uint32 = 0x02
	FlagFP     uint32 = 0x04

	opMask   uint32 = 0xff << 24
	typeMask uint32 = 0xff << 16
)

func opCode(w uint32) uint32 { return w & opMask }
func opType(w uint32) uint32 { return w & typeMask }
func isKeyOp(w uint32) bool  { return w&FlagKey != 0 }

// Key describes one key member of a compiled type.
type Key struct {
	Name   string  // dotted path from the top-level struct
	Offset uintptr // byte offset in the Go value
	Index  uint32  // position of the member in the program
}

// Program is the compiled form of a Go struct type.
type Program struct {
	Ops       []uint32
	Keys      []Key
	FixedSize bool // no strings or sequences anywhere
}

// Compile builds the op-code program for a struct type.
func Compile(t reflect.Type) (*Program, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &UnsupportedTypeError{t}
	}
	c := &compiler{prog: &Program{FixedSize: true}}
	if err := c.members(t, "", 0, false); err != nil {
		return nil, err
	}
	c.prog.Ops = append(c.prog.Ops, OpRTS)
	return c.prog, nil
}

type compiler struct {
	prog   *Program
	member uint32
}

func (c *compiler) members(t reflect.Type, prefix string, base uintptr, inKey bool) error {
	for _, f := range fields(t) {
		key := inKey || IsKey(f)
		name := prefix + f.Name
		if key && f.Type.Kind() != reflect.Struct {
			c.prog.Keys = append(c.prog.Keys, Key{Name: name, Offset: base + f.Offset, Index: c.member})
		}
		c.member++
		if err := c.value(f.Type, name, base+f.Offset, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) value(t reflect.Type, name string, off uintptr, key bool) error {
	var flags uint32
	if key {
		flags |= FlagKey
	}
	switch t.Kind() {
	case reflect.Bool:
		c.emit(OpADR | TypeBLN | flags)
	case reflect.Int8:
		c.emit(OpADR | Type1BY | flags | FlagSigned)
	case reflect.Uint8:
		c.emit(OpADR | Type1BY | flags)
	case reflect.Int16:
		c.emit(OpADR | Type2BY | flags | FlagSigned)
	case reflect.Uint16:
		c.emit(OpADR | Type2BY | flags)
	case reflect.Int32:
		c.emit(OpADR | Type4BY | flags | FlagSigned)
	case reflect.Uint32:
		c.emit(OpADR | Type4BY | flags)
	case reflect.Float32:
		c.emit(OpADR | Type4BY | flags | FlagFP)
	case reflect.Int64, reflect.Int:
		c.emit(OpADR | Type8BY | flags | FlagSigned)
	case reflect.Uint64, reflect.Uint:
		c.emit(OpADR | Type8BY | flags)
	case reflect.Float64:
		c.emit(OpADR | Type8BY | flags | FlagFP)
	case reflect.String:
		c.prog.FixedSize = false
		c.emit(OpADR | TypeSTR | flags)
	case reflect.Slice:
		c.prog.FixedSize = false
		c.emit(OpADR | TypeSEQ | flags)
		return c.value(t.Elem(), name, 0, key)
	case reflect.Array:
		c.emit(OpADR|TypeARR|flags, uint32(t.Len()))
		return c.value(t.Elem(), name, 0, key)
	case reflect.Struct:
		c.emit(OpADR | TypeSTU | flags)
		if err := c.members(t, name+".", off, key); err != nil {
			return err
		}
		c.emit(OpRTS)
	default:
		return &UnsupportedTypeError{t}
	}
	return nil
}

func (c *compiler) emit(w ...uint32) {
	c.prog.Ops = append(c.prog.Ops, w...)
}

// skip returns the index of the word following the descriptor at pc.
func skip(ops []uint32, pc int) int {
	switch opType(ops[pc]) {
	case TypeSEQ:
		return skip(ops, pc+1)
	case TypeARR:
		return skip(ops, pc+2)
	case TypeSTU:
		p := pc + 1
		for p < len(ops) && opCode(ops[p]) != OpRTS {
			p = skip(ops, p)
		}
		return p + 1
	}
	return pc + 1
}

// HasKey reports whether any member of the program is a key.
func HasKey(ops []uint32) bool {
	for _, w := range ops {
		if opCode(w) == OpADR && isKeyOp(w) {
			return true
		}
	}
	return false
}
