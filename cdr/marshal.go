package cdr

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strings"
)

// UnsupportedTypeError is returned for Go kinds with no CDR mapping.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	return "cdr: unsupported type " + e.Type.String()
}

// Marshal encodes v as CDR_LE with an encapsulation header.
func Marshal(v any) ([]byte, error) {
	return MarshalOrder(v, binary.LittleEndian)
}

func MarshalOrder(v any, bin binary.ByteOrder) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("cdr: marshal nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	e := NewEncoder(bin)
	if err := e.encode(rv); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Unmarshal decodes an encapsulated payload into the value pointed to by v.
func Unmarshal(b []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("cdr: unmarshal needs a non-nil pointer, got %T", v)
	}
	d, err := NewDecoder(b)
	if err != nil {
		return err
	}
	return d.decode(rv.Elem())
}

// fields lists the exported, serialized fields of a struct type.
func fields(t reflect.Type) []reflect.StructField {
	var out []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("dds") == "-" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// IsKey reports whether a struct field carries the key tag.
func IsKey(f reflect.StructField) bool {
	for _, opt := range strings.Split(f.Tag.Get("dds"), ",") {
		if opt == "key" {
			return true
		}
	}
	return false
}

func (e *Encoder) encode(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		e.PutBool(v.Bool())
	case reflect.Int8:
		e.PutUint8(uint8(v.Int()))
	case reflect.Uint8:
		e.PutUint8(uint8(v.Uint()))
	case reflect.Int16:
		e.PutUint16(uint16(v.Int()))
	case reflect.Uint16:
		e.PutUint16(uint16(v.Uint()))
	case reflect.Int32:
		e.PutUint32(uint32(v.Int()))
	case reflect.Uint32:
		e.PutUint32(uint32(v.Uint()))
	case reflect.Int64, reflect.Int:
		e.PutUint64(uint64(v.Int()))
	case reflect.Uint64, reflect.Uint:
		e.PutUint64(v.Uint())
	case reflect.Float32:
		e.PutFloat32(float32(v.Float()))
	case reflect.Float64:
		e.PutFloat64(v.Float())
	case reflect.String:
		e.PutString(v.String())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			e.PutOctets(v.Bytes())
			return nil
		}
		e.PutUint32(uint32(v.Len()))
		for i := 0; i < v.Len(); i++ {
			if err := e.encode(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := e.encode(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for _, f := range fields(v.Type()) {
			if err := e.encode(v.FieldByIndex(f.Index)); err != nil {
				return err
			}
		}
	default:
		return &UnsupportedTypeError{v.Type()}
	}
	return nil
}

func (d *Decoder) decode(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Bool:
		b, err := d.Bool()
		v.SetBool(b)
		return err
	case reflect.Int8:
		n, err := d.Uint8()
		v.SetInt(int64(int8(n)))
		return err
	case reflect.Uint8:
		n, err := d.Uint8()
		v.SetUint(uint64(n))
		return err
	case reflect.Int16:
		n, err := d.Uint16()
		v.SetInt(int64(int16(n)))
		return err
	case reflect.Uint16:
		n, err := d.Uint16()
		v.SetUint(uint64(n))
		return err
	case reflect.Int32:
		n, err := d.Uint32()
		v.SetInt(int64(int32(n)))
		return err
	case reflect.Uint32:
		n, err := d.Uint32()
		v.SetUint(uint64(n))
		return err
	case reflect.Int64, reflect.Int:
		n, err := d.Uint64()
		v.SetInt(int64(n))
		return err
	case reflect.Uint64, reflect.Uint:
		n, err := d.Uint64()
		v.SetUint(n)
		return err
	case reflect.Float32:
		f, err := d.Float32()
		v.SetFloat(float64(f))
		return err
	case reflect.Float64:
		f, err := d.Float64()
		v.SetFloat(f)
		return err
	case reflect.String:
		s, err := d.String()
		v.SetString(s)
		return err
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b, err := d.Octets()
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		}
		n, err := d.seqLen()
		if err != nil {
			return err
		}
		s := reflect.MakeSlice(v.Type(), n, n)
		for i := 0; i < n; i++ {
			if err := d.decode(s.Index(i)); err != nil {
				return err
			}
		}
		v.Set(s)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := d.decode(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for _, f := range fields(v.Type()) {
			if err := d.decode(v.FieldByIndex(f.Index)); err != nil {
				return err
			}
		}
	default:
		return &UnsupportedTypeError{v.Type()}
	}
	return nil
}
