package cdr

import (
	"crypto/md5"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int32
}

type shape struct {
	ID     int64 `dds:"key"`
	Name   string
	Origin point
	Path   []point
	Tags   [2]uint16
	Blob   []byte
	Scale  float64
	Closed bool
	cached int
}

type named struct {
	Name string `dds:"key"`
	N    int8
}

type nestedKey struct {
	Loc  point `dds:"key"`
	Temp float32
}

func TestMarshalRoundtrip(t *testing.T) {
	cases := []struct{ v shape }{
		{shape{}},
		{shape{ID: -7, Name: "square", Origin: point{1, 2}, Path: []point{{3, 4}, {5, 6}},
			Tags: [2]uint16{9, 10}, Blob: []byte{1, 2, 3}, Scale: 1.5, Closed: true}},
	}

	for i, c := range cases {
		b, err := Marshal(&c.v)
		require.NoError(t, err, "[%d]", i)
		assert.Equal(t, []byte{0, 1, 0, 0}, b[:HeaderLen], "[%d] encapsulation", i)

		var out shape
		require.NoError(t, Unmarshal(b, &out), "[%d]", i)
		c.v.cached = 0
		if c.v.Path == nil {
			c.v.Path = []point{}
		}
		if c.v.Blob == nil {
			c.v.Blob = []byte{}
		}
		assert.Equal(t, c.v, out, "[%d]", i)
	}
}

func TestMarshalBigEndian(t *testing.T) {
	b, err := MarshalOrder(point{X: 1, Y: 2}, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 2}, b)

	var p point
	require.NoError(t, Unmarshal(b, &p))
	assert.Equal(t, point{1, 2}, p)
}

func TestAlignment(t *testing.T) {
	v := struct {
		A uint8
		B uint64
	}{1, 2}
	b, err := Marshal(v)
	require.NoError(t, err)
	// 1 byte, 7 pad, 8 bytes
	assert.Len(t, b, HeaderLen+16)
}

func TestUnmarshalErrors(t *testing.T) {
	var p point
	assert.Error(t, Unmarshal([]byte{0, 1}, &p))
	assert.ErrorIs(t, Unmarshal([]byte{0, 9, 0, 0, 1, 2, 3, 4}, &p), ErrScheme)
	assert.Error(t, Unmarshal([]byte{0, 1, 0, 0, 1, 0, 0, 0}, &p))
	assert.Error(t, Unmarshal([]byte{0, 1, 0, 0}, p))

	var unsupported struct{ C chan int }
	_, err := Marshal(unsupported)
	var ute *UnsupportedTypeError
	assert.ErrorAs(t, err, &ute)
}

func TestCompile(t *testing.T) {
	prog, err := Compile(reflect.TypeOf(shape{}))
	require.NoError(t, err)
	assert.False(t, prog.FixedSize)
	require.Len(t, prog.Keys, 1)
	assert.Equal(t, "ID", prog.Keys[0].Name)
	assert.Equal(t, uint32(0), prog.Keys[0].Index)
	assert.Equal(t, OpRTS, prog.Ops[len(prog.Ops)-1])
	assert.True(t, HasKey(prog.Ops))

	prog, err = Compile(reflect.TypeOf(nestedKey{}))
	require.NoError(t, err)
	assert.True(t, prog.FixedSize)
	require.Len(t, prog.Keys, 2)
	assert.Equal(t, "Loc.X", prog.Keys[0].Name)
	assert.Equal(t, "Loc.Y", prog.Keys[1].Name)
	assert.Equal(t, uintptr(4), prog.Keys[1].Offset)

	prog, err = Compile(reflect.TypeOf(point{}))
	require.NoError(t, err)
	assert.False(t, HasKey(prog.Ops))

	_, err = Compile(reflect.TypeOf(0))
	assert.Error(t, err)
}

func TestKeyHash(t *testing.T) {
	prog, err := Compile(reflect.TypeOf(shape{}))
	require.NoError(t, err)

	a, _ := Marshal(shape{ID: 0x0102030405060708, Name: "a"})
	b, _ := Marshal(shape{ID: 0x0102030405060708, Name: "b", Path: []point{{1, 1}}})
	ka, err := KeyHash(prog.Ops, a)
	require.NoError(t, err)
	kb, err := KeyHash(prog.Ops, b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb, "non-key members must not change the key hash")
	assert.Equal(t, [16]byte{1, 2, 3, 4, 5, 6, 7, 8}, ka)

	// same key, big endian payload
	be, _ := MarshalOrder(shape{ID: 0x0102030405060708}, binary.BigEndian)
	kbe, err := KeyHash(prog.Ops, be)
	require.NoError(t, err)
	assert.Equal(t, ka, kbe)

	nprog, err := Compile(reflect.TypeOf(named{}))
	require.NoError(t, err)
	n, _ := Marshal(named{Name: "x"})
	kn, err := KeyHash(nprog.Ops, n)
	require.NoError(t, err)
	assert.Equal(t, [16]byte(md5.Sum([]byte{0, 0, 0, 2, 'x', 0})), kn)

	_, err = KeyHash(prog.Ops, n)
	assert.Error(t, err, "payload of another type must not validate")
	assert.Error(t, Validate(prog.Ops, []byte{0, 1, 0, 0}))
}
