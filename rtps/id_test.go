package rtps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserID(t *testing.T) {
	cases := []struct {
		kind     uint8
		isReader bool
		isWriter bool
	}{
		{ENTITYID_KIND_READER_NO_KEY, true, false},
		{ENTITYID_KIND_READER_WITH_KEY, true, false},
		{ENTITYID_KIND_WRITER_NO_KEY, false, true},
		{ENTITYID_KIND_WRITER_WITH_KEY, false, true},
	}

	for i, c := range cases {
		id := userEntityID(uint32(i+1), c.kind)
		assert.Equal(t, c.isReader, id.isReader(), "[%d] reader mismatch", i)
		assert.Equal(t, c.isWriter, id.isWriter(), "[%d] writer mismatch", i)
		assert.False(t, id.isBuiltin(), "[%d] user id should never be builtin", i)
		assert.Equal(t, c.kind, id.kind(), "[%d]", i)
	}
	assert.True(t, EntityID(ENTITYID_SPDP_BUILTIN_PARTICIPANT_WRITER).isBuiltin())
}

func TestGUIDPrefix(t *testing.T) {
	a, b := newGUIDPrefix(), newGUIDPrefix()
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte(MY_RTPS_VENDOR_ID>>8), a[0])
	assert.Equal(t, byte(MY_RTPS_VENDOR_ID&0xff), a[1])

	g := GUID{Prefix: a, EntityID: ENTITYID_PARTICIPANT}
	assert.Equal(t, g, guidFromBytes(g.Bytes()))
	assert.False(t, g.Unknown())
	assert.True(t, GUID{}.Unknown())
	assert.Contains(t, g.String(), "0x1c1")
	assert.Equal(t, "go-dds", vendorName(MY_RTPS_VENDOR_ID))
}
