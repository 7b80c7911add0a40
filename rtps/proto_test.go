package rtps

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamString(t *testing.T) {

	cases := []struct{ s string }{
		{"i am a test"},
		{"tes"}, // already aligned with the terminator
		{""},    // empty
	}

	order := binary.LittleEndian

	for i, c := range cases {
		pstr := paramListItem{
			pid:   0x123, // don't care
			value: packParamString(order, c.s),
		}
		assert.Zero(t, len(pstr.value)&0x3, "[%d] packed str len not 32-bit aligned", i)
		strout, err := pstr.valToString(order)
		require.NoError(t, err, "[%d]", i)
		assert.Equal(t, c.s, strout, "[%d] str mismatch", i)
	}
}

func TestParamList(t *testing.T) {
	var buf bytes.Buffer
	items := []paramListItem{
		{pid: PID_TOPIC_NAME, value: packParamString(binary.LittleEndian, "chatter")},
		{pid: PID_STATUS_INFO, value: packParamUint32(binary.BigEndian, STATUSINFO_DISPOSE)},
		{pid: PID_SENTINEL},
		{pid: PID_TYPE_NAME, value: packParamString(binary.LittleEndian, "after sentinel")},
	}
	for i := range items {
		items[i].WriteTo(&buf)
	}

	plist, n, err := newParamList(binary.LittleEndian, buf.Bytes())
	require.NoError(t, err)
	require.Len(t, plist, 2)
	assert.Equal(t, buf.Len()-4-len(items[3].value), n)
	assert.Equal(t, paramID(PID_TOPIC_NAME), plist[0].pid)

	_, _, err = newParamList(binary.LittleEndian, []byte{0x05, 0, 0x40, 0, 1})
	assert.Error(t, err)
}

func TestDataSubmsgRoundtrip(t *testing.T) {
	gp := newGUIDPrefix()
	var msg bytes.Buffer
	newHeader(gp).WriteTo(&msg)
	d := submsgData{
		readerID:     ENTITYID_UNKNOWN,
		writerID:     userEntityID(3, ENTITYID_KIND_WRITER_WITH_KEY),
		writerSeqNum: newSeqNum(1, 2),
		inlineQos: []*paramListItem{
			{pid: PID_KEY_HASH, value: make([]byte, 16)},
		},
		data: []byte{0, 1, 0, 0, 42, 0, 0, 0},
	}
	d.WriteTo(&msg)

	b := msg.Bytes()
	hdr, err := newHeaderFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, gp, hdr.guidPrefix)
	assert.Equal(t, uint32(Magic), hdr.magic)

	sm, err := newSubMsgFromBytes(b[8+UDPGuidPrefixLen:])
	require.NoError(t, err)
	assert.Equal(t, uint8(SUBMSG_ID_DATA), sm.hdr.id)

	out, err := newDataFromSubMsg(sm)
	require.NoError(t, err)
	assert.Equal(t, d.writerID, out.writerID)
	assert.Equal(t, int64(1)<<32|2, int64(out.writerSeqNum))
	assert.Equal(t, d.data, out.data)
	kh, ok := out.param(PID_KEY_HASH)
	require.True(t, ok)
	assert.Len(t, kh.value, 16)
	_, ok = out.param(PID_STATUS_INFO)
	assert.False(t, ok)
}

func TestHeartbeatAckNackRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	hb := submsgHeartbeat{readerEID: 0x107, writerEID: 0x202, firstSeqNum: 3, lastSeqNum: 9, count: 4}
	hb.WriteTo(&buf)
	sm, err := newSubMsgFromBytes(buf.Bytes())
	require.NoError(t, err)
	hbOut, err := newHeartbeatFromSubMsg(sm)
	require.NoError(t, err)
	assert.Equal(t, hb.firstSeqNum, hbOut.firstSeqNum)
	assert.Equal(t, hb.lastSeqNum, hbOut.lastSeqNum)
	assert.Equal(t, hb.writerEID, hbOut.writerEID)
	assert.Equal(t, hb.count, hbOut.count)

	buf.Reset()
	an := submsgAckNack{readerEID: 0x107, writerEID: 0x202, readerSNState: newSeqNumSet(5, 40), count: 1}
	an.WriteTo(&buf)
	sm, err = newSubMsgFromBytes(buf.Bytes())
	require.NoError(t, err)
	anOut, err := newAckNackFromSubMsg(sm)
	require.NoError(t, err)
	assert.Equal(t, SeqNum(5), anOut.readerSNState.bitmapBase)
	assert.Equal(t, SeqNum(44), anOut.readerSNState.Last())
	assert.True(t, anOut.readerSNState.Contains(5))
	assert.True(t, anOut.readerSNState.Contains(44))
	assert.False(t, anOut.readerSNState.Contains(45))
	assert.False(t, anOut.readerSNState.Contains(4))
	assert.Equal(t, uint32(1), anOut.count)
}

func TestGapRoundtrip(t *testing.T) {
	cases := []struct {
		start, end SeqNum
		bits       uint32
	}{
		{1, 2, 0},
		{4, 9, 0},
		{7, 7, 33},
	}
	for i, c := range cases {
		var buf bytes.Buffer
		g := submsgGap{readerEID: 0x107, writerEID: 0x202, gapStart: c.start, gapList: newSeqNumSet(c.end, c.bits)}
		g.WriteTo(&buf)
		sm, err := newSubMsgFromBytes(buf.Bytes())
		require.NoError(t, err, "[%d]", i)
		out, err := newGapFromSubMsg(sm)
		require.NoError(t, err, "[%d]", i)
		assert.Equal(t, c.start, out.gapStart, "[%d]", i)
		assert.Equal(t, c.end, out.gapList.bitmapBase, "[%d]", i)
		assert.Equal(t, g.gapList.BitMapWords(), len(out.gapList.bitmap), "[%d]", i)
		assert.Equal(t, EntityID(0x202), out.writerEID, "[%d]", i)
	}

	// a gap starting at zero is malformed
	var buf bytes.Buffer
	bad := submsgGap{gapStart: 0, gapList: newSeqNumSet(2, 0)}
	bad.WriteTo(&buf)
	sm, err := newSubMsgFromBytes(buf.Bytes())
	require.NoError(t, err)
	_, err = newGapFromSubMsg(sm)
	assert.Error(t, err)
}

func TestSeqNumSet(t *testing.T) {
	sns := newSeqNumSet(1, 0)
	assert.True(t, sns.Valid())
	assert.Equal(t, SeqNum(0), sns.Last())
	assert.False(t, sns.Contains(1))

	sns = newSeqNumSet(1, 1000)
	assert.Equal(t, uint32(256), sns.numBits)
	assert.Equal(t, 8, sns.BitMapWords())

	bad := SeqNumSet{bitmapBase: 0}
	assert.False(t, bad.Valid())
}

func TestShortSubmsg(t *testing.T) {
	_, err := newSubMsgFromBytes([]byte{SUBMSG_ID_DATA, 1, 40, 0, 1, 2})
	assert.Error(t, err)
	_, err = newHeaderFromBytes([]byte("RTPS"))
	assert.Error(t, err)
	_, err = newDataFromSubMsg(&subMsg{bin: binary.LittleEndian, data: make([]byte, 8)})
	assert.Error(t, err)
}
