package rtps

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// XXX: too much copying, use zero copy buffers

const (
	FRUDP_FLAGS_LITTLE_ENDIAN = 0x01
	FRUDP_FLAGS_INLINE_QOS    = 0x02
	FRUDP_FLAGS_DATA_PRESENT  = 0x04

	FLAGS_SM_ENDIAN = 0x01 // applies to all submessages

	FLAGS_INFOTS_INVALIDATE = 0x2

	FLAGS_DATA_INLINE_QOS = 0x02
	FLAGS_DATA_DATAFLAG   = 0x04
	FLAGS_DATA_KEYFLAG    = 0x08

	FLAGS_ACKNACK_FINAL = 0x02

	FLAGS_HEARTBEAT_FLAG_FINAL      = 0x02
	FLAGS_HEARTBEAT_FLAG_LIVELINESS = 0x04

	SUBMSG_ID_PAD            = 0x01
	SUBMSG_ID_ACKNACK        = 0x06
	SUBMSG_ID_HEARTBEAT      = 0x07
	SUBMSG_ID_GAP            = 0x08
	SUBMSG_ID_INFO_TS        = 0x09
	SUBMSG_ID_INFO_SRC       = 0x0c
	SUBMSG_ID_INFO_REPLY_IP4 = 0x0d
	SUBMSG_ID_INFO_DST       = 0x0e
	SUBMSG_ID_INFO_REPLY     = 0x0f
	SUBMSG_ID_NACK_FRAG      = 0x12
	SUBMSG_ID_HEARTBEAT_FRAG = 0x13
	SUBMSG_ID_DATA           = 0x15
	SUBMSG_ID_DATA_FRAG      = 0x16

	SCHEME_CDR_BE    = 0x0000
	SCHEME_CDR_LE    = 0x0001
	SCHEME_PL_CDR_LE = 0x0003

	MY_RTPS_VERSION_MAJOR = 2
	MY_RTPS_VERSION_MINOR = 1
)

const (
	PID_PAD                           = 0x0000
	PID_SENTINEL                      = 0x0001
	PID_PARTICIPANT_LEASE_DURATION    = 0x0002
	PID_TOPIC_NAME                    = 0x0005
	PID_TYPE_NAME                     = 0x0007
	PID_PROTOCOL_VERSION              = 0x0015
	PID_VENDOR_ID                     = 0x0016
	PID_RELIABILITY                   = 0x001a
	PID_LIVELINESS                    = 0x001b
	PID_DURABILITY                    = 0x001d
	PID_PRESENTATION                  = 0x0021
	PID_PARTITION                     = 0x0029
	PID_DEFAULT_UNICAST_LOCATOR       = 0x0031
	PID_METATRAFFIC_UNICAST_LOCATOR   = 0x0032
	PID_METATRAFFIC_MULTICAST_LOCATOR = 0x0033
	PID_HISTORY                       = 0x0040
	PID_DEFAULT_MULTICAST_LOCATOR     = 0x0048
	PID_TRANSPORT_PRIORITY            = 0x0049
	PID_PARTICIPANT_GUID              = 0x0050
	PID_BUILTIN_ENDPOINT_SET          = 0x0058
	PID_PROPERTY_LIST                 = 0x0059
	PID_ENDPOINT_GUID                 = 0x005a
	PID_ENTITY_NAME                   = 0x0062
	PID_KEY_HASH                      = 0x0070
	PID_STATUS_INFO                   = 0x0071
)

// PID_STATUS_INFO flags
const (
	STATUSINFO_DISPOSE    = 0x1
	STATUSINFO_UNREGISTER = 0x2
)

const (
	FRUDP_BUILTIN_EP_PARTICIPANT_ANNOUNCER  = 0x00000001
	FRUDP_BUILTIN_EP_PARTICIPANT_DETECTOR   = 0x00000002
	FRUDP_BUILTIN_EP_PUBLICATION_ANNOUNCER  = 0x00000004
	FRUDP_BUILTIN_EP_PUBLICATION_DETECTOR   = 0x00000008
	FRUDP_BUILTIN_EP_SUBSCRIPTION_ANNOUNCER = 0x00000010
	FRUDP_BUILTIN_EP_SUBSCRIPTION_DETECTOR  = 0x00000020
)

const (
	MaxSeqNum = 0x7fffffffffffffff
)

var errShortSubmsg = errors.New("rtps: short submessage")

type SeqNum int64

func newSeqNum(hi int32, lo uint32) SeqNum {
	return SeqNum(int64(hi)<<32 | int64(lo))
}

func (sn SeqNum) put(bin binary.ByteOrder, b []byte) {
	bin.PutUint32(b[0:], uint32(int64(sn)>>32))
	bin.PutUint32(b[4:], uint32(sn))
}

func seqNumFromBytes(bin binary.ByteOrder, b []byte) SeqNum {
	return newSeqNum(int32(bin.Uint32(b[0:])), bin.Uint32(b[4:]))
}

type ProtoVersion struct {
	major uint8
	minor uint8
}

type Header struct {
	magic      uint32 // RTPS in ASCII
	protoVer   ProtoVersion
	vid        VendorID // vendor ID
	guidPrefix GUIDPrefix
}

func newHeader(gp GUIDPrefix) *Header {
	return &Header{
		magic:      Magic,
		protoVer:   ProtoVersion{MY_RTPS_VERSION_MAJOR, MY_RTPS_VERSION_MINOR},
		vid:        MY_RTPS_VENDOR_ID,
		guidPrefix: gp,
	}
}

func (h *Header) WriteTo(w io.Writer) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:], h.magic)
	b[4], b[5] = h.protoVer.major, h.protoVer.minor
	binary.BigEndian.PutUint16(b[6:], uint16(h.vid))
	w.Write(b)
	w.Write(h.guidPrefix[:])
}

func newHeaderFromBytes(b []byte) (*Header, error) {
	if len(b) < 8+UDPGuidPrefixLen {
		return nil, io.EOF
	}

	hdr := &Header{
		magic:    binary.BigEndian.Uint32(b[0:]),
		protoVer: ProtoVersion{major: b[4], minor: b[5]},
		vid:      VendorID(binary.BigEndian.Uint16(b[6:])),
	}
	copy(hdr.guidPrefix[:], b[8:8+UDPGuidPrefixLen])

	return hdr, nil
}

type SeqNumSet struct {
	bitmapBase SeqNum   // first sequence number in the set
	numBits    uint32   // total bit count
	bitmap     []uint32 // as many uint32s required by numBits
}

// newSeqNumSet covers [base, base+n) with every bit set.
func newSeqNumSet(base SeqNum, n uint32) SeqNumSet {
	if n > 256 {
		n = 256
	}
	sns := SeqNumSet{bitmapBase: base, numBits: n}
	sns.bitmap = make([]uint32, sns.BitMapWords())
	for i := uint32(0); i < n; i++ {
		sns.bitmap[i/32] |= 1 << (31 - i%32)
	}
	return sns
}

func (sns *SeqNumSet) Valid() bool {
	if sns.bitmapBase <= 0 {
		return false
	}
	if sns.numBits > 256 {
		return false
	}
	return true
}

func (sns *SeqNumSet) BitMapWords() int {
	return int((sns.numBits + 31) / 32)
}

// Last is the highest sequence number the set can describe.
func (sns *SeqNumSet) Last() SeqNum {
	if sns.numBits == 0 {
		return sns.bitmapBase - 1
	}
	return sns.bitmapBase + SeqNum(sns.numBits) - 1
}

func (sns *SeqNumSet) Contains(sn SeqNum) bool {
	if sn < sns.bitmapBase || sn > sns.Last() {
		return false
	}
	i := uint32(sn - sns.bitmapBase)
	if int(i/32) >= len(sns.bitmap) {
		return false
	}
	return sns.bitmap[i/32]&(1<<(31-i%32)) != 0
}

type submsgHeader struct {
	id    uint8
	flags uint8
	sz    uint16
}

func (s *submsgHeader) WriteTo(w io.Writer) {
	b := make([]byte, 4)
	b[0], b[1] = s.id, s.flags
	binary.LittleEndian.PutUint16(b[2:], s.sz)
	w.Write(b)
}

type subMsg struct {
	hdr  submsgHeader
	bin  binary.ByteOrder // relevant for packing/unpacking
	data []uint8
}

func newSubMsgFromBytes(b []byte) (*subMsg, error) {
	if len(b) < 4 {
		return nil, io.EOF
	}
	sm := &subMsg{
		hdr: submsgHeader{
			id:    b[0],
			flags: b[1],
		},
	}
	if sm.hdr.flags&FLAGS_SM_ENDIAN != 0 {
		sm.bin = binary.LittleEndian
	} else {
		sm.bin = binary.BigEndian
	}
	sm.hdr.sz = sm.bin.Uint16(b[2:])

	// make sure we can trust sm.hdr.sz
	if len(b) < int(sm.hdr.sz)+4 {
		return nil, io.EOF
	}

	sm.data = b[4 : 4+sm.hdr.sz]
	return sm, nil
}

// helper to create a subMsg of type SUBMSG_ID_INFO_TS
func newTsSubMsg(t time.Time, order binary.ByteOrder) *subMsg {
	return &subMsg{
		hdr: submsgHeader{
			id:    SUBMSG_ID_INFO_TS,
			flags: FRUDP_FLAGS_LITTLE_ENDIAN,
			sz:    8,
		},
		data: timeToBytes(t, order),
	}
}

// helper to create a subMsg of type SUBMSG_ID_INFO_DST
func newInfoDstSubMsg(gp GUIDPrefix) *subMsg {
	return &subMsg{
		hdr: submsgHeader{
			id:    SUBMSG_ID_INFO_DST,
			flags: FRUDP_FLAGS_LITTLE_ENDIAN,
			sz:    UDPGuidPrefixLen,
		},
		data: gp[:],
	}
}

func (s *subMsg) WriteTo(w io.Writer) {
	s.hdr.WriteTo(w)
	w.Write(s.data)
}

type submsgData struct {
	hdr               submsgHeader
	extraflags        uint16
	octetsToInlineQos uint16
	readerID          EntityID
	writerID          EntityID
	writerSeqNum      SeqNum
	inlineQos         []*paramListItem
	data              []uint8 // serialized payload, including encapsulation header
}

func (s *submsgData) WriteTo(w io.Writer) {
	var qbuf bytes.Buffer
	if len(s.inlineQos) > 0 {
		s.hdr.flags |= FLAGS_DATA_INLINE_QOS
		for _, p := range s.inlineQos {
			p.WriteTo(&qbuf)
		}
		sentinel := paramListItem{pid: PID_SENTINEL}
		sentinel.WriteTo(&qbuf)
	}
	if len(s.data) > 0 {
		s.hdr.flags |= FLAGS_DATA_DATAFLAG
	}
	s.hdr.id = SUBMSG_ID_DATA
	s.hdr.flags |= FLAGS_SM_ENDIAN
	s.hdr.sz = uint16(20 + qbuf.Len() + len(s.data))
	s.octetsToInlineQos = 16
	s.hdr.WriteTo(w)

	b := make([]byte, 20)
	binary.LittleEndian.PutUint16(b[0:], s.extraflags)
	binary.LittleEndian.PutUint16(b[2:], s.octetsToInlineQos)
	binary.BigEndian.PutUint32(b[4:], uint32(s.readerID))
	binary.BigEndian.PutUint32(b[8:], uint32(s.writerID))
	s.writerSeqNum.put(binary.LittleEndian, b[12:])
	w.Write(b)
	w.Write(qbuf.Bytes())
	w.Write(s.data)
}

func newDataFromSubMsg(sm *subMsg) (*submsgData, error) {
	if len(sm.data) < 20 {
		return nil, errShortSubmsg
	}
	smd := &submsgData{
		hdr:               sm.hdr,
		extraflags:        sm.bin.Uint16(sm.data[0:]),
		octetsToInlineQos: sm.bin.Uint16(sm.data[2:]),
		readerID:          EntityID(binary.BigEndian.Uint32(sm.data[4:])),
		writerID:          EntityID(binary.BigEndian.Uint32(sm.data[8:])),
		writerSeqNum:      seqNumFromBytes(sm.bin, sm.data[12:]),
	}

	off := 4 + int(smd.octetsToInlineQos)
	if off > len(sm.data) {
		return nil, errShortSubmsg
	}
	b := sm.data[off:]

	// parse inline QoS parameters
	if sm.hdr.flags&FLAGS_DATA_INLINE_QOS != 0 {
		plist, n, err := newParamList(sm.bin, b)
		if err != nil {
			return nil, err
		}
		smd.inlineQos = plist
		b = b[n:]
	}
	if sm.hdr.flags&(FLAGS_DATA_DATAFLAG|FLAGS_DATA_KEYFLAG) != 0 {
		smd.data = b
	}
	return smd, nil
}

// param returns the first inline QoS parameter with the given id.
func (s *submsgData) param(pid paramID) (*paramListItem, bool) {
	for _, p := range s.inlineQos {
		if p.pid == pid {
			return p, true
		}
	}
	return nil, false
}

type submsgHeartbeat struct {
	hdr         submsgHeader
	readerEID   EntityID
	writerEID   EntityID
	firstSeqNum SeqNum
	lastSeqNum  SeqNum
	count       uint32
}

func (s *submsgHeartbeat) WriteTo(w io.Writer) {
	s.hdr.id = SUBMSG_ID_HEARTBEAT
	s.hdr.flags |= FLAGS_SM_ENDIAN
	s.hdr.sz = 28
	s.hdr.WriteTo(w)

	b := make([]byte, 28)
	binary.BigEndian.PutUint32(b[0:], uint32(s.readerEID))
	binary.BigEndian.PutUint32(b[4:], uint32(s.writerEID))
	s.firstSeqNum.put(binary.LittleEndian, b[8:])
	s.lastSeqNum.put(binary.LittleEndian, b[16:])
	binary.LittleEndian.PutUint32(b[24:], s.count)
	w.Write(b)
}

func newHeartbeatFromSubMsg(sm *subMsg) (*submsgHeartbeat, error) {
	if len(sm.data) < 28 {
		return nil, errShortSubmsg
	}
	return &submsgHeartbeat{
		hdr:         sm.hdr,
		readerEID:   EntityID(binary.BigEndian.Uint32(sm.data[0:])),
		writerEID:   EntityID(binary.BigEndian.Uint32(sm.data[4:])),
		firstSeqNum: seqNumFromBytes(sm.bin, sm.data[8:]),
		lastSeqNum:  seqNumFromBytes(sm.bin, sm.data[16:]),
		count:       sm.bin.Uint32(sm.data[24:]),
	}, nil
}

type submsgAckNack struct {
	hdr           submsgHeader
	readerEID     EntityID
	writerEID     EntityID
	readerSNState SeqNumSet
	count         uint32
}

func (s *submsgAckNack) WriteTo(w io.Writer) {
	sz := 24 + s.readerSNState.BitMapWords()*4
	s.hdr.id = SUBMSG_ID_ACKNACK
	s.hdr.flags |= FLAGS_SM_ENDIAN
	s.hdr.sz = uint16(sz)
	s.hdr.WriteTo(w)

	b := make([]byte, sz)
	binary.BigEndian.PutUint32(b[0:], uint32(s.readerEID))
	binary.BigEndian.PutUint32(b[4:], uint32(s.writerEID))

	s.readerSNState.bitmapBase.put(binary.LittleEndian, b[8:])
	binary.LittleEndian.PutUint32(b[16:], s.readerSNState.numBits)
	for i, n := range s.readerSNState.bitmap {
		binary.LittleEndian.PutUint32(b[20+i*4:], n)
	}
	binary.LittleEndian.PutUint32(b[sz-4:], s.count)
	w.Write(b)
}

func newAckNackFromSubMsg(sm *subMsg) (*submsgAckNack, error) {
	if len(sm.data) < 24 {
		return nil, errShortSubmsg
	}
	an := &submsgAckNack{
		hdr:       sm.hdr,
		readerEID: EntityID(binary.BigEndian.Uint32(sm.data[0:])),
		writerEID: EntityID(binary.BigEndian.Uint32(sm.data[4:])),
		readerSNState: SeqNumSet{
			bitmapBase: seqNumFromBytes(sm.bin, sm.data[8:]),
			numBits:    sm.bin.Uint32(sm.data[16:]),
		},
	}
	if !an.readerSNState.Valid() {
		return nil, errShortSubmsg
	}
	words := an.readerSNState.BitMapWords()
	if len(sm.data) < 24+words*4 {
		return nil, errShortSubmsg
	}
	an.readerSNState.bitmap = make([]uint32, words)
	for i := range an.readerSNState.bitmap {
		an.readerSNState.bitmap[i] = sm.bin.Uint32(sm.data[20+i*4:])
	}
	an.count = sm.bin.Uint32(sm.data[20+words*4:])
	return an, nil
}

// submsgGap marks [gapStart, gapList.bitmapBase) and the members of gapList
// as irrelevant to the reader.
type submsgGap struct {
	hdr       submsgHeader
	readerEID EntityID
	writerEID EntityID
	gapStart  SeqNum
	gapList   SeqNumSet
}

func (s *submsgGap) WriteTo(w io.Writer) {
	sz := 28 + s.gapList.BitMapWords()*4
	s.hdr.id = SUBMSG_ID_GAP
	s.hdr.flags |= FLAGS_SM_ENDIAN
	s.hdr.sz = uint16(sz)
	s.hdr.WriteTo(w)

	b := make([]byte, sz)
	binary.BigEndian.PutUint32(b[0:], uint32(s.readerEID))
	binary.BigEndian.PutUint32(b[4:], uint32(s.writerEID))
	s.gapStart.put(binary.LittleEndian, b[8:])
	s.gapList.bitmapBase.put(binary.LittleEndian, b[16:])
	binary.LittleEndian.PutUint32(b[24:], s.gapList.numBits)
	for i, n := range s.gapList.bitmap {
		binary.LittleEndian.PutUint32(b[28+i*4:], n)
	}
	w.Write(b)
}

func newGapFromSubMsg(sm *subMsg) (*submsgGap, error) {
	if len(sm.data) < 28 {
		return nil, errShortSubmsg
	}
	g := &submsgGap{
		hdr:       sm.hdr,
		readerEID: EntityID(binary.BigEndian.Uint32(sm.data[0:])),
		writerEID: EntityID(binary.BigEndian.Uint32(sm.data[4:])),
		gapStart:  seqNumFromBytes(sm.bin, sm.data[8:]),
		gapList: SeqNumSet{
			bitmapBase: seqNumFromBytes(sm.bin, sm.data[16:]),
			numBits:    sm.bin.Uint32(sm.data[24:]),
		},
	}
	if !g.gapList.Valid() || g.gapStart <= 0 {
		return nil, errShortSubmsg
	}
	words := g.gapList.BitMapWords()
	if len(sm.data) < 28+words*4 {
		return nil, errShortSubmsg
	}
	g.gapList.bitmap = make([]uint32, words)
	for i := range g.gapList.bitmap {
		g.gapList.bitmap[i] = sm.bin.Uint32(sm.data[28+i*4:])
	}
	return g, nil
}

type submsgInfoSrc struct {
	unused     uint32
	version    ProtoVersion
	vid        VendorID
	guidPrefix GUIDPrefix
}

type paramID uint16

type paramListItem struct {
	pid   paramID
	value []uint8 // must be 32-bit aligned
}

func (p *paramListItem) WriteTo(w io.Writer) {
	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(p.pid))
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(p.value)))
	w.Write(buf[:])
	w.Write(p.value)
}

func newParamListItemFromBytes(bin binary.ByteOrder, b []byte) (*paramListItem, error) {
	if len(b) < 4 {
		return nil, io.EOF
	}
	sz := bin.Uint16(b[2:])
	if len(b) < int(sz)+4 {
		return nil, io.EOF
	}

	return &paramListItem{
		pid:   paramID(bin.Uint16(b[0:])),
		value: b[4 : 4+sz],
	}, nil
}

func (p *paramListItem) valToString(bin binary.ByteOrder) (string, error) {
	if len(p.value) < 4 {
		return "", io.EOF
	}
	sz := int(bin.Uint32(p.value[0:]))
	if sz == 0 || len(p.value) < 4+sz {
		return "", io.EOF
	}
	return string(p.value[4 : 4+sz-1]), nil
}

func packParamString(bin binary.ByteOrder, s string) []byte {
	b := make([]byte, (4+len(s)+1+3) & ^0x3) // must be 32-bit aligned
	bin.PutUint32(b[0:], uint32(len(s)+1))
	copy(b[4:], []byte(s))
	b[4+len(s)] = 0
	return b
}

func packParamUint32(bin binary.ByteOrder, v uint32) []byte {
	b := make([]byte, 4)
	bin.PutUint32(b, v)
	return b
}

func newParamList(bin binary.ByteOrder, b []byte) ([]*paramListItem, int, error) {
	var plist []*paramListItem
	n := 0

	for len(b) >= 4 {
		p, err := newParamListItemFromBytes(bin, b)
		if err != nil {
			return nil, 0, err
		}
		b = b[4+len(p.value):]
		n += 4 + len(p.value)
		if p.pid == PID_SENTINEL {
			break
		}
		plist = append(plist, p)
	}
	return plist, n, nil
}

type encapsulationScheme struct {
	scheme  uint16
	options uint16
}

func (es *encapsulationScheme) WriteTo(w io.Writer) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf, es.scheme)
	binary.LittleEndian.PutUint16(buf[2:], es.options)
	w.Write(buf)
}

func newSchemeFromBytes(bin binary.ByteOrder, b []byte) (encapsulationScheme, error) {
	if len(b) < 4 {
		return encapsulationScheme{}, io.EOF
	}
	return encapsulationScheme{
		scheme:  binary.BigEndian.Uint16(b[0:]), // seems to always be BigEndian (?)
		options: bin.Uint16(b[2:]),
	}, nil
}
