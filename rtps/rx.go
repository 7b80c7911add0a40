package rtps

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/liamstask/go-dds/qos"
)

// receiver is used to dispatch all the submsgs within a msg
// lifetime is a single msg
type receiver struct {
	srcProtoVer   ProtoVersion
	srcVID        VendorID
	srcGUIDPrefix GUIDPrefix
	dstGUIDPrefix GUIDPrefix
	haveTimestamp bool
	timestamp     time.Time
}

// incoming is a decoded DATA submessage.
type incoming struct {
	seq     SeqNum
	kind    changeKind
	keyhash [16]byte
	hasKey  bool
	payload []byte
	ts      time.Time
}

// dispatch parses a message and handles its submessages. Called with the
// session lock held.
func (d *domain) dispatch(b []byte) {
	s := &defaultSession
	hdr, err := newHeaderFromBytes(b)
	if err != nil {
		log.Debugf("domain %d: bad header: %s", d.id, err)
		return
	}
	if hdr.magic != Magic {
		log.Debugf("domain %d: no magic here", d.id)
		return
	}
	if hdr.protoVer.major < MY_RTPS_VERSION_MAJOR {
		log.Debugf("domain %d: version %d.%d too old", d.id, hdr.protoVer.major, hdr.protoVer.minor)
		return
	}

	rxer := receiver{
		srcProtoVer:   hdr.protoVer,
		srcVID:        hdr.vid,
		srcGUIDPrefix: hdr.guidPrefix,
	}

	submsgbuf := b[8+UDPGuidPrefixLen:]
	for len(submsgbuf) >= 4 {
		submsg, err := newSubMsgFromBytes(submsgbuf)
		if err != nil {
			log.Debugf("domain %d: submessage: %s", d.id, err)
			break
		}
		rxer.handleSubMsg(s, d, submsg)
		submsgbuf = submsgbuf[4+int(submsg.hdr.sz):]
	}
	s.broadcast()
}

func (r *receiver) handleSubMsg(s *session, d *domain, sm *subMsg) {
	switch sm.hdr.id {
	case SUBMSG_ID_PAD:

	case SUBMSG_ID_ACKNACK:
		r.rxAckNack(s, d, sm)

	case SUBMSG_ID_HEARTBEAT:
		r.rxHeartbeat(s, d, sm)

	case SUBMSG_ID_GAP:
		r.rxGap(s, d, sm)

	case SUBMSG_ID_INFO_TS:
		r.rxInfoTS(sm)

	case SUBMSG_ID_INFO_SRC:
		r.rxInfoSrc(sm)

	case SUBMSG_ID_INFO_DST:
		r.rxInfoDst(sm)

	case SUBMSG_ID_DATA:
		r.rxData(s, d, sm)

	default:
		log.Debugf("unhandled submessage 0x%02x", sm.hdr.id)
	}
}

// handler for SUBMSG_ID_INFO_TS submessages
func (r *receiver) rxInfoTS(sm *subMsg) {
	if sm.hdr.flags&FLAGS_INFOTS_INVALIDATE != 0 {
		r.haveTimestamp = false
		r.timestamp = timeInvalid
		return
	}
	var err error
	if r.timestamp, err = timeFromBytes(sm.bin, sm.data); err == nil {
		r.haveTimestamp = true
	}
}

// handler for SUBMSG_ID_INFO_SRC submessages
func (r *receiver) rxInfoSrc(sm *subMsg) {
	if len(sm.data) < 8+UDPGuidPrefixLen {
		return
	}
	is := submsgInfoSrc{
		version: ProtoVersion{sm.data[4], sm.data[5]},
		vid:     VendorID(binary.BigEndian.Uint16(sm.data[6:])),
	}
	copy(is.guidPrefix[:], sm.data[8:8+UDPGuidPrefixLen])

	r.srcGUIDPrefix = is.guidPrefix
	r.srcProtoVer = is.version
	r.srcVID = is.vid
}

// handler for SUBMSG_ID_INFO_DST submessages
func (r *receiver) rxInfoDst(sm *subMsg) {
	// only element in submsgInfoDest is the prefix
	if len(sm.data) == UDPGuidPrefixLen {
		copy(r.dstGUIDPrefix[:], sm.data)
	}
}

// addressedTo reports whether a submessage for readerID reaches rd.
func (r *receiver) addressedTo(rd *reader, readerID EntityID) bool {
	if r.dstGUIDPrefix != unknownGUIDPrefix && r.dstGUIDPrefix != rd.guid.Prefix {
		return false
	}
	return readerID == ENTITYID_UNKNOWN || readerID == rd.guid.EntityID
}

// handler for SUBMSG_ID_DATA submessages
func (r *receiver) rxData(s *session, d *domain, sm *subMsg) {
	smd, err := newDataFromSubMsg(sm)
	if err != nil {
		log.Debugf("domain %d: DATA: %s", d.id, err)
		return
	}
	if smd.writerID == ENTITYID_SPDP_BUILTIN_PARTICIPANT_WRITER {
		d.rxSPDP(r, smd)
		return
	}

	in := &incoming{
		seq:     smd.writerSeqNum,
		payload: bytes.Clone(smd.data),
		ts:      time.Now(),
	}
	if r.haveTimestamp {
		in.ts = r.timestamp
	}
	if p, ok := smd.param(PID_KEY_HASH); ok && len(p.value) >= 16 {
		copy(in.keyhash[:], p.value)
		in.hasKey = true
	}
	if p, ok := smd.param(PID_STATUS_INFO); ok && len(p.value) >= 4 {
		in.kind = changeKindFromStatusInfo(binary.BigEndian.Uint32(p.value))
	}
	if in.kind == changeAlive && len(in.payload) == 0 {
		return
	}

	wguid := GUID{Prefix: r.srcGUIDPrefix, EntityID: smd.writerID}
	if w, ok := d.writers[wguid]; ok {
		for _, rd := range sortedReaders(d) {
			if _, matched := w.matched[rd]; !matched || !r.addressedTo(rd, smd.readerID) {
				continue
			}
			rd.rxData(s, rd.writers[wguid], in)
		}
		return
	}
	d.rxRemoteData(s, r, wguid, smd, in)
}

// rxRemoteData hands DATA from a writer in another process to the
// best-effort readers of the same topic and type in the default partition.
func (d *domain) rxRemoteData(s *session, r *receiver, wguid GUID, smd *submsgData, in *incoming) {
	tp, ok := smd.param(PID_TOPIC_NAME)
	if !ok {
		return
	}
	ty, ok := smd.param(PID_TYPE_NAME)
	if !ok {
		return
	}
	topicName, err := tp.valToString(binary.LittleEndian)
	if err != nil {
		return
	}
	typeName, err := ty.valToString(binary.LittleEndian)
	if err != nil {
		return
	}
	offered := qos.Volatile
	if p, ok := smd.param(PID_DURABILITY); ok {
		if dq, err := newQosDurabilityFromBytes(binary.LittleEndian, p.value); err == nil {
			offered = dq.policy()
		}
	}
	reliability := qos.Reliability{Kind: qos.BestEffort}
	if p, ok := smd.param(PID_RELIABILITY); ok {
		if rq, err := newQosReliabilityFromBytes(binary.LittleEndian, p.value); err == nil {
			reliability = rq.policy()
		}
	}

	for _, rd := range sortedReaders(d) {
		if rd.topic.name != topicName || rd.topic.desc.TypeName != typeName {
			continue
		}
		if rd.qos.Reliability().Kind != qos.BestEffort || rd.qos.Durability() > offered {
			continue
		}
		if !partitionsMatch(nil, rd.sub.qos.Partition()) || !r.addressedTo(rd, smd.readerID) {
			continue
		}
		wp, ok := rd.writers[wguid]
		if !ok {
			wp = &writerProxy{
				guid:     wguid,
				iid:      d.publicationHandle(s, wguid),
				lastSeq:  in.seq - 1,
				lifespan: qos.Infinite,
				alive:    true,
			}
			rd.addWriter(wp)
			log.Debugf("reader %d: remote writer %s (reliability %d, durability %s)",
				rd.handle, wguid, reliability.Kind, offered)
		}
		rd.rxData(s, wp, in)
	}
}

// dropRemoteWriters forgets the writers of a remote participant.
func (d *domain) dropRemoteWriters(gp GUIDPrefix) {
	for _, rd := range sortedReaders(d) {
		for _, wp := range rd.sortedWriters() {
			if wp.w == nil && wp.guid.Prefix == gp {
				rd.removeWriter(wp)
			}
		}
	}
	for g := range d.remoteWr {
		if g.Prefix == gp {
			delete(d.remoteWr, g)
		}
	}
}

// handler for SUBMSG_ID_ACKNACK submessages
func (r *receiver) rxAckNack(s *session, d *domain, sm *subMsg) {
	an, err := newAckNackFromSubMsg(sm)
	if err != nil {
		log.Debugf("domain %d: ACKNACK: %s", d.id, err)
		return
	}
	w, ok := d.writers[GUID{Prefix: r.dstGUIDPrefix, EntityID: an.writerEID}]
	if !ok {
		return
	}
	rd, ok := d.readers[GUID{Prefix: r.srcGUIDPrefix, EntityID: an.readerEID}]
	if !ok {
		return
	}
	w.rxAckNack(s, rd, an)
}

// handler for SUBMSG_ID_HEARTBEAT submessages
func (r *receiver) rxHeartbeat(s *session, d *domain, sm *subMsg) {
	hb, err := newHeartbeatFromSubMsg(sm)
	if err != nil {
		log.Debugf("domain %d: HEARTBEAT: %s", d.id, err)
		return
	}
	wguid := GUID{Prefix: r.srcGUIDPrefix, EntityID: hb.writerEID}
	w, ok := d.writers[wguid]
	if !ok {
		return
	}
	for _, rd := range sortedReaders(d) {
		if _, matched := w.matched[rd]; !matched || !r.addressedTo(rd, hb.readerEID) {
			continue
		}
		if wp := rd.writers[wguid]; wp != nil && wp.reliable {
			rd.rxHeartbeat(s, wp, hb)
		}
	}
}

// handler for SUBMSG_ID_GAP submessages
func (r *receiver) rxGap(s *session, d *domain, sm *subMsg) {
	g, err := newGapFromSubMsg(sm)
	if err != nil {
		log.Debugf("domain %d: GAP: %s", d.id, err)
		return
	}
	wguid := GUID{Prefix: r.srcGUIDPrefix, EntityID: g.writerEID}
	w, ok := d.writers[wguid]
	if !ok {
		return
	}
	for _, rd := range sortedReaders(d) {
		if _, matched := w.matched[rd]; !matched || !r.addressedTo(rd, g.readerEID) {
			continue
		}
		if wp := rd.writers[wguid]; wp != nil && wp.reliable {
			rd.rxGap(wp, g)
		}
	}
}
