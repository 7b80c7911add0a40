package rtps

import (
	"bytes"
	"slices"
	"time"

	"github.com/liamstask/go-dds/qos"
)

type subscriber struct {
	entity
	implicit bool
}

func (sb *subscriber) implicitEmpty() bool {
	return sb.implicit && len(sb.children) == 0
}

// writerProxy is the reader's view of a matched writer. Remote writers
// have no local writer and are always best-effort.
type writerProxy struct {
	guid            GUID
	w               *writer
	iid             InstanceHandle
	reliable        bool
	lastSeq         SeqNum // highest sequence number delivered in order
	historicalUntil SeqNum
	strength        int32
	lifespan        time.Duration
	alive           bool
	ackCount        uint32
}

type reader struct {
	entity
	topic   *topic
	sub     *subscriber
	guid    GUID
	writers map[GUID]*writerProxy
	rhc     *rhc

	subMatched        SubscriptionMatchedStatus
	livelinessChanged LivelinessChangedStatus
	deadlineMissed    RequestedDeadlineMissedStatus
	incompatible      RequestedIncompatibleQosStatus
	sampleLost        SampleLostStatus
	sampleRejected    SampleRejectedStatus
	stats             readerStats
}

// CreateSubscriber creates a subscriber in participant h.
func CreateSubscriber(h Entity, q *qos.Qos) Entity {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return Entity(rc)
	}
	pp, ok := n.(*participant)
	if !ok {
		return Entity(RetcodeIllegalOperation)
	}
	sb, rc := s.newSubscriber(pp, q, false)
	if rc != RetcodeOK {
		return Entity(rc)
	}
	return sb.handle
}

func (s *session) newSubscriber(pp *participant, q *qos.Qos, implicit bool) (*subscriber, int32) {
	sq := qos.New()
	if q != nil {
		sq = q.Clone()
	}
	if err := sq.Validate(); err != nil {
		return nil, RetcodeBadParameter
	}
	sb := &subscriber{implicit: implicit}
	sb.qos = sq
	s.register(sb, KindSubscriber, pp, pp.dom)
	return sb, RetcodeOK
}

func (s *session) readersOf(sb *subscriber) []*reader {
	var rs []*reader
	for _, c := range sb.children {
		if r, ok := s.entities[c].(*reader); ok {
			rs = append(rs, r)
		}
	}
	return rs
}

// CreateReader creates a reader for topic t. The parent is a subscriber,
// or a participant in which case an implicit subscriber is created.
func CreateReader(parent Entity, t Entity, q *qos.Qos) Entity {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()

	tn, rc := s.lookup(t)
	if rc != RetcodeOK {
		return Entity(rc)
	}
	tp, ok := tn.(*topic)
	if !ok {
		return Entity(RetcodeIllegalOperation)
	}
	pn, rc := s.lookup(parent)
	if rc != RetcodeOK {
		return Entity(rc)
	}
	if participantOf(pn) != participantOf(tp) {
		return Entity(RetcodeBadParameter)
	}

	rq := qos.New()
	if q != nil {
		rq = q.Clone()
	}
	rq.Merge(tp.qos)
	if err := rq.Validate(); err != nil {
		return Entity(RetcodeBadParameter)
	}

	var sb *subscriber
	switch v := pn.(type) {
	case *subscriber:
		sb = v
	case *participant:
		if sb, rc = s.newSubscriber(v, nil, true); rc != RetcodeOK {
			return Entity(rc)
		}
	default:
		return Entity(RetcodeIllegalOperation)
	}

	pp := participantOf(sb)
	kind := uint8(ENTITYID_KIND_READER_NO_KEY)
	if tp.desc.Keyed() {
		kind = ENTITYID_KIND_READER_WITH_KEY
	}
	r := &reader{
		topic:   tp,
		sub:     sb,
		guid:    GUID{Prefix: pp.guid.Prefix, EntityID: pp.nextEntityID(kind)},
		writers: make(map[GUID]*writerProxy),
	}
	r.qos = rq
	r.rhc = newRHC(r)
	s.register(r, KindReader, sb, pp.dom)
	pp.dom.readers[r.guid] = r
	tp.refs++
	s.matchReader(r)
	if rq.Durability() >= qos.Transient {
		r.loadDurable(s)
	}
	return r.handle
}

func (r *reader) teardown(s *session) {
	for _, wp := range r.sortedWriters() {
		if wp.w != nil {
			s.unmatch(wp.w, r)
		} else {
			r.removeWriter(wp)
		}
	}
	delete(r.dom.readers, r.guid)
	r.topic.refs--
}

func (r *reader) sortedWriters() []*writerProxy {
	wps := make([]*writerProxy, 0, len(r.writers))
	for _, wp := range r.writers {
		wps = append(wps, wp)
	}
	slices.SortFunc(wps, func(a, b *writerProxy) int { return int(a.iid) - int(b.iid) })
	return wps
}

func (r *reader) addWriter(wp *writerProxy) {
	r.writers[wp.guid] = wp
	r.subMatched.TotalCount++
	r.subMatched.TotalCountChange++
	r.subMatched.CurrentCount++
	r.subMatched.CurrentCountChange++
	r.subMatched.LastPublicationHandle = wp.iid
	r.raise(StatusSubscriptionMatched)
	if wp.alive {
		r.livelinessChanged.AliveCount++
		r.livelinessChanged.AliveCountChange++
	} else {
		r.livelinessChanged.NotAliveCount++
		r.livelinessChanged.NotAliveCountChange++
	}
	r.livelinessChanged.LastPublicationHandle = wp.iid
	r.raise(StatusLivelinessChanged)
}

func (r *reader) removeWriter(wp *writerProxy) {
	delete(r.writers, wp.guid)
	r.subMatched.CurrentCount--
	r.subMatched.CurrentCountChange--
	r.subMatched.LastPublicationHandle = wp.iid
	r.raise(StatusSubscriptionMatched)
	if wp.alive {
		r.livelinessChanged.AliveCount--
		r.livelinessChanged.AliveCountChange--
	} else {
		r.livelinessChanged.NotAliveCount--
		r.livelinessChanged.NotAliveCountChange--
	}
	r.livelinessChanged.LastPublicationHandle = wp.iid
	r.raise(StatusLivelinessChanged)
	if r.rhc.writerGone(wp.iid, time.Now()) {
		r.notify()
	}
}

// writerLiveliness records a matched writer losing or regaining liveliness.
func (r *reader) writerLiveliness(g GUID, alive bool) {
	wp, ok := r.writers[g]
	if !ok || wp.alive == alive {
		return
	}
	wp.alive = alive
	lc := &r.livelinessChanged
	if alive {
		lc.AliveCount++
		lc.AliveCountChange++
		lc.NotAliveCount--
		lc.NotAliveCountChange--
	} else {
		lc.AliveCount--
		lc.AliveCountChange--
		lc.NotAliveCount++
		lc.NotAliveCountChange++
		if r.rhc.writerGone(wp.iid, time.Now()) {
			r.notify()
		}
	}
	lc.LastPublicationHandle = wp.iid
	r.raise(StatusLivelinessChanged)
}

func (r *reader) notify() {
	r.raise(StatusDataAvailable)
	r.sub.raise(StatusDataOnReaders)
}

func (r *reader) lost(n int) {
	r.stats.lost += uint64(n)
	r.sampleLost.TotalCount += uint32(n)
	r.sampleLost.TotalCountChange += int32(n)
	r.raise(StatusSampleLost)
}

// rxData accepts a DATA from a matched writer. Reliable proxies only take
// the next sequence number and wait for the rest to be repaired; best-effort
// proxies take anything newer and count what they skipped as lost.
func (r *reader) rxData(s *session, wp *writerProxy, in *incoming) {
	if wp.reliable {
		if in.seq != wp.lastSeq+1 {
			return
		}
	} else {
		if in.seq <= wp.lastSeq {
			return
		}
		if skipped := in.seq - wp.lastSeq - 1; skipped > 0 && wp.lastSeq > 0 {
			r.lost(int(skipped))
		}
	}
	wp.lastSeq = in.seq
	r.stats.received++
	r.stats.receivedBytes += uint64(len(in.payload))

	kh := in.keyhash
	if !in.hasKey {
		var err error
		if kh, err = r.topic.desc.keyHash(in.payload); err != nil {
			log.Debugf("reader %d: dropping sample %d: %s", r.handle, in.seq, err)
			return
		}
	}
	r.deliver(s, &incomingSample{
		kind:     in.kind,
		iid:      r.dom.instanceHandle(s, r.topic.name, kh),
		keyhash:  kh,
		payload:  in.payload,
		srcTS:    in.ts,
		pubIID:   wp.iid,
		strength: wp.strength,
		lifespan: wp.lifespan,
	})
}

func (r *reader) deliver(s *session, in *incomingSample) {
	if in.kind == changeAlive && r.topic.filter != nil && !r.topic.filter(in.payload, r.topic.filterArg) {
		r.stats.filtered++
		return
	}
	res, reason := r.rhc.store(in, time.Now())
	switch res {
	case storeChanged:
		r.notify()
	case storeFiltered:
		r.stats.filtered++
	case storeRejected:
		r.stats.rejected++
		r.sampleRejected.TotalCount++
		r.sampleRejected.TotalCountChange++
		r.sampleRejected.LastReason = reason
		r.sampleRejected.LastInstanceHandle = in.iid
		r.raise(StatusSampleRejected)
	}
}

func (r *reader) rxHeartbeat(s *session, wp *writerProxy, hb *submsgHeartbeat) {
	if hb.firstSeqNum > wp.lastSeq+1 {
		r.lost(int(hb.firstSeqNum - wp.lastSeq - 1))
		wp.lastSeq = hb.firstSeqNum - 1
	}
	if hb.hdr.flags&FLAGS_HEARTBEAT_FLAG_FINAL != 0 && hb.lastSeqNum <= wp.lastSeq {
		return
	}
	r.sendAckNack(wp, hb.lastSeqNum)
}

func (r *reader) rxGap(wp *writerProxy, g *submsgGap) {
	if g.gapStart > wp.lastSeq+1 {
		return
	}
	if end := g.gapList.bitmapBase - 1; end > wp.lastSeq {
		wp.lastSeq = end
	}
	for g.gapList.Contains(wp.lastSeq + 1) {
		wp.lastSeq++
	}
}

// sendAckNack acknowledges everything up to lastSeq and asks for the rest
// up to last.
func (r *reader) sendAckNack(wp *writerProxy, last SeqNum) {
	var n uint32
	if last > wp.lastSeq {
		n = uint32(min(last-wp.lastSeq, 256))
	}
	wp.ackCount++
	an := submsgAckNack{
		readerEID:     r.guid.EntityID,
		writerEID:     wp.guid.EntityID,
		readerSNState: newSeqNumSet(wp.lastSeq+1, n),
		count:         wp.ackCount,
	}
	if n == 0 {
		an.hdr.flags |= FLAGS_ACKNACK_FINAL
	}
	var msg bytes.Buffer
	newHeader(r.guid.Prefix).WriteTo(&msg)
	newInfoDstSubMsg(wp.guid.Prefix).WriteTo(&msg)
	an.WriteTo(&msg)
	r.dom.send(msg.Bytes())
}

func (r *reader) tick(s *session, now time.Time) {
	for _, ih := range r.rhc.tick(now) {
		r.deadlineMissed.TotalCount++
		r.deadlineMissed.TotalCountChange++
		r.deadlineMissed.LastInstanceHandle = ih
		r.raise(StatusRequestedDeadlineMissed)
	}
}

// loadDurable feeds a transient or persistent reader what the durable
// store holds for its topic from writers that are gone.
func (r *reader) loadDurable(s *session) {
	st := r.dom.durable()
	if st == nil {
		return
	}
	recs, err := st.load(r.topic.name)
	if err != nil {
		log.Warnf("reader %d: loading durable data: %s", r.handle, err)
		return
	}
	gone := make(map[InstanceHandle]bool)
	for _, rec := range recs {
		if rec.TypeName != r.topic.desc.TypeName {
			continue
		}
		g := guidFromBytes(rec.Writer)
		if _, live := r.dom.writers[g]; live {
			continue
		}
		var kh [16]byte
		copy(kh[:], rec.KeyHash)
		pub := r.dom.publicationHandle(s, g)
		gone[pub] = true
		r.deliver(s, &incomingSample{
			kind:    changeKind(rec.Kind),
			iid:     r.dom.instanceHandle(s, r.topic.name, kh),
			keyhash: kh,
			payload: rec.Payload,
			srcTS:   time.Unix(0, rec.Timestamp),
			pubIID:  pub,
		})
	}
	now := time.Now()
	for pub := range gone {
		r.rhc.writerGone(pub, now)
	}
}

// lookupReader resolves h as a reader; the lock must be held.
func (s *session) lookupReader(h Entity) (*reader, int32) {
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	r, ok := n.(*reader)
	if !ok {
		return nil, RetcodeIllegalOperation
	}
	return r, RetcodeOK
}

// Sample is a serialized sample with its info.
type Sample struct {
	Info    SampleInfo
	Payload []byte
}

// collectSamples returns the batch a read operation gathers. It allocates no
// more than the reader holds, whatever max is.
func (s *session) collectSamples(h Entity, max int, ih InstanceHandle, mask uint32, op readOp) ([]Sample, int32) {
	if max <= 0 || mask&^AnyState != 0 {
		return nil, RetcodeBadParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, rc := s.lookupReader(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	got, payloads, rc := r.rhc.collect(op, max, mask, ih, time.Now())
	if rc != RetcodeOK {
		return nil, rc
	}
	out := make([]Sample, len(got))
	for i := range got {
		out[i] = Sample{Info: got[i], Payload: bytes.Clone(payloads[i])}
	}
	if op != opPeek {
		r.clear(StatusDataAvailable)
		r.sub.clear(StatusDataOnReaders)
	}
	return out, RetcodeOK
}

func (s *session) readSamples(h Entity, bufs [][]byte, infos []SampleInfo, max int, ih InstanceHandle, mask uint32, op readOp) int32 {
	if len(bufs) < max || len(infos) < max {
		return RetcodeBadParameter
	}
	got, rc := s.collectSamples(h, max, ih, mask, op)
	if rc != RetcodeOK {
		return rc
	}
	for i, smp := range got {
		infos[i] = smp.Info
		bufs[i] = smp.Payload
	}
	return int32(len(got))
}

// PeekSamples returns up to max samples matching mask without changing their
// state, from instance ih only unless it is 0.
func PeekSamples(h Entity, max int, ih InstanceHandle, mask uint32) ([]Sample, int32) {
	return defaultSession.collectSamples(h, max, ih, mask, opPeek)
}

// ReadSamples is PeekSamples that marks the samples read.
func ReadSamples(h Entity, max int, ih InstanceHandle, mask uint32) ([]Sample, int32) {
	return defaultSession.collectSamples(h, max, ih, mask, opRead)
}

// TakeSamples is PeekSamples that removes the samples.
func TakeSamples(h Entity, max int, ih InstanceHandle, mask uint32) ([]Sample, int32) {
	return defaultSession.collectSamples(h, max, ih, mask, opTake)
}

// Peek returns up to max samples matching mask without changing their state.
func Peek(h Entity, bufs [][]byte, infos []SampleInfo, max int, mask uint32) int32 {
	return defaultSession.readSamples(h, bufs, infos, max, 0, mask, opPeek)
}

// Read returns up to max samples matching mask and marks them read.
func Read(h Entity, bufs [][]byte, infos []SampleInfo, max int, mask uint32) int32 {
	return defaultSession.readSamples(h, bufs, infos, max, 0, mask, opRead)
}

// Take removes and returns up to max samples matching mask.
func Take(h Entity, bufs [][]byte, infos []SampleInfo, max int, mask uint32) int32 {
	return defaultSession.readSamples(h, bufs, infos, max, 0, mask, opTake)
}

func PeekInstance(h Entity, bufs [][]byte, infos []SampleInfo, max int, ih InstanceHandle, mask uint32) int32 {
	if ih == 0 {
		return RetcodeBadParameter
	}
	return defaultSession.readSamples(h, bufs, infos, max, ih, mask, opPeek)
}

func ReadInstance(h Entity, bufs [][]byte, infos []SampleInfo, max int, ih InstanceHandle, mask uint32) int32 {
	if ih == 0 {
		return RetcodeBadParameter
	}
	return defaultSession.readSamples(h, bufs, infos, max, ih, mask, opRead)
}

func TakeInstance(h Entity, bufs [][]byte, infos []SampleInfo, max int, ih InstanceHandle, mask uint32) int32 {
	if ih == 0 {
		return RetcodeBadParameter
	}
	return defaultSession.readSamples(h, bufs, infos, max, ih, mask, opTake)
}

// ReadNext reads the first sample not read before.
func ReadNext(h Entity, bufs [][]byte, infos []SampleInfo) int32 {
	return defaultSession.readSamples(h, bufs, infos, 1, 0, NotReadSampleState, opRead)
}

// TakeNext takes the first sample not read before.
func TakeNext(h Entity, bufs [][]byte, infos []SampleInfo) int32 {
	return defaultSession.readSamples(h, bufs, infos, 1, 0, NotReadSampleState, opTake)
}

// ReaderWaitForHistoricalData blocks until a durable reader received the
// history its matched writers held when they were matched.
func ReaderWaitForHistoricalData(h Entity, timeout time.Duration) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	r, rc := s.lookupReader(h)
	if rc != RetcodeOK {
		return rc
	}
	ok := s.waitUntil(deadlineAfter(time.Now(), timeout), func() bool {
		if r.deleted {
			return true
		}
		for _, wp := range r.writers {
			if wp.lastSeq < wp.historicalUntil {
				return false
			}
		}
		return true
	})
	if r.deleted {
		return RetcodeAlreadyDeleted
	}
	if !ok {
		return RetcodeTimeout
	}
	return RetcodeOK
}

// NotifyReaders raises DATA_AVAILABLE on every reader of the subscriber
// that holds unread samples.
func NotifyReaders(h Entity) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	sb, ok := n.(*subscriber)
	if !ok {
		return RetcodeIllegalOperation
	}
	for _, r := range s.readersOf(sb) {
		if r.rhc.hasUnread() {
			r.raise(StatusDataAvailable)
		}
	}
	sb.clear(StatusDataOnReaders)
	s.broadcast()
	return RetcodeOK
}
