package rtps

import (
	"bytes"
	"encoding/binary"
	"slices"
	"time"

	"github.com/liamstask/go-dds/qos"
)

// largest payload a single DATA submessage can carry
const maxPayload = 0xffff - 512

type publisher struct {
	entity
	implicit  bool
	suspended bool
}

func (p *publisher) implicitEmpty() bool {
	return p.implicit && len(p.children) == 0
}

type changeKind uint8

const (
	changeAlive changeKind = iota
	changeDisposed
	changeUnregistered
	changeDisposedUnregistered
)

func (k changeKind) statusInfo() uint32 {
	switch k {
	case changeDisposed:
		return STATUSINFO_DISPOSE
	case changeUnregistered:
		return STATUSINFO_UNREGISTER
	case changeDisposedUnregistered:
		return STATUSINFO_DISPOSE | STATUSINFO_UNREGISTER
	}
	return 0
}

func changeKindFromStatusInfo(si uint32) changeKind {
	switch si & (STATUSINFO_DISPOSE | STATUSINFO_UNREGISTER) {
	case STATUSINFO_DISPOSE:
		return changeDisposed
	case STATUSINFO_UNREGISTER:
		return changeUnregistered
	case STATUSINFO_DISPOSE | STATUSINFO_UNREGISTER:
		return changeDisposedUnregistered
	}
	return changeAlive
}

// cacheChange is one entry of a writer history cache.
type cacheChange struct {
	seq     SeqNum
	kind    changeKind
	keyhash [16]byte
	iid     InstanceHandle
	payload []byte // nil for key-only changes
	ts      time.Time
}

type writerInstance struct {
	iid       InstanceHandle
	keyhash   [16]byte
	lastWrite time.Time
}

// readerProxy is the writer's view of a matched reader.
type readerProxy struct {
	acked    SeqNum
	reliable bool
}

type writer struct {
	entity
	topic     *topic
	pub       *publisher
	guid      GUID
	seq       SeqNum
	history   []*cacheChange
	pending   []*cacheChange // batched, not yet sent
	instances map[InstanceHandle]*writerInstance
	matched   map[*reader]*readerProxy

	hbCount    uint32
	lastHB     time.Time
	lastAssert time.Time
	alive      bool

	pubMatched     PublicationMatchedStatus
	livelinessLost LivelinessLostStatus
	deadlineMissed OfferedDeadlineMissedStatus
	incompatible   OfferedIncompatibleQosStatus
	stats          writerStats
}

// CreatePublisher creates a publisher in participant h.
func CreatePublisher(h Entity, q *qos.Qos) Entity {
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
	p, rc := s.newPublisher(pp, q, false)
	if rc != RetcodeOK {
		return Entity(rc)
	}
	return p.handle
}

func (s *session) newPublisher(pp *participant, q *qos.Qos, implicit bool) (*publisher, int32) {
	pq := qos.New()
	if q != nil {
		pq = q.Clone()
	}
	if err := pq.Validate(); err != nil {
		return nil, RetcodeBadParameter
	}
	p := &publisher{implicit: implicit}
	p.qos = pq
	s.register(p, KindPublisher, pp, pp.dom)
	return p, RetcodeOK
}

func writerDefaults() *qos.Qos {
	q := qos.New()
	q.SetReliability(qos.Reliable, 100*time.Millisecond)
	return q
}

// CreateWriter creates a writer for topic t. The parent is a publisher, or a
// participant in which case an implicit publisher is created.
func CreateWriter(parent Entity, t Entity, q *qos.Qos) Entity {
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

	wq := qos.New()
	if q != nil {
		wq = q.Clone()
	}
	wq.Merge(tp.qos)
	wq.Merge(writerDefaults())
	if err := wq.Validate(); err != nil {
		return Entity(RetcodeBadParameter)
	}

	var pub *publisher
	switch v := pn.(type) {
	case *publisher:
		pub = v
	case *participant:
		if pub, rc = s.newPublisher(v, nil, true); rc != RetcodeOK {
			return Entity(rc)
		}
	default:
		return Entity(RetcodeIllegalOperation)
	}

	pp := participantOf(pub)
	kind := uint8(ENTITYID_KIND_WRITER_NO_KEY)
	if tp.desc.Keyed() {
		kind = ENTITYID_KIND_WRITER_WITH_KEY
	}
	w := &writer{
		topic:      tp,
		pub:        pub,
		guid:       GUID{Prefix: pp.guid.Prefix, EntityID: pp.nextEntityID(kind)},
		instances:  make(map[InstanceHandle]*writerInstance),
		matched:    make(map[*reader]*readerProxy),
		lastAssert: time.Now(),
		alive:      true,
	}
	w.qos = wq
	s.register(w, KindWriter, pub, pp.dom)
	pp.dom.writers[w.guid] = w
	tp.refs++
	s.matchWriter(w)
	return w.handle
}

func (w *writer) teardown(s *session) {
	w.flush(s)
	now := time.Now()
	kind := changeUnregistered
	if w.qos.WriterDataLifecycle().AutodisposeUnregisteredInstances {
		kind = changeDisposedUnregistered
	}
	for _, inst := range w.sortedInstances() {
		w.commit(s, kind, inst.iid, inst.keyhash, nil, now)
	}
	for r := range w.matched {
		s.unmatch(w, r)
	}
	delete(w.dom.writers, w.guid)
	w.topic.refs--
}

func (w *writer) sortedInstances() []*writerInstance {
	insts := make([]*writerInstance, 0, len(w.instances))
	for _, inst := range w.instances {
		insts = append(insts, inst)
	}
	slices.SortFunc(insts, func(a, b *writerInstance) int {
		return int(a.iid) - int(b.iid)
	})
	return insts
}

// lookupWriter resolves h as a writer; the lock must be held.
func (s *session) lookupWriter(h Entity) (*writer, int32) {
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	w, ok := n.(*writer)
	if !ok {
		return nil, RetcodeIllegalOperation
	}
	return w, RetcodeOK
}

// Write publishes a serialized sample, timestamped now.
func Write(h Entity, data []byte) int32 {
	return WriteTS(h, data, time.Time{})
}

// WriteTS publishes a serialized sample with an explicit source timestamp.
func WriteTS(h Entity, data []byte, ts time.Time) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	w, rc := s.lookupWriter(h)
	if rc != RetcodeOK {
		return rc
	}
	return w.write(s, changeAlive, data, ts)
}

// WriteFlush sends any batched samples of the writer.
func WriteFlush(h Entity) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	w, rc := s.lookupWriter(h)
	if rc != RetcodeOK {
		return rc
	}
	w.flush(s)
	return RetcodeOK
}

// RegisterInstance registers the instance of data with the writer and
// returns its handle.
func RegisterInstance(h Entity, data []byte) (InstanceHandle, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	w, rc := s.lookupWriter(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	kh, err := w.topic.desc.keyHash(data)
	if err != nil {
		return 0, RetcodeBadParameter
	}
	inst, rc := w.instance(s, kh, true)
	if rc != RetcodeOK {
		return 0, rc
	}
	return inst.iid, RetcodeOK
}

func UnregisterInstance(h Entity, data []byte, ts time.Time) int32 {
	return keyedOp(h, data, ts, changeUnregistered)
}

func Dispose(h Entity, data []byte, ts time.Time) int32 {
	return keyedOp(h, data, ts, changeDisposed)
}

func UnregisterInstanceHandle(h Entity, ih InstanceHandle, ts time.Time) int32 {
	return handleOp(h, ih, ts, changeUnregistered)
}

func DisposeInstanceHandle(h Entity, ih InstanceHandle, ts time.Time) int32 {
	return handleOp(h, ih, ts, changeDisposed)
}

func keyedOp(h Entity, data []byte, ts time.Time, kind changeKind) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	w, rc := s.lookupWriter(h)
	if rc != RetcodeOK {
		return rc
	}
	return w.write(s, kind, data, ts)
}

func handleOp(h Entity, ih InstanceHandle, ts time.Time, kind changeKind) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	w, rc := s.lookupWriter(h)
	if rc != RetcodeOK {
		return rc
	}
	inst, ok := w.instances[ih]
	if !ok {
		return RetcodePreconditionNotMet
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	w.commit(s, w.lifecycleKind(kind), inst.iid, inst.keyhash, nil, ts)
	return RetcodeOK
}

// lifecycleKind folds autodispose into unregistration.
func (w *writer) lifecycleKind(kind changeKind) changeKind {
	if kind == changeUnregistered && w.qos.WriterDataLifecycle().AutodisposeUnregisteredInstances {
		return changeDisposedUnregistered
	}
	return kind
}

// LookupInstance returns the handle of the instance data belongs to. A
// writer or reader that does not know the instance yields 0 and RetcodeOK.
func LookupInstance(h Entity, data []byte) (InstanceHandle, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	var t *topic
	switch v := n.(type) {
	case *writer:
		t = v.topic
	case *reader:
		t = v.topic
	default:
		return 0, RetcodeIllegalOperation
	}
	kh, err := t.desc.keyHash(data)
	if err != nil {
		return 0, RetcodeBadParameter
	}
	ih := n.base().dom.lookupInstance(t.name, kh)
	switch v := n.(type) {
	case *writer:
		if _, ok := v.instances[ih]; ok {
			return ih, RetcodeOK
		}
	case *reader:
		if v.rhc.byIID[ih] != nil {
			return ih, RetcodeOK
		}
	}
	return 0, RetcodeOK
}

// instance returns the writer's registration of kh, registering it if
// create is set.
func (w *writer) instance(s *session, kh [16]byte, create bool) (*writerInstance, int32) {
	ih := w.dom.instanceHandle(s, w.topic.name, kh)
	if inst, ok := w.instances[ih]; ok {
		return inst, RetcodeOK
	}
	if !create {
		return nil, RetcodePreconditionNotMet
	}
	if limit := w.qos.ResourceLimits().MaxInstances; limit != qos.LengthUnlimited && len(w.instances) >= int(limit) {
		return nil, RetcodeOutOfResources
	}
	inst := &writerInstance{iid: ih, keyhash: kh, lastWrite: time.Now()}
	w.instances[ih] = inst
	return inst, RetcodeOK
}

func (w *writer) blocks() bool {
	return w.qos.History().Kind == qos.KeepAll &&
		w.qos.Reliability().Kind == qos.Reliable &&
		w.qos.ResourceLimits().MaxSamples != qos.LengthUnlimited
}

func (w *writer) write(s *session, kind changeKind, data []byte, ts time.Time) int32 {
	if len(data) > maxPayload {
		return RetcodeOutOfResources
	}
	kh, err := w.topic.desc.keyHash(data)
	if err != nil {
		log.Debugf("writer %d: invalid sample: %s", w.handle, err)
		return RetcodeBadParameter
	}
	inst, rc := w.instance(s, kh, kind == changeAlive || kind == changeDisposed)
	if rc != RetcodeOK {
		return rc
	}

	if kind == changeAlive && w.blocks() {
		limit := int(w.qos.ResourceLimits().MaxSamples)
		deadline := deadlineAfter(time.Now(), w.qos.Reliability().MaxBlockingTime)
		if w.unacked() >= limit {
			w.stats.throttled++
		}
		if !s.waitUntil(deadline, func() bool { return w.deleted || w.unacked() < limit }) {
			return RetcodeTimeout
		}
		if w.deleted {
			return RetcodeAlreadyDeleted
		}
	}

	if ts.IsZero() {
		ts = time.Now()
	}
	w.commit(s, w.lifecycleKind(kind), inst.iid, kh, data, ts)
	return RetcodeOK
}

// commit appends a change to the history and sends or batches it.
func (w *writer) commit(s *session, kind changeKind, ih InstanceHandle, kh [16]byte, data []byte, ts time.Time) {
	now := time.Now()
	w.seq++
	cc := &cacheChange{seq: w.seq, kind: kind, keyhash: kh, iid: ih, payload: data, ts: ts}
	w.history = append(w.history, cc)
	w.trim()

	switch kind {
	case changeAlive, changeDisposed:
		if inst, ok := w.instances[ih]; ok {
			inst.lastWrite = now
		}
	default:
		delete(w.instances, ih)
	}

	if w.qos.Durability() >= qos.Transient {
		if st := w.dom.durable(); st != nil {
			if err := st.put(w, cc); err != nil {
				log.Warnf("writer %d: durable store: %s", w.handle, err)
			}
		}
	}

	w.stats.written++
	w.stats.writtenBytes += uint64(len(data))
	w.assertLiveliness(s, now)

	if w.pub.suspended || w.qos.WriterBatching() {
		w.pending = append(w.pending, cc)
		return
	}
	w.sendChanges(s, []*cacheChange{cc}, nil, nil)
}

// flush sends batched changes.
func (w *writer) flush(s *session) {
	if len(w.pending) == 0 {
		return
	}
	pending := w.pending
	w.pending = nil
	w.sendChanges(s, pending, nil, nil)
}

// trim drops history that is no longer needed: beyond the KeepLast depth
// per instance, and for volatile KeepAll writers what every reliable reader
// acknowledged.
func (w *writer) trim() {
	h := w.qos.History()
	acked := w.seq
	if h.Kind == qos.KeepAll && w.qos.Durability() == qos.Volatile {
		acked = w.minAcked()
	}
	perInstance := make(map[InstanceHandle]int32)
	keep := make([]*cacheChange, 0, len(w.history))
	for i := len(w.history) - 1; i >= 0; i-- {
		cc := w.history[i]
		if h.Kind == qos.KeepLast {
			perInstance[cc.iid]++
			if perInstance[cc.iid] > h.Depth {
				continue
			}
		} else if w.qos.Durability() == qos.Volatile && cc.seq <= acked {
			continue
		}
		keep = append(keep, cc)
	}
	slices.Reverse(keep)
	w.history = keep
}

func (w *writer) minAcked() SeqNum {
	low := w.seq
	for _, p := range w.matched {
		if p.reliable && p.acked < low {
			low = p.acked
		}
	}
	return low
}

func (w *writer) unacked() int {
	low := w.minAcked()
	n := 0
	for _, cc := range w.history {
		if cc.seq > low {
			n++
		}
	}
	return n + len(w.pending)
}

func (w *writer) hasReliableReaders() bool {
	for _, p := range w.matched {
		if p.reliable {
			return true
		}
	}
	return false
}

func (w *writer) allAcked() bool {
	if len(w.pending) > 0 {
		return false
	}
	for _, p := range w.matched {
		if p.reliable && p.acked < w.seq {
			return false
		}
	}
	return true
}

func (w *writer) change(sn SeqNum) *cacheChange {
	i, ok := slices.BinarySearchFunc(w.history, sn, func(cc *cacheChange, sn SeqNum) int {
		return int(cc.seq - sn)
	})
	if !ok {
		return nil
	}
	return w.history[i]
}

func (w *writer) firstSeq() SeqNum {
	if len(w.history) == 0 {
		return w.seq + 1
	}
	return w.history[0].seq
}

func (w *writer) inlineQos(cc *cacheChange) []*paramListItem {
	ps := []*paramListItem{
		{pid: PID_TOPIC_NAME, value: packParamString(binary.LittleEndian, w.topic.name)},
		{pid: PID_TYPE_NAME, value: packParamString(binary.LittleEndian, w.topic.desc.TypeName)},
		{pid: PID_KEY_HASH, value: append([]byte(nil), cc.keyhash[:]...)},
		{pid: PID_RELIABILITY, value: reliabilityToWire(w.qos.Reliability()).Bytes()},
		{pid: PID_DURABILITY, value: durabilityToWire(w.qos.Durability()).Bytes()},
	}
	if si := cc.kind.statusInfo(); si != 0 {
		ps = append(ps, &paramListItem{pid: PID_STATUS_INFO, value: packParamUint32(binary.BigEndian, si)})
	}
	return ps
}

// gapRange is a run [start, end) of sequence numbers a reader can skip.
type gapRange struct {
	start, end SeqNum
}

// sendChanges transmits changes, to every matched reader or only to dst,
// interleaved with GAPs for what the history no longer holds.
func (w *writer) sendChanges(s *session, ccs []*cacheChange, gaps []gapRange, dst *reader) {
	d := w.dom
	limit := d.cfg.UDP.MaxMessageSize
	readerID := EntityID(ENTITYID_UNKNOWN)
	if dst != nil {
		readerID = dst.guid.EntityID
	}

	var msg bytes.Buffer
	pending := 0
	begin := func() {
		msg.Reset()
		pending = 0
		newHeader(w.guid.Prefix).WriteTo(&msg)
		if dst != nil {
			newInfoDstSubMsg(dst.guid.Prefix).WriteTo(&msg)
		}
	}
	writeGap := func(g gapRange) {
		gap := submsgGap{readerEID: readerID, writerEID: w.guid.EntityID, gapStart: g.start, gapList: newSeqNumSet(g.end, 0)}
		gap.WriteTo(&msg)
		pending++
	}
	begin()

	for _, cc := range ccs {
		for len(gaps) > 0 && gaps[0].start < cc.seq {
			writeGap(gaps[0])
			gaps = gaps[1:]
		}
		if pending > 0 && msg.Len()+len(cc.payload)+128 > limit {
			d.send(msg.Bytes())
			begin()
		}
		newTsSubMsg(cc.ts, binary.LittleEndian).WriteTo(&msg)
		data := submsgData{
			readerID:     readerID,
			writerID:     w.guid.EntityID,
			writerSeqNum: cc.seq,
			inlineQos:    w.inlineQos(cc),
			data:         cc.payload,
		}
		data.WriteTo(&msg)
		pending++
	}
	for _, g := range gaps {
		writeGap(g)
	}
	if w.hasReliableReaders() {
		hb := w.heartbeat(readerID, false)
		hb.WriteTo(&msg)
		w.lastHB = time.Now()
		pending++
	}
	if pending > 0 {
		d.send(msg.Bytes())
	}
}

func (w *writer) heartbeat(readerID EntityID, final bool) submsgHeartbeat {
	w.hbCount++
	hb := submsgHeartbeat{
		readerEID:   readerID,
		writerEID:   w.guid.EntityID,
		firstSeqNum: w.firstSeq(),
		lastSeqNum:  w.seq,
		count:       w.hbCount,
	}
	if final {
		hb.hdr.flags |= FLAGS_HEARTBEAT_FLAG_FINAL
	}
	return hb
}

// replay sends the history to a newly matched durable reader.
func (w *writer) replay(s *session, r *reader) {
	var gaps []gapRange
	prev := SeqNum(0)
	for _, cc := range w.history {
		if cc.seq > prev+1 {
			gaps = append(gaps, gapRange{prev + 1, cc.seq})
		}
		prev = cc.seq
	}
	if w.seq > prev {
		gaps = append(gaps, gapRange{prev + 1, w.seq + 1})
	}
	w.sendChanges(s, w.history, gaps, r)
}

// rxAckNack handles an acknowledgement from a matched reader, resending
// what it asks for and GAPping what is gone.
func (w *writer) rxAckNack(s *session, r *reader, an *submsgAckNack) {
	p, ok := w.matched[r]
	if !ok || !p.reliable {
		return
	}
	sns := &an.readerSNState
	if acked := sns.bitmapBase - 1; acked > p.acked {
		p.acked = min(acked, w.seq)
	}

	var resend []*cacheChange
	var gaps []gapRange
	for sn := sns.bitmapBase; sn <= sns.Last() && sn <= w.seq; sn++ {
		if !sns.Contains(sn) {
			continue
		}
		if cc := w.change(sn); cc != nil {
			resend = append(resend, cc)
			continue
		}
		if n := len(gaps); n > 0 && gaps[n-1].end == sn {
			gaps[n-1].end++
		} else {
			gaps = append(gaps, gapRange{sn, sn + 1})
		}
	}
	for _, cc := range resend {
		w.stats.rexmit++
		w.stats.rexmitBytes += uint64(len(cc.payload))
	}
	if len(resend) > 0 || len(gaps) > 0 {
		w.sendChanges(s, resend, gaps, r)
	}
	w.trim()
}

func (w *writer) assertLiveliness(s *session, now time.Time) {
	w.lastAssert = now
	if w.alive {
		return
	}
	w.alive = true
	for r := range w.matched {
		r.writerLiveliness(w.guid, true)
	}
}

func (w *writer) tick(s *session, now time.Time) {
	lv := w.qos.Liveliness()
	if lv.Kind == qos.Automatic {
		w.lastAssert = now
	} else if w.alive && expired(w.lastAssert, lv.LeaseDuration, now) {
		w.alive = false
		w.livelinessLost.TotalCount++
		w.livelinessLost.TotalCountChange++
		w.raise(StatusLivelinessLost)
		for r := range w.matched {
			r.writerLiveliness(w.guid, false)
		}
	}

	if dl := w.qos.Deadline(); dl != qos.Infinite {
		for _, inst := range w.sortedInstances() {
			if expired(inst.lastWrite, dl, now) {
				inst.lastWrite = now
				w.deadlineMissed.TotalCount++
				w.deadlineMissed.TotalCountChange++
				w.deadlineMissed.LastInstanceHandle = inst.iid
				w.raise(StatusOfferedDeadlineMissed)
			}
		}
	}

	if !w.allAcked() && len(w.pending) == 0 && now.Sub(w.lastHB) >= w.dom.cfg.Timing.HeartbeatInterval.Std() {
		var msg bytes.Buffer
		newHeader(w.guid.Prefix).WriteTo(&msg)
		hb := w.heartbeat(ENTITYID_UNKNOWN, false)
		hb.WriteTo(&msg)
		w.lastHB = now
		w.dom.send(msg.Bytes())
	}
}

// Suspend holds back the publisher's writes until Resume.
func Suspend(h Entity) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	p, ok := n.(*publisher)
	if !ok {
		return RetcodeIllegalOperation
	}
	p.suspended = true
	return RetcodeOK
}

// Resume sends everything written while the publisher was suspended.
func Resume(h Entity) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	p, ok := n.(*publisher)
	if !ok {
		return RetcodeIllegalOperation
	}
	if !p.suspended {
		return RetcodePreconditionNotMet
	}
	p.suspended = false
	for _, w := range s.writersOf(p) {
		if !w.qos.WriterBatching() {
			w.flush(s)
		}
	}
	s.broadcast()
	return RetcodeOK
}

func (s *session) writersOf(p *publisher) []*writer {
	var ws []*writer
	for _, c := range p.children {
		if w, ok := s.entities[c].(*writer); ok {
			ws = append(ws, w)
		}
	}
	return ws
}

// WaitForAcks blocks until every matched reliable reader of the writer (or
// of every writer of the publisher) acknowledged all data, or until timeout.
// A zero timeout polls.
func WaitForAcks(h Entity, timeout time.Duration) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	var ws []*writer
	switch v := n.(type) {
	case *writer:
		ws = []*writer{v}
	case *publisher:
		ws = s.writersOf(v)
	default:
		return RetcodeIllegalOperation
	}
	for _, w := range ws {
		if !w.pub.suspended {
			w.flush(s)
		}
	}
	ok := s.waitUntil(deadlineAfter(time.Now(), timeout), func() bool {
		for _, w := range ws {
			if !w.deleted && !w.allAcked() {
				return false
			}
		}
		return true
	})
	if !ok {
		return RetcodeTimeout
	}
	return RetcodeOK
}
