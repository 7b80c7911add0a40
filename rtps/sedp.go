package rtps

import (
	"path"
	"slices"

	"github.com/liamstask/go-dds/qos"
)

// sedp: endpoint discovery
//
// Writers and readers of a domain are matched in-process as they appear,
// the way SEDP would pair them after exchanging publication and
// subscription data. Matching requires the same topic and type name,
// overlapping partitions and request/offered compatible QoS.

func (s *session) matchWriter(w *writer) {
	for _, r := range sortedReaders(w.dom) {
		s.tryMatch(w, r)
	}
}

func (s *session) matchReader(r *reader) {
	for _, w := range sortedWriters(r.dom) {
		s.tryMatch(w, r)
	}
}

func sortedWriters(d *domain) []*writer {
	ws := make([]*writer, 0, len(d.writers))
	for _, w := range d.writers {
		ws = append(ws, w)
	}
	slices.SortFunc(ws, func(a, b *writer) int { return int(a.handle - b.handle) })
	return ws
}

func sortedReaders(d *domain) []*reader {
	rs := make([]*reader, 0, len(d.readers))
	for _, r := range d.readers {
		rs = append(rs, r)
	}
	slices.SortFunc(rs, func(a, b *reader) int { return int(a.handle - b.handle) })
	return rs
}

func (s *session) tryMatch(w *writer, r *reader) {
	if _, ok := w.matched[r]; ok {
		return
	}
	if w.topic.name != r.topic.name {
		return
	}
	if w.topic.desc.TypeName != r.topic.desc.TypeName {
		for _, def := range []*topicDef{w.topic.def, r.topic.def} {
			def.inconsistent.TotalCount++
			def.inconsistent.TotalCountChange++
			for _, t := range def.handles {
				t.raise(StatusInconsistentTopic)
			}
		}
		return
	}
	if !partitionsMatch(w.pub.qos.Partition(), r.sub.qos.Partition()) {
		return
	}
	if ignored(w, r) {
		return
	}
	if id, ok := compatible(w, r); !ok {
		w.incompatible.TotalCount++
		w.incompatible.TotalCountChange++
		w.incompatible.LastPolicyID = id
		w.raise(StatusOfferedIncompatibleQos)
		r.incompatible.TotalCount++
		r.incompatible.TotalCountChange++
		r.incompatible.LastPolicyID = id
		r.raise(StatusRequestedIncompatibleQos)
		log.Debugf("writer %d and reader %d: incompatible %s", w.handle, r.handle, id)
		return
	}
	s.match(w, r)
}

// partitionsMatch reports whether two partition lists share a name. The
// empty list is the default partition; names may be glob patterns.
func partitionsMatch(a, b []string) bool {
	if len(a) == 0 {
		a = []string{""}
	}
	if len(b) == 0 {
		b = []string{""}
	}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
			if ok, _ := path.Match(x, y); ok {
				return true
			}
			if ok, _ := path.Match(y, x); ok {
				return true
			}
		}
	}
	return false
}

func ignored(w *writer, r *reader) bool {
	for _, k := range []qos.IgnoreLocalKind{w.qos.IgnoreLocal(), r.qos.IgnoreLocal()} {
		switch k {
		case qos.IgnoreProcess:
			return true
		case qos.IgnoreParticipant:
			if participantOf(w) == participantOf(r) {
				return true
			}
		}
	}
	return false
}

// compatible checks the requested/offered policies and returns the first
// one that fails.
func compatible(w *writer, r *reader) (qos.PolicyID, bool) {
	o, q := w.qos, r.qos
	if q.Reliability().Kind == qos.Reliable && o.Reliability().Kind == qos.BestEffort {
		return qos.ReliabilityPolicy, false
	}
	if o.Durability() < q.Durability() {
		return qos.DurabilityPolicy, false
	}
	if o.Deadline() > q.Deadline() {
		return qos.DeadlinePolicy, false
	}
	if o.LatencyBudget() > q.LatencyBudget() {
		return qos.LatencyBudgetPolicy, false
	}
	ol, rl := o.Liveliness(), q.Liveliness()
	if ol.Kind < rl.Kind || ol.LeaseDuration > rl.LeaseDuration {
		return qos.LivelinessPolicy, false
	}
	if o.Ownership() != q.Ownership() {
		return qos.OwnershipPolicy, false
	}
	if o.DestinationOrder() < q.DestinationOrder() {
		return qos.DestinationOrderPolicy, false
	}
	op, rp := w.pub.qos.Presentation(), r.sub.qos.Presentation()
	if op.AccessScope < rp.AccessScope ||
		(rp.CoherentAccess && !op.CoherentAccess) ||
		(rp.OrderedAccess && !op.OrderedAccess) {
		return qos.PresentationPolicy, false
	}
	if !slices.Contains(q.DataRepresentation(), o.DataRepresentation()[0]) {
		return qos.DataRepresentationPolicy, false
	}
	return 0, true
}

func (s *session) match(w *writer, r *reader) {
	reliable := r.qos.Reliability().Kind == qos.Reliable
	rp := &readerProxy{reliable: reliable, acked: w.seq}
	wp := &writerProxy{
		guid:     w.guid,
		w:        w,
		iid:      w.iid,
		reliable: reliable,
		lastSeq:  w.seq,
		strength: w.qos.OwnershipStrength(),
		lifespan: w.qos.Lifespan(),
		alive:    w.alive,
	}
	durable := w.qos.Durability() >= qos.TransientLocal && r.qos.Durability() >= qos.TransientLocal
	if durable {
		rp.acked = 0
		wp.lastSeq = 0
		wp.historicalUntil = w.seq
	}
	w.matched[r] = rp

	w.pubMatched.TotalCount++
	w.pubMatched.TotalCountChange++
	w.pubMatched.CurrentCount++
	w.pubMatched.CurrentCountChange++
	w.pubMatched.LastSubscriptionHandle = r.iid
	w.raise(StatusPublicationMatched)
	r.addWriter(wp)
	log.Debugf("matched writer %d with reader %d", w.handle, r.handle)

	if durable && w.dom.running {
		w.replay(s, r)
	}
}

func (s *session) unmatch(w *writer, r *reader) {
	if _, ok := w.matched[r]; !ok {
		return
	}
	delete(w.matched, r)
	w.pubMatched.CurrentCount--
	w.pubMatched.CurrentCountChange--
	w.pubMatched.LastSubscriptionHandle = r.iid
	w.raise(StatusPublicationMatched)
	if wp, ok := r.writers[w.guid]; ok {
		r.removeWriter(wp)
	}
	w.trim()
}

// rematch re-evaluates the matches of a publisher's or subscriber's
// endpoints after a partition change.
func (s *session) rematch(n node) {
	switch v := n.(type) {
	case *publisher:
		for _, w := range s.writersOf(v) {
			for _, r := range sortedReaders(w.dom) {
				if _, ok := w.matched[r]; ok && !partitionsMatch(v.qos.Partition(), r.sub.qos.Partition()) {
					s.unmatch(w, r)
				}
			}
			s.matchWriter(w)
		}
	case *subscriber:
		for _, r := range s.readersOf(v) {
			for _, w := range sortedWriters(r.dom) {
				if _, ok := w.matched[r]; ok && !partitionsMatch(w.pub.qos.Partition(), v.qos.Partition()) {
					s.unmatch(w, r)
				}
			}
			s.matchReader(r)
		}
	}
}
