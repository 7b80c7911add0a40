package rtps

import "time"

type writerStats struct {
	written      uint64
	writtenBytes uint64
	rexmit       uint64
	rexmitBytes  uint64
	throttled    uint64
}

type readerStats struct {
	received      uint64
	receivedBytes uint64
	rejected      uint64
	lost          uint64
	filtered      uint64
}

// Stat is one named counter of an entity.
type Stat struct {
	Name  string
	Value uint64
}

// Statistics is a snapshot of the counters of a reader or writer.
type Statistics struct {
	Entity Entity
	Opaque InstanceHandle
	Time   time.Time
	Values []Stat
}

// Lookup returns the value of the named counter.
func (st *Statistics) Lookup(name string) (uint64, bool) {
	for _, v := range st.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// GetStatistics snapshots the counters of a reader or writer.
func GetStatistics(h Entity) (*Statistics, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	st := &Statistics{Entity: h, Opaque: n.base().iid, Time: time.Now()}
	switch v := n.(type) {
	case *writer:
		st.Values = []Stat{
			{"written_count", v.stats.written},
			{"written_bytes", v.stats.writtenBytes},
			{"rexmit_count", v.stats.rexmit},
			{"rexmit_bytes", v.stats.rexmitBytes},
			{"throttled_count", v.stats.throttled},
			{"unacked_count", uint64(v.unacked())},
		}
	case *reader:
		st.Values = []Stat{
			{"received_count", v.stats.received},
			{"received_bytes", v.stats.receivedBytes},
			{"rejected_count", v.stats.rejected},
			{"lost_count", v.stats.lost},
			{"filtered_count", v.stats.filtered},
		}
	default:
		return nil, RetcodeIllegalOperation
	}
	return st, RetcodeOK
}
