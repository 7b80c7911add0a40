package rtps

import (
	"time"

	"github.com/liamstask/go-dds/cdr"
	"github.com/liamstask/go-dds/qos"
)

// Topic descriptor flags.
const (
	TopicFlagFixedKey  uint32 = 0x2  // key hash is the padded key itself
	TopicFlagFixedSize uint32 = 0x20 // no strings or sequences
)

// KeyDescriptor locates one key member of a topic type.
type KeyDescriptor struct {
	Name   string
	Offset uint32
	Index  uint32
}

// TopicDescriptor is the layout of a topic type. Ops is the marshalling
// program used to validate payloads and extract key hashes.
type TopicDescriptor struct {
	TypeName        string
	Size            uint32
	Align           uint32
	Flags           uint32
	Keys            []KeyDescriptor
	Ops             []uint32
	TypeInformation []byte
	TypeMapping     []byte
}

// Keyed reports whether the type has key members.
func (td *TopicDescriptor) Keyed() bool {
	return len(td.Keys) > 0
}

// keyHash validates payload and returns its instance key hash.
func (td *TopicDescriptor) keyHash(payload []byte) ([16]byte, error) {
	return cdr.KeyHash(td.Ops, payload)
}

// TopicFilter accepts or rejects a serialized sample.
type TopicFilter func(sample []byte, arg any) bool

type FindScope int32

const (
	FindGlobal FindScope = iota
	FindLocalDomain
	FindParticipant
)

// topicDef is the topic shared by every topic handle of the same name in a
// participant.
type topicDef struct {
	name         string
	desc         *TopicDescriptor
	iid          InstanceHandle
	qos          *qos.Qos
	inconsistent InconsistentTopicStatus
	handles      []*topic
}

type topic struct {
	entity
	def       *topicDef
	name      string
	desc      *TopicDescriptor
	filter    TopicFilter
	filterArg any
	refs      int // readers and writers bound to this handle
}

// CreateTopic registers a topic, or attaches to the participant's existing
// topic of the same name. An existing topic with a different type fails
// with PreconditionNotMet and raises INCONSISTENT_TOPIC on it.
func CreateTopic(h Entity, desc *TopicDescriptor, name string, q *qos.Qos) Entity {
	if desc == nil || desc.TypeName == "" || name == "" || len(desc.Ops) == 0 {
		return Entity(RetcodeBadParameter)
	}
	tq := qos.New()
	if q != nil {
		tq = q.Clone()
	}
	if err := tq.Validate(); err != nil {
		return Entity(RetcodeBadParameter)
	}

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

	def, ok := pp.topics[name]
	if ok && def.desc.TypeName != desc.TypeName {
		def.inconsistent.TotalCount++
		def.inconsistent.TotalCountChange++
		for _, t := range def.handles {
			t.raise(StatusInconsistentTopic)
		}
		log.Warnf("topic %q registered as %s, not %s", name, def.desc.TypeName, desc.TypeName)
		return Entity(RetcodePreconditionNotMet)
	}
	if !ok {
		def = &topicDef{name: name, desc: desc, iid: s.nextIID(), qos: tq}
		pp.topics[name] = def
	}
	t := s.newTopic(pp, def, tq)
	s.broadcast()
	return t.handle
}

func (s *session) newTopic(pp *participant, def *topicDef, q *qos.Qos) *topic {
	t := &topic{def: def, name: def.name, desc: def.desc}
	t.qos = q.Clone()
	t.qos.Merge(def.qos)
	s.register(t, KindTopic, pp, pp.dom)
	t.iid = def.iid
	def.handles = append(def.handles, t)
	return t
}

func (t *topic) teardown(s *session) {
	def := t.def
	for i, o := range def.handles {
		if o == t {
			def.handles = append(def.handles[:i], def.handles[i+1:]...)
			break
		}
	}
	if len(def.handles) == 0 {
		if pp := participantOf(t); pp != nil && pp.topics[def.name] == def {
			delete(pp.topics, def.name)
		}
	}
}

// FindTopic looks for a topic by name and returns a new handle to it in
// participant h, waiting up to timeout for it to appear. It returns 0 when
// no topic was found.
func FindTopic(scope FindScope, h Entity, name string, timeout time.Duration) Entity {
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

	var found *topicDef
	search := func() bool {
		if pp.deleted {
			return true
		}
		if def, ok := pp.topics[name]; ok {
			found = def
			return true
		}
		if scope == FindParticipant {
			return false
		}
		for _, other := range pp.dom.participants(s) {
			if def, ok := other.topics[name]; ok {
				found = def
				return true
			}
		}
		return false
	}
	s.waitUntil(deadlineAfter(time.Now(), timeout), search)
	if pp.deleted {
		return Entity(RetcodeAlreadyDeleted)
	}
	if found == nil {
		return 0
	}
	if pp.topics[name] != found {
		// found in another participant: register it here
		found = &topicDef{name: found.name, desc: found.desc, iid: s.nextIID(), qos: found.qos.Clone()}
		pp.topics[name] = found
	}
	return s.newTopic(pp, found, found.qos).handle
}

// SetTopicFilter installs a sample filter on a topic handle. Readers created
// from the handle afterwards only receive accepted samples; setting it while
// readers exist is the caller's responsibility.
func SetTopicFilter(h Entity, f TopicFilter, arg any) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	t, ok := n.(*topic)
	if !ok {
		return RetcodeIllegalOperation
	}
	t.filter = f
	t.filterArg = arg
	return RetcodeOK
}

// GetInconsistentTopicStatus returns and resets the inconsistent topic status.
func GetInconsistentTopicStatus(h Entity) (InconsistentTopicStatus, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return InconsistentTopicStatus{}, rc
	}
	t, ok := n.(*topic)
	if !ok {
		return InconsistentTopicStatus{}, RetcodeIllegalOperation
	}
	st := t.def.inconsistent
	t.def.inconsistent.TotalCountChange = 0
	for _, o := range t.def.handles {
		o.clear(StatusInconsistentTopic)
	}
	return st, RetcodeOK
}
