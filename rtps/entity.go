package rtps

import (
	"slices"

	"github.com/liamstask/go-dds/qos"
)

// Entity is a handle to an object in the engine. Handles are positive and
// never reused; negative values returned in their place are return codes.
type Entity int32

// InstanceHandle identifies an entity or a data instance within the process.
type InstanceHandle uint64

type EntityKind int32

const (
	KindDontCare EntityKind = iota
	KindTopic
	KindParticipant
	KindReader
	KindWriter
	KindSubscriber
	KindPublisher
	KindDomain
)

func (k EntityKind) String() string {
	switch k {
	case KindTopic:
		return "topic"
	case KindParticipant:
		return "participant"
	case KindReader:
		return "reader"
	case KindWriter:
		return "writer"
	case KindSubscriber:
		return "subscriber"
	case KindPublisher:
		return "publisher"
	case KindDomain:
		return "domain"
	}
	return "dontcare"
}

// Communication status flags.
const (
	StatusInconsistentTopic uint32 = 1 << iota
	StatusOfferedDeadlineMissed
	StatusRequestedDeadlineMissed
	StatusOfferedIncompatibleQos
	StatusRequestedIncompatibleQos
	StatusSampleLost
	StatusSampleRejected
	StatusDataOnReaders
	StatusDataAvailable
	StatusLivelinessLost
	StatusLivelinessChanged
	StatusPublicationMatched
	StatusSubscriptionMatched

	statusAll = StatusSubscriptionMatched<<1 - 1
)

type node interface {
	base() *entity
}

// teardowner is implemented by nodes that hold resources beyond the arena entry.
type teardowner interface {
	teardown(s *session)
}

type entity struct {
	handle   Entity
	kind     EntityKind
	iid      InstanceHandle
	parent   node
	children []Entity
	dom      *domain
	qos      *qos.Qos
	status   uint32 // raised flags
	mask     uint32 // enabled flags
	deleted  bool
}

func (e *entity) base() *entity { return e }

func (e *entity) raise(flags uint32) {
	e.status |= flags
}

func (e *entity) clear(flags uint32) {
	e.status &^= flags
}

func (e *entity) triggered() bool {
	return e.status&e.mask != 0
}

func (e *entity) removeChild(h Entity) {
	if i := slices.Index(e.children, h); i >= 0 {
		e.children = slices.Delete(e.children, i, i+1)
	}
}

// participantOf walks up the tree; nil for domains.
func participantOf(n node) *participant {
	for n != nil {
		if pp, ok := n.(*participant); ok {
			return pp
		}
		n = n.base().parent
	}
	return nil
}

// GetKind returns the kind of an entity.
func GetKind(h Entity) (EntityKind, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return KindDontCare, rc
	}
	return n.base().kind, RetcodeOK
}

// GetInstanceHandle returns the instance handle identifying the entity.
func GetInstanceHandle(h Entity) (InstanceHandle, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	return n.base().iid, RetcodeOK
}

// GetGUID returns the network identity of a participant, reader or writer.
func GetGUID(h Entity) (GUID, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return GUID{}, rc
	}
	switch v := n.(type) {
	case *participant:
		return v.guid, RetcodeOK
	case *writer:
		return v.guid, RetcodeOK
	case *reader:
		return v.guid, RetcodeOK
	}
	return GUID{}, RetcodeIllegalOperation
}

func GetDomainID(h Entity) (uint32, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	return n.base().dom.id, RetcodeOK
}

// GetParent returns the parent entity; domains have none and return 0.
func GetParent(h Entity) (Entity, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	if p := n.base().parent; p != nil {
		return p.base().handle, RetcodeOK
	}
	return 0, RetcodeOK
}

func GetParticipant(h Entity) (Entity, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	pp := participantOf(n)
	if pp == nil {
		return 0, RetcodeIllegalOperation
	}
	return pp.handle, RetcodeOK
}

// GetTopic returns the topic of a reader or writer, or the topic itself.
func GetTopic(h Entity) (Entity, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	switch v := n.(type) {
	case *topic:
		return v.handle, RetcodeOK
	case *writer:
		return v.topic.handle, RetcodeOK
	case *reader:
		return v.topic.handle, RetcodeOK
	}
	return 0, RetcodeIllegalOperation
}

func GetChildren(h Entity) ([]Entity, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	return slices.Clone(n.base().children), RetcodeOK
}

// GetQos returns a copy of the entity's effective QoS.
func GetQos(h Entity) (*qos.Qos, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	if n.base().qos == nil {
		return nil, RetcodeIllegalOperation
	}
	return n.base().qos.Clone(), RetcodeOK
}

// SetQos applies q to an enabled entity. Changing an immutable policy fails
// with ImmutablePolicy and leaves the entity untouched.
func SetQos(h Entity, q *qos.Qos) int32 {
	if q == nil {
		return RetcodeBadParameter
	}
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	e := n.base()
	if e.qos == nil {
		return RetcodeIllegalOperation
	}
	next := q.Clone()
	next.Merge(e.qos)
	if err := next.Validate(); err != nil {
		return RetcodeBadParameter
	}
	changed := qos.Changed(e.qos, next)
	if changed&qos.ImmutableMask != 0 {
		return RetcodeImmutablePolicy
	}
	e.qos = next
	if changed.Has(qos.PartitionPolicy) {
		s.rematch(n)
	}
	s.broadcast()
	return RetcodeOK
}

// GetName returns the topic name of a topic, reader or writer.
func GetName(h Entity) (string, int32) {
	t, rc := topicOf(h)
	if rc != RetcodeOK {
		return "", rc
	}
	return t.name, RetcodeOK
}

func GetTypeName(h Entity) (string, int32) {
	t, rc := topicOf(h)
	if rc != RetcodeOK {
		return "", rc
	}
	return t.desc.TypeName, RetcodeOK
}

// GetTypeDescriptor returns the descriptor the topic was registered with.
func GetTypeDescriptor(h Entity) (*TopicDescriptor, int32) {
	t, rc := topicOf(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	return t.desc, RetcodeOK
}

func topicOf(h Entity) (*topic, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	switch v := n.(type) {
	case *topic:
		return v, RetcodeOK
	case *writer:
		return v.topic, RetcodeOK
	case *reader:
		return v.topic, RetcodeOK
	}
	return nil, RetcodeIllegalOperation
}

// Triggered returns 1 when an enabled status flag is raised, 0 otherwise.
func Triggered(h Entity) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	if n.base().triggered() {
		return 1
	}
	return 0
}

// GetStatusChanges returns the raised status flags without clearing them.
func GetStatusChanges(h Entity) (uint32, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	return n.base().status, RetcodeOK
}

func SetStatusMask(h Entity, mask uint32) int32 {
	if mask&^statusAll != 0 {
		return RetcodeBadParameter
	}
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	n.base().mask = mask
	return RetcodeOK
}

func GetStatusMask(h Entity) (uint32, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return 0, rc
	}
	return n.base().mask, RetcodeOK
}

// Delete deletes an entity and everything it owns: endpoints first, then
// publishers and subscribers, then topics.
func Delete(h Entity) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	if t, ok := n.(*topic); ok && t.refs > 0 {
		return RetcodePreconditionNotMet
	}
	parent := n.base().parent
	s.deleteNode(n)
	// implicit publishers, subscribers and domains go with their last child
	for parent != nil {
		im, ok := parent.(interface{ implicitEmpty() bool })
		if !ok || !im.implicitEmpty() {
			break
		}
		next := parent.base().parent
		s.deleteNode(parent)
		parent = next
	}
	s.broadcast()
	return RetcodeOK
}

func (s *session) deleteNode(n node) {
	e := n.base()
	if e.deleted {
		return
	}
	var topics []Entity
	for _, c := range slices.Clone(e.children) {
		cn, ok := s.entities[c]
		if !ok {
			continue
		}
		if cn.base().kind == KindTopic {
			topics = append(topics, c)
			continue
		}
		s.deleteNode(cn)
	}
	for _, c := range topics {
		if cn, ok := s.entities[c]; ok {
			s.deleteNode(cn)
		}
	}
	if td, ok := n.(teardowner); ok {
		td.teardown(s)
	}
	e.deleted = true
	delete(s.entities, e.handle)
	if e.parent != nil {
		e.parent.base().removeChild(e.handle)
	}
	log.Debugf("deleted %s %d", e.kind, e.handle)
}
