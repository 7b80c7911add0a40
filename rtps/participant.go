package rtps

import (
	"time"

	"github.com/liamstask/go-dds/config"
	"github.com/liamstask/go-dds/qos"
)

// "allows a participant to indicate that it only contains a
// subset of the possible builtin endpoints"
// bitmask of _BUILTIN_ENDPOINT_ values below
type builtinEndpointSet uint32

const (
	NN_DISC_BUILTIN_ENDPOINT_PARTICIPANT_ANNOUNCER      = (1 << 0)
	NN_DISC_BUILTIN_ENDPOINT_PARTICIPANT_DETECTOR       = (1 << 1)
	NN_DISC_BUILTIN_ENDPOINT_PUBLICATION_ANNOUNCER      = (1 << 2)
	NN_DISC_BUILTIN_ENDPOINT_PUBLICATION_DETECTOR       = (1 << 3)
	NN_DISC_BUILTIN_ENDPOINT_SUBSCRIPTION_ANNOUNCER     = (1 << 4)
	NN_DISC_BUILTIN_ENDPOINT_SUBSCRIPTION_DETECTOR      = (1 << 5)
	NN_BUILTIN_ENDPOINT_PARTICIPANT_MESSAGE_DATA_WRITER = (1 << 10)
	NN_BUILTIN_ENDPOINT_PARTICIPANT_MESSAGE_DATA_READER = (1 << 11)

	ourBuiltinEndpoints = NN_DISC_BUILTIN_ENDPOINT_PARTICIPANT_ANNOUNCER | NN_DISC_BUILTIN_ENDPOINT_PARTICIPANT_DETECTOR
)

// participantProxy is what we know about a participant from its SPDP
// announcements.
type participantProxy struct {
	protoVer         ProtoVersion
	vid              VendorID
	guidPrefix       GUIDPrefix
	expectsInlineQoS bool
	defaultUcastLoc  locator
	defaultMcastLoc  locator
	metaUcastLoc     locator
	metaMcastLoc     locator
	leaseDuration    time.Duration
	builtinEndpoints builtinEndpointSet
	lastSeen         time.Time
}

// participant is a local domain participant.
type participant struct {
	entity
	guid    GUID
	nextKey uint32
	topics  map[string]*topicDef
	spdpSeq SeqNum
}

func (pp *participant) nextEntityID(kind uint8) EntityID {
	pp.nextKey++
	return userEntityID(pp.nextKey, kind)
}

// CreateParticipant creates a participant in domain id, creating the domain
// with the default configuration if needed. Ids above MaxDomainID are
// attempted anyway.
func CreateParticipant(id uint32, q *qos.Qos) Entity {
	if id == DomainDefault {
		return Entity(RetcodeBadParameter)
	}
	if id > MaxDomainID {
		log.Warnf("domain id %d outside 0..%d", id, MaxDomainID)
	}
	pq := qos.New()
	if q != nil {
		pq = q.Clone()
	}
	if err := pq.Validate(); err != nil {
		return Entity(RetcodeBadParameter)
	}

	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.domains[id]
	if !ok {
		d = s.newDomain(id, config.Default(id), true)
	}
	pp := &participant{
		guid:   GUID{Prefix: newGUIDPrefix(), EntityID: ENTITYID_PARTICIPANT},
		topics: make(map[string]*topicDef),
	}
	pp.qos = pq
	s.register(pp, KindParticipant, d, d)

	if err := d.start(s); err != nil {
		log.Errorf("domain %d: %s", id, err)
		s.deleteNode(pp)
		if d.implicit {
			s.deleteNode(d)
		}
		return Entity(RetcodeError)
	}
	d.announce(pp, false)
	return pp.handle
}

func (pp *participant) teardown(s *session) {
	d := pp.dom
	d.announce(pp, true)
	for _, other := range d.participants(s) {
		if other != pp {
			return
		}
	}
	d.stop()
}

// LookupParticipants returns the local participants in a domain.
func LookupParticipants(id uint32) ([]Entity, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, RetcodeOK
	}
	var hs []Entity
	for _, pp := range d.participants(s) {
		hs = append(hs, pp.handle)
	}
	return hs, RetcodeOK
}

// DiscoveredParticipants returns the GUIDs of the other participants the
// domain has heard from.
func DiscoveredParticipants(h Entity) ([]GUID, int32) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return nil, rc
	}
	pp, ok := n.(*participant)
	if !ok {
		return nil, RetcodeIllegalOperation
	}
	var gs []GUID
	for gp := range pp.dom.remote {
		if gp != pp.guid.Prefix {
			gs = append(gs, GUID{Prefix: gp, EntityID: ENTITYID_PARTICIPANT})
		}
	}
	return gs, RetcodeOK
}

// AssertLiveliness renews the liveliness of a participant's writers or of a
// single writer.
func AssertLiveliness(h Entity) int32 {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return rc
	}
	now := time.Now()
	switch v := n.(type) {
	case *participant:
		for _, w := range v.dom.writers {
			if participantOf(w) == v && w.qos.Liveliness().Kind != qos.ManualByTopic {
				w.assertLiveliness(s, now)
			}
		}
	case *writer:
		v.assertLiveliness(s, now)
	default:
		return RetcodeIllegalOperation
	}
	return RetcodeOK
}
