package dds

import (
	"time"

	"github.com/liamstask/go-dds/config"
	"github.com/liamstask/go-dds/qos"
	"github.com/liamstask/go-dds/rtps"
)

// Option configures entity creation.
type Option func(*settings)

type settings struct {
	qos       *qos.Qos
	topicName string
}

// WithQos sets the QoS the entity is created with. Policies left unset take
// their defaults, or the topic's for readers and writers.
func WithQos(q *qos.Qos) Option {
	return func(s *settings) {
		s.qos = q
	}
}

// WithTopicName overrides the topic name derived from the sample type.
func WithTopicName(name string) Option {
	return func(s *settings) {
		s.topicName = name
	}
}

func applyOptions(opts []Option) *settings {
	s := &settings{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Domain is an explicitly configured domain. Participants created from it
// run on its configuration.
type Domain struct {
	entity
	id  uint32
	cfg *config.Domain
}

// NewDomain creates a domain from a YAML configuration blob. An empty blob
// selects the defaults. The id must not already be in use.
func NewDomain(id uint32, blob []byte) (*Domain, error) {
	if id == DomainDefault {
		return nil, &DomainCreationError{DomainID: id, Kind: DomainBadParameter}
	}
	cfg, err := config.Parse(id, blob)
	if err != nil {
		return nil, &DomainCreationError{DomainID: id, Kind: DomainBadParameter, Err: err}
	}
	h := rtps.CreateDomain(id, cfg)
	if h < 0 {
		return nil, domainCreationError(id, int32(h))
	}
	own, err := newOwner("create domain", h, KindDomain)
	if err != nil {
		return nil, err
	}
	return &Domain{entity: entity{own: own}, id: id, cfg: cfg}, nil
}

// ID returns the domain id.
func (d *Domain) ID() uint32 {
	return d.id
}

// Config returns the configuration the domain was created with.
func (d *Domain) Config() *config.Domain {
	c := *d.cfg
	return &c
}

func (d *Domain) Participant() (*Participant, error) {
	return nil, &ParticipantLookupError{Kind: LookupIllegalOperation}
}

// CreateParticipant creates a participant in the domain.
func (d *Domain) CreateParticipant(opts ...Option) (*Participant, error) {
	if _, rc := rtps.GetKind(d.raw()); rc < 0 {
		return nil, check("create participant", rc)
	}
	return newParticipant(d.id, d, opts)
}

// LookupParticipants lists the local participants in the domain.
func (d *Domain) LookupParticipants() ([]EntityRef, error) {
	hs, rc := rtps.LookupParticipants(d.id)
	if err := check("lookup participants", rc); err != nil {
		return nil, err
	}
	refs := make([]EntityRef, len(hs))
	for i, h := range hs {
		refs[i] = EntityRef{h: h}
	}
	return refs, nil
}

// RawConfig creates a domain from a YAML configuration blob and returns a
// participant in it. Closing the participant leaves the domain in place
// until it is collected.
func RawConfig(id uint32, blob []byte, opts ...Option) (*Participant, error) {
	d, err := NewDomain(id, blob)
	if err != nil {
		return nil, err
	}
	return d.CreateParticipant(opts...)
}

// Participant is the entry point to a domain. It owns the publishers,
// subscribers and topics created from it.
type Participant struct {
	entity
	domainID uint32
}

// NewParticipant creates a participant in a domain, creating the domain with
// the default configuration when it does not exist yet. Domain ids outside
// 0..232 are attempted with a warning.
func NewParticipant(id uint32, opts ...Option) (*Participant, error) {
	return newParticipant(id, nil, opts)
}

func newParticipant(id uint32, dom *Domain, opts []Option) (*Participant, error) {
	if id == DomainDefault {
		return nil, &DomainCreationError{DomainID: id, Kind: DomainBadParameter}
	}
	if id > rtps.MaxDomainID {
		log.Warnf("domain id %d is outside the usual range 0..%d", id, rtps.MaxDomainID)
	}
	s := applyOptions(opts)
	h := rtps.CreateParticipant(id, s.qos)
	if h < 0 {
		return nil, domainCreationError(id, int32(h))
	}
	p := &Participant{domainID: id}
	var deps *owner
	if dom != nil {
		p.parent = dom
		deps = dom.own
	}
	own, err := newOwner("create participant", h, KindParticipant, deps)
	if err != nil {
		return nil, err
	}
	p.own = own
	return p, nil
}

func (p *Participant) Participant() (*Participant, error) {
	if _, rc := rtps.GetKind(p.raw()); rc < 0 {
		return nil, participantLookupError(rc)
	}
	return p, nil
}

// Publisher creates a publisher.
func (p *Participant) Publisher(opts ...Option) (*Publisher, error) {
	s := applyOptions(opts)
	own, err := newOwner("create publisher", rtps.CreatePublisher(p.raw(), s.qos), KindPublisher, p.own)
	if err != nil {
		return nil, err
	}
	return &Publisher{entity: entity{own: own, parent: p}}, nil
}

// Subscriber creates a subscriber.
func (p *Participant) Subscriber(opts ...Option) (*Subscriber, error) {
	s := applyOptions(opts)
	own, err := newOwner("create subscriber", rtps.CreateSubscriber(p.raw(), s.qos), KindSubscriber, p.own)
	if err != nil {
		return nil, err
	}
	return &Subscriber{entity: entity{own: own, parent: p}}, nil
}

// FindTopic looks for a topic by name, waiting up to timeout for it to
// appear, and returns a new handle to it in this participant. A topic that
// does not show up yields an error wrapping RetcodeTimeout.
func (p *Participant) FindTopic(scope FindScope, name string, timeout time.Duration) (*AnyTopic, error) {
	h := rtps.FindTopic(scope, p.raw(), name, timeout)
	if h == 0 {
		return nil, &Error{Op: "find topic", Code: RetcodeTimeout}
	}
	return newAnyTopic(p, "find topic", h)
}

// AnyTopic returns a type-erased handle to a topic already registered in
// this participant.
func (p *Participant) AnyTopic(name string) (*AnyTopic, error) {
	return p.FindTopic(FindParticipant, name, 0)
}

// DiscoveredParticipants returns the GUIDs of the other participants seen on
// the domain.
func (p *Participant) DiscoveredParticipants() ([]GUID, error) {
	gs, rc := rtps.DiscoveredParticipants(p.raw())
	return gs, check("discovered participants", rc)
}

// writerParent and readerParent mark the entities endpoints can be created
// under. A participant gets an implicit publisher or subscriber.
func (p *Participant) writerParent() {}
func (p *Participant) readerParent() {}
