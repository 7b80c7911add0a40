package dds

import (
	"fmt"

	"github.com/liamstask/go-dds/cdr"
	"github.com/liamstask/go-dds/rtps"
)

type InconsistentTopicStatus = rtps.InconsistentTopicStatus

// AnyTopic is a topic handle without a sample type.
type AnyTopic struct {
	entity
	name string
	desc *TypeDescriptor
}

func newAnyTopic(p *Participant, op string, h rtps.Entity) (*AnyTopic, error) {
	own, err := newOwner(op, h, KindTopic, p.own)
	if err != nil {
		return nil, err
	}
	t := &AnyTopic{entity: entity{own: own, parent: p}}
	var rc int32
	if t.name, rc = rtps.GetName(h); rc < 0 {
		return nil, check(op, rc)
	}
	if t.desc, rc = rtps.GetTypeDescriptor(h); rc < 0 {
		return nil, check(op, rc)
	}
	return t, nil
}

func (t *AnyTopic) Name() string {
	return t.name
}

func (t *AnyTopic) TypeName() string {
	return t.desc.TypeName
}

// Descriptor returns the type layout the topic was registered with.
func (t *AnyTopic) Descriptor() *TypeDescriptor {
	return t.desc
}

func (t *AnyTopic) Topic() (*AnyTopic, error) {
	if _, rc := rtps.GetKind(t.raw()); rc < 0 {
		return nil, check("topic", rc)
	}
	return t, nil
}

// InconsistentTopicStatus returns the INCONSISTENT_TOPIC status and resets
// its change counter.
func (t *AnyTopic) InconsistentTopicStatus() (InconsistentTopicStatus, error) {
	st, rc := rtps.GetInconsistentTopicStatus(t.raw())
	return st, check("inconsistent topic status", rc)
}

// SetFilter installs a filter on serialized samples. Readers created from
// this handle afterwards deliver only samples it accepts; readers that
// already exist keep the filter they were created with.
func (t *AnyTopic) SetFilter(f func(sample []byte, arg any) bool, arg any) error {
	return check("set filter", rtps.SetTopicFilter(t.raw(), rtps.TopicFilter(f), arg))
}

func (t *AnyTopic) participant() *Participant {
	return t.parent.(*Participant)
}

// Topic is a topic carrying samples of type T.
type Topic[T any] struct {
	AnyTopic
}

// NewTopic registers the topic for T in a participant, or attaches to the
// participant's topic of the same name. The name is the type name unless T
// implements TopicNamer or WithTopicName is given. A topic of that name
// registered with another type fails with PreconditionNotMet.
func NewTopic[T any](p *Participant, opts ...Option) (*Topic[T], error) {
	entry, err := describeType[T]()
	if err != nil {
		return nil, err
	}
	s := applyOptions(opts)
	name := entry.topicName
	if s.topicName != "" {
		name = s.topicName
	}
	h := rtps.CreateTopic(p.raw(), entry.desc, name, s.qos)
	at, err := newAnyTopic(p, "create topic", h)
	if err != nil {
		return nil, err
	}
	return &Topic[T]{AnyTopic: *at}, nil
}

// Any returns the type-erased view of the topic. It shares ownership of the
// topic handle with t.
func (t *Topic[T]) Any() *AnyTopic {
	return &t.AnyTopic
}

// SetFilter installs a typed filter. Samples that fail to decode are
// rejected.
func (t *Topic[T]) SetFilter(f func(sample *T, arg any) bool, arg any) error {
	if f == nil {
		return t.AnyTopic.SetFilter(nil, nil)
	}
	return t.AnyTopic.SetFilter(func(b []byte, arg any) bool {
		var v T
		if err := cdr.Unmarshal(b, &v); err != nil {
			return false
		}
		return f(&v, arg)
	}, arg)
}

// TopicFrom converts a type-erased topic to a typed one on a new handle. It
// fails with ErrTypeMismatch when the topic was registered with another
// type.
func TopicFrom[T any](at *AnyTopic) (*Topic[T], error) {
	entry, err := describeType[T]()
	if err != nil {
		return nil, err
	}
	if entry.desc.TypeName != at.TypeName() {
		return nil, fmt.Errorf("%w: topic %q has type %s, not %s", ErrTypeMismatch, at.Name(), at.TypeName(), entry.desc.TypeName)
	}
	q, err := at.Qos()
	if err != nil {
		return nil, err
	}
	p := at.participant()
	nt, err := newAnyTopic(p, "create topic", rtps.CreateTopic(p.raw(), at.desc, at.name, q))
	if err != nil {
		return nil, err
	}
	return &Topic[T]{AnyTopic: *nt}, nil
}
