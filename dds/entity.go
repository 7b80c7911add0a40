package dds

import (
	"fmt"
	"runtime"

	"github.com/liamstask/go-dds/qos"
	"github.com/liamstask/go-dds/rtps"
)

type (
	InstanceHandle = rtps.InstanceHandle
	GUID           = rtps.GUID
	EntityKind     = rtps.EntityKind
	FindScope      = rtps.FindScope
	SampleInfo     = rtps.SampleInfo
)

const (
	KindDontCare    = rtps.KindDontCare
	KindTopic       = rtps.KindTopic
	KindParticipant = rtps.KindParticipant
	KindReader      = rtps.KindReader
	KindWriter      = rtps.KindWriter
	KindSubscriber  = rtps.KindSubscriber
	KindPublisher   = rtps.KindPublisher
	KindDomain      = rtps.KindDomain
)

const (
	FindGlobal      = rtps.FindGlobal
	FindLocalDomain = rtps.FindLocalDomain
	FindParticipant = rtps.FindParticipant
)

// DomainDefault is the default-domain sentinel. Participants cannot be
// created with it.
const DomainDefault uint32 = rtps.DomainDefault

// Entity is implemented by every wrapper around a transport entity.
type Entity interface {
	// InstanceHandle returns the process-local identity of the entity.
	InstanceHandle() (InstanceHandle, error)
	// GUID returns the network identity of a participant, reader or writer.
	GUID() (GUID, error)
	// Participant returns the participant the entity belongs to.
	Participant() (*Participant, error)
	DomainID() (uint32, error)
	// Triggered reports whether an enabled status flag is raised.
	Triggered() (bool, error)
	// Topic returns the topic of a reader or writer, or a topic itself.
	Topic() (*AnyTopic, error)
	AssertLiveliness() error
	Qos() (*qos.Qos, error)
	SetQos(q *qos.Qos) error
	// StatusChanges returns the raised status flags without resetting them.
	StatusChanges() (uint32, error)
	SetStatusMask(mask uint32) error
	// Parent returns the wrapper the entity was created from, nil for
	// participants created without an explicit domain.
	Parent() Entity
	Kind() EntityKind
	// Children lists the entities directly owned by this one, including
	// implicit publishers and subscribers.
	Children() ([]EntityRef, error)
	// Close deletes the entity and everything it owns. It returns an error
	// wrapping RetcodeAlreadyDeleted when the entity is gone already.
	Close() error

	raw() rtps.Entity
	owned() *owner
}

// owner holds one transport handle and deletes it when closed or collected.
// It points at the owners of the parent and topic so that a dependent is
// always finalized before what it depends on.
type owner struct {
	h    rtps.Entity
	kind EntityKind
	deps []*owner
}

func newOwner(op string, h rtps.Entity, kind EntityKind, deps ...*owner) (*owner, error) {
	if h == 0 {
		return nil, &Error{Op: op, Code: RetcodeError}
	}
	if h < 0 {
		return nil, check(op, int32(h))
	}
	o := &owner{h: h, kind: kind}
	for _, d := range deps {
		if d != nil {
			o.deps = append(o.deps, d)
		}
	}
	runtime.SetFinalizer(o, (*owner).finalize)
	return o, nil
}

func (o *owner) finalize() {
	rc := rtps.Delete(o.h)
	switch rc {
	case rtps.RetcodeOK:
		log.Debugf("collected %s %d", o.kind, o.h)
	case rtps.RetcodeAlreadyDeleted:
	case rtps.RetcodePreconditionNotMet:
		if o.kind == KindTopic {
			// left to the participant
			return
		}
		fallthrough
	default:
		panic(fmt.Sprintf("dds: deleting unreachable %s %d: %s", o.kind, o.h, ReturnCodeOf(rc)))
	}
}

func (o *owner) close() error {
	runtime.SetFinalizer(o, nil)
	rc := rtps.Delete(o.h)
	switch {
	case rc == rtps.RetcodeOK:
		return nil
	case rc == rtps.RetcodeAlreadyDeleted:
		return &Error{Op: "close", Code: RetcodeAlreadyDeleted}
	case rc == rtps.RetcodePreconditionNotMet && o.kind == KindTopic:
		// still bound to readers or writers
		runtime.SetFinalizer(o, (*owner).finalize)
		return &Error{Op: "close", Code: RetcodePreconditionNotMet}
	}
	panic(fmt.Sprintf("dds: deleting %s %d: %s", o.kind, o.h, ReturnCodeOf(rc)))
}

// entity implements the parts of Entity common to all wrappers.
type entity struct {
	own    *owner
	parent Entity
}

func (e *entity) raw() rtps.Entity {
	return e.own.h
}

func (e *entity) owned() *owner {
	return e.own
}

func (e *entity) Kind() EntityKind {
	return e.own.kind
}

func (e *entity) Parent() Entity {
	return e.parent
}

func (e *entity) Close() error {
	return e.own.close()
}

func (e *entity) InstanceHandle() (InstanceHandle, error) {
	ih, rc := rtps.GetInstanceHandle(e.raw())
	return ih, check("instance handle", rc)
}

func (e *entity) GUID() (GUID, error) {
	g, rc := rtps.GetGUID(e.raw())
	return g, check("guid", rc)
}

func (e *entity) DomainID() (uint32, error) {
	id, rc := rtps.GetDomainID(e.raw())
	return id, check("domain id", rc)
}

func (e *entity) Triggered() (bool, error) {
	rc := rtps.Triggered(e.raw())
	if err := check("triggered", rc); err != nil {
		return false, err
	}
	return rc > 0, nil
}

func (e *entity) Topic() (*AnyTopic, error) {
	if _, rc := rtps.GetKind(e.raw()); rc < 0 {
		return nil, check("topic", rc)
	}
	return nil, &Error{Op: "topic", Code: RetcodeIllegalOperation}
}

func (e *entity) AssertLiveliness() error {
	return check("assert liveliness", rtps.AssertLiveliness(e.raw()))
}

func (e *entity) Qos() (*qos.Qos, error) {
	q, rc := rtps.GetQos(e.raw())
	return q, check("get qos", rc)
}

func (e *entity) SetQos(q *qos.Qos) error {
	return check("set qos", rtps.SetQos(e.raw(), q))
}

func (e *entity) StatusChanges() (uint32, error) {
	st, rc := rtps.GetStatusChanges(e.raw())
	return st, check("status changes", rc)
}

func (e *entity) SetStatusMask(mask uint32) error {
	return check("set status mask", rtps.SetStatusMask(e.raw(), mask))
}

func (e *entity) Children() ([]EntityRef, error) {
	return children(e.raw())
}

func children(h rtps.Entity) ([]EntityRef, error) {
	hs, rc := rtps.GetChildren(h)
	if err := check("children", rc); err != nil {
		return nil, err
	}
	refs := make([]EntityRef, len(hs))
	for i, h := range hs {
		refs[i] = EntityRef{h: h}
	}
	return refs, nil
}

func (e *entity) Participant() (*Participant, error) {
	pp, rc := rtps.GetParticipant(e.raw())
	if rc < 0 {
		return nil, participantLookupError(rc)
	}
	for p := e.parent; p != nil; p = p.Parent() {
		if w, ok := p.(*Participant); ok {
			if w.raw() != pp {
				break
			}
			return w, nil
		}
	}
	return nil, &ParticipantLookupError{Kind: LookupInternalError}
}

// EntityRef names an entity without owning it. Closing the wrapper that
// owns the entity invalidates the reference.
type EntityRef struct {
	h rtps.Entity
}

// Handle returns the raw transport handle.
func (r EntityRef) Handle() int32 {
	return int32(r.h)
}

func (r EntityRef) Kind() (EntityKind, error) {
	k, rc := rtps.GetKind(r.h)
	return k, check("kind", rc)
}

func (r EntityRef) InstanceHandle() (InstanceHandle, error) {
	ih, rc := rtps.GetInstanceHandle(r.h)
	return ih, check("instance handle", rc)
}

// Children lists the entities owned by the referenced one.
func (r EntityRef) Children() ([]EntityRef, error) {
	return children(r.h)
}

// Ref returns a non-owning reference to e.
func Ref(e Entity) EntityRef {
	return EntityRef{h: e.raw()}
}
