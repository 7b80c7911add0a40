package rtps

import (
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("rtps")

// session collects the state that would otherwise be global: the entity
// arena, the domains and the wait channel. One mutex guards all of it,
// including every history cache.
type session struct {
	mu       sync.Mutex
	entities map[Entity]node
	last     Entity // most recently allocated handle
	iids     InstanceHandle
	domains  map[uint32]*domain
	changed  chan struct{}
}

var (
	defaultSession = session{
		entities: make(map[Entity]node),
		domains:  make(map[uint32]*domain),
		changed:  make(chan struct{}),
	}
)

// lookup resolves a handle. Handles that were allocated and since deleted
// report AlreadyDeleted, anything else BadParameter.
func (s *session) lookup(h Entity) (node, int32) {
	if h <= 0 {
		return nil, RetcodeBadParameter
	}
	if n, ok := s.entities[h]; ok {
		return n, RetcodeOK
	}
	if h <= s.last {
		return nil, RetcodeAlreadyDeleted
	}
	return nil, RetcodeBadParameter
}

func (s *session) nextIID() InstanceHandle {
	s.iids++
	return s.iids
}

// register allocates a handle for n and links it below parent.
func (s *session) register(n node, kind EntityKind, parent node, dom *domain) Entity {
	s.last++
	e := n.base()
	e.handle = s.last
	e.kind = kind
	e.iid = s.nextIID()
	e.parent = parent
	e.dom = dom
	e.mask = statusAll
	s.entities[e.handle] = n
	if parent != nil {
		pe := parent.base()
		pe.children = append(pe.children, e.handle)
	}
	log.Debugf("created %s %d", kind, e.handle)
	return e.handle
}

// broadcast wakes every goroutine blocked in waitUntil.
func (s *session) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// waitUntil blocks until cond holds or the deadline passes, releasing the
// session lock while it sleeps. Must be called with s.mu held.
func (s *session) waitUntil(deadline time.Time, cond func() bool) bool {
	for !cond() {
		now := time.Now()
		if !now.Before(deadline) {
			return false
		}
		ch := s.changed
		t := time.NewTimer(deadline.Sub(now))
		s.mu.Unlock()
		select {
		case <-ch:
		case <-t.C:
		}
		t.Stop()
		s.mu.Lock()
	}
	return true
}

// findParticipant returns the local participant owning a GUID prefix.
func (s *session) findParticipant(d *domain, gp GUIDPrefix) (*participant, bool) {
	for _, c := range d.children {
		if pp, ok := s.entities[c].(*participant); ok && pp.guid.Prefix == gp {
			return pp, true
		}
	}
	return nil, false
}
