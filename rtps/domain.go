package rtps

import (
	"time"

	"github.com/liamstask/go-dds/config"
)

type instanceKey struct {
	topic   string
	keyhash [16]byte
}

// domain is the runtime shared by all participants with the same domain id:
// the link, the instance handle map and the endpoint indexes.
type domain struct {
	entity
	id       uint32
	cfg      *config.Domain
	implicit bool // created on demand, removed with its last participant

	link    Link
	done    chan struct{}
	running bool

	instances   map[instanceKey]InstanceHandle
	writers     map[GUID]*writer
	readers     map[GUID]*reader
	remoteWr    map[GUID]InstanceHandle
	remote      map[GUIDPrefix]*participantProxy
	store       *durableStore
	storeFailed bool

	lastSPDP  time.Time
	lastPurge time.Time
}

// CreateDomain creates an explicit domain with the given configuration.
// A domain id that is already in use fails with PreconditionNotMet.
func CreateDomain(id uint32, cfg *config.Domain) Entity {
	if id == DomainDefault {
		return Entity(RetcodeBadParameter)
	}
	if cfg == nil {
		cfg = config.Default(id)
	} else {
		c := *cfg
		c.ID = id
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		log.Warnf("domain %d: %s", id, err)
		return Entity(RetcodeBadParameter)
	}

	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.domains[id]; ok {
		if !d.cfg.Equal(cfg) {
			log.Warnf("domain %d already exists with a different configuration", id)
		}
		return Entity(RetcodePreconditionNotMet)
	}
	return s.newDomain(id, cfg, false).handle
}

func (s *session) newDomain(id uint32, cfg *config.Domain, implicit bool) *domain {
	d := &domain{
		id:        id,
		cfg:       cfg,
		implicit:  implicit,
		instances: make(map[instanceKey]InstanceHandle),
		writers:   make(map[GUID]*writer),
		readers:   make(map[GUID]*reader),
		remoteWr:  make(map[GUID]InstanceHandle),
		remote:    make(map[GUIDPrefix]*participantProxy),
	}
	s.register(d, KindDomain, nil, d)
	s.domains[id] = d
	return d
}

func (d *domain) implicitEmpty() bool {
	return d.implicit && len(d.children) == 0
}

func (d *domain) teardown(s *session) {
	d.stop()
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Warnf("domain %d: closing durable store: %s", d.id, err)
		}
		d.store = nil
	}
	delete(s.domains, d.id)
}

// start brings up the link and the protocol ticker.
func (d *domain) start(s *session) error {
	if d.running {
		return nil
	}
	link, err := newLink(d)
	if err != nil {
		return err
	}
	d.link = link
	d.done = make(chan struct{})
	d.running = true
	go d.run(s, d.done, d.cfg.Timing.Tick.Std())
	log.Infof("domain %d up (%s link)", d.id, d.cfg.Link)
	return nil
}

func (d *domain) stop() {
	if !d.running {
		return
	}
	close(d.done)
	if err := d.link.Close(); err != nil {
		log.Warnf("domain %d: closing link: %s", d.id, err)
	}
	d.running = false
	log.Infof("domain %d down", d.id)
}

func (d *domain) run(s *session, done chan struct{}, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-t.C:
			s.mu.Lock()
			select {
			case <-done:
				s.mu.Unlock()
				return
			default:
			}
			d.tick(s, now)
			s.broadcast()
			s.mu.Unlock()
		}
	}
}

func (d *domain) send(msg []byte) {
	if !d.running {
		return
	}
	if err := d.link.Send(msg); err != nil {
		log.Debugf("domain %d: send: %s", d.id, err)
	}
}

// instanceHandle maps a topic and key hash to the process-wide instance
// handle, allocating one on first use.
func (d *domain) instanceHandle(s *session, topic string, kh [16]byte) InstanceHandle {
	k := instanceKey{topic, kh}
	if ih, ok := d.instances[k]; ok {
		return ih
	}
	ih := s.nextIID()
	d.instances[k] = ih
	return ih
}

func (d *domain) lookupInstance(topic string, kh [16]byte) InstanceHandle {
	return d.instances[instanceKey{topic, kh}]
}

// publicationHandle returns the handle readers report for a writer GUID.
func (d *domain) publicationHandle(s *session, g GUID) InstanceHandle {
	if w, ok := d.writers[g]; ok {
		return w.iid
	}
	if ih, ok := d.remoteWr[g]; ok {
		return ih
	}
	ih := s.nextIID()
	d.remoteWr[g] = ih
	return ih
}

func (d *domain) participants(s *session) []*participant {
	var pps []*participant
	for _, c := range d.children {
		if pp, ok := s.entities[c].(*participant); ok {
			pps = append(pps, pp)
		}
	}
	return pps
}

func (d *domain) tick(s *session, now time.Time) {
	for _, w := range d.writers {
		w.tick(s, now)
	}
	for _, r := range d.readers {
		r.tick(s, now)
	}
	if now.Sub(d.lastSPDP) >= d.cfg.Discovery.SPDPInterval.Std() {
		d.lastSPDP = now
		for _, pp := range d.participants(s) {
			d.announce(pp, false)
		}
		d.expireParticipants(now)
	}
	if d.store != nil && now.Sub(d.lastPurge) >= time.Second {
		d.lastPurge = now
		if err := d.store.purge(now); err != nil {
			log.Warnf("domain %d: durable store purge: %s", d.id, err)
		}
	}
}
