package rtps

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/liamstask/go-dds/config"
)

var errLinkClosed = errors.New("rtps: link closed")

// Link carries RTPS messages between the participants of a domain.
// Send is always called with the session lock held.
type Link interface {
	Send(msg []byte) error
	Close() error
}

type deliverFunc func(msg []byte)

// loopback delivers every message to the local domain. Messages sent while
// a delivery is in progress are queued and handled by the outermost Send,
// so replies never recurse.
type loopback struct {
	deliver  deliverFunc
	queue    [][]byte
	draining bool
	closed   bool
}

func newLoopback(deliver deliverFunc) *loopback {
	return &loopback{deliver: deliver}
}

func (l *loopback) Send(msg []byte) error {
	if l.closed {
		return errLinkClosed
	}
	l.queue = append(l.queue, bytes.Clone(msg))
	if l.draining {
		return nil
	}
	l.draining = true
	for len(l.queue) > 0 && !l.closed {
		m := l.queue[0]
		l.queue = l.queue[1:]
		l.deliver(m)
	}
	l.draining = false
	l.queue = nil
	return nil
}

func (l *loopback) Close() error {
	l.closed = true
	return nil
}

func newLink(d *domain) (Link, error) {
	switch d.cfg.Link {
	case config.LinkLoopback:
		return newLoopback(d.dispatch), nil
	case config.LinkUDP:
		return newUDPLink(d)
	}
	return nil, fmt.Errorf("rtps: unknown link %q", d.cfg.Link)
}
