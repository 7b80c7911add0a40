package rtps

import (
	"fmt"
	"net"

	"github.com/liamstask/go-dds/config"
)

const (
	// from RTPS 2.1
	FRUDP_PORT_D0 = 0
	FRUDP_PORT_D1 = 10
	FRUDP_PORT_D2 = 1
	FRUDP_PORT_D3 = 11
)

// udpLink multicasts every message to the domain's group and delivers it
// locally through a loopback. Messages received from local participants are
// dropped since they were already delivered.
type udpLink struct {
	cfg           config.UDPConfig
	domainID      uint32
	participantID int
	ip            net.IP
	group         net.IP
	iface         *net.Interface
	local         *loopback
	rxers         []udpCtx
	dest          *net.UDPAddr
	closed        bool
}

type udpCtx struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

func (u *udpLink) mcastBuiltinPort() uint16 {
	return uint16(u.cfg.PortBase + u.cfg.DomainGain*u.domainID + FRUDP_PORT_D0)
}

func (u *udpLink) ucastBuiltinPort() uint16 {
	return uint16(u.cfg.PortBase + u.cfg.DomainGain*u.domainID +
		FRUDP_PORT_D1 + u.cfg.ParticipantGain*uint32(u.participantID))
}

func (u *udpLink) mcastUserPort() uint16 {
	return uint16(u.cfg.PortBase + u.cfg.DomainGain*u.domainID + FRUDP_PORT_D2)
}

func (u *udpLink) ucastUserPort() uint16 {
	return uint16(u.cfg.PortBase + u.cfg.DomainGain*u.domainID +
		FRUDP_PORT_D3 + u.cfg.ParticipantGain*uint32(u.participantID))
}

func newUDPLink(d *domain) (*udpLink, error) {
	u := &udpLink{
		cfg:      d.cfg.UDP,
		domainID: d.id,
		group:    net.ParseIP(d.cfg.UDP.MulticastGroup),
		local:    newLoopback(d.dispatch),
	}

	iface, err := selectInterface(u.cfg.Interface)
	if err != nil {
		return nil, err
	}
	ip, err := defaultIP(iface)
	if err != nil {
		return nil, err
	}
	log.Debugf("found interface: %s MTU: %d ip: %s", iface.Name, iface.MTU, ip)
	u.iface = iface
	u.ip = ip

	rx := func(b []byte) { u.rxdispatch(d, b) }
	if err := u.initParticipantID(rx); err != nil {
		u.Close()
		return nil, err
	}
	for _, port := range []uint16{u.mcastBuiltinPort(), u.mcastUserPort()} {
		if err := u.addMcastRX(fmt.Sprintf("%s:%d", u.group, port), rx); err != nil {
			u.Close()
			return nil, err
		}
	}
	if err := u.addUcastRX(fmt.Sprintf("%s:%d", u.ip, u.ucastUserPort()), rx); err != nil {
		u.Close()
		return nil, err
	}
	u.dest = &net.UDPAddr{IP: u.group, Port: int(u.mcastBuiltinPort())}
	return u, nil
}

// rxdispatch hands a datagram to the domain under the session lock.
func (u *udpLink) rxdispatch(d *domain, b []byte) {
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.closed {
		return
	}
	hdr, err := newHeaderFromBytes(b)
	if err != nil {
		return
	}
	// local participants already got this one through the loopback
	if _, local := s.findParticipant(d, hdr.guidPrefix); local {
		return
	}
	d.dispatch(b)
}

func (u *udpLink) Send(msg []byte) error {
	if u.closed {
		return errLinkClosed
	}
	if err := u.local.Send(msg); err != nil {
		return err
	}
	if len(msg) > u.cfg.MaxMessageSize {
		return fmt.Errorf("rtps: message of %d bytes exceeds %d", len(msg), u.cfg.MaxMessageSize)
	}
	return u.tx(msg, u.dest)
}

func (u *udpLink) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.local.Close()
	var first error
	for _, c := range u.rxers {
		if err := c.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func selectInterface(name string) (*net.Interface, error) {
	if name != "" {
		return net.InterfaceByName(name)
	}
	return defaultInterface()
}

func defaultInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	// XXX: probably want to return all valid interfaces
	// and determine how to select one
	mask := net.FlagUp | net.FlagMulticast
	for i := range ifaces {
		ifi := ifaces[i]
		if ifi.Flags&mask == mask && ifi.Flags&net.FlagLoopback == 0 {
			return &ifi, nil
		}
	}

	return nil, fmt.Errorf("rtps: couldn't find a multicast capable interface")
}

func defaultIP(iface *net.Interface) (net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if ifa, ok := addr.(*net.IPNet); ok {
			if ifa.IP.To4() != nil {
				return ifa.IP, nil
			}
		}
	}
	return nil, fmt.Errorf("rtps: no ipv4 address on %s", iface.Name)
}

func (u *udpLink) initParticipantID(rx func([]byte)) error {
	// scan ports on our unicast address to find a free one
	for pid := 0; pid < u.cfg.MaxParticipants; pid++ {
		u.participantID = pid
		port := u.ucastBuiltinPort()
		if u.addUcastRX(fmt.Sprintf("%s:%d", u.ip, port), rx) == nil {
			return nil
		}
	}
	return fmt.Errorf("rtps: no free participant id in domain %d", u.domainID)
}

func (u *udpLink) addUcastRX(addr string, rx func([]byte)) error {
	udpaddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return err
	}
	udpconn, err := net.ListenUDP("udp4", udpaddr)
	if err != nil {
		return err
	}
	log.Debugf("adding ucast: %s", addr)
	u.start(udpCtx{udpconn, udpaddr}, rx)
	return nil
}

func (u *udpLink) addMcastRX(addr string, rx func([]byte)) error {
	udpaddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return err
	}
	udpconn, err := net.ListenMulticastUDP("udp4", u.iface, udpaddr)
	if err != nil {
		return err
	}
	log.Debugf("adding mcast: %s", addr)
	u.start(udpCtx{udpconn, udpaddr}, rx)
	return nil
}

func (u *udpLink) start(c udpCtx, rx func([]byte)) {
	u.rxers = append(u.rxers, c)
	go c.rx(rx, u.cfg.MaxMessageSize)
}

func (c *udpCtx) rx(dispatch func([]byte), size int) {
	for {
		buf := make([]byte, size)
		n, _, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return // closed
		}
		dispatch(buf[:n])
	}
}

func (u *udpLink) tx(data []byte, dest *net.UDPAddr) error {
	for _, rxer := range u.rxers {
		_, err := rxer.conn.WriteToUDP(data, dest)
		return err
	}
	return fmt.Errorf("rtps: no live sockets")
}
