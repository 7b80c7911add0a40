package rtps

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

const (
	LOCATOR_KIND_INVALID  = -1
	LOCATOR_KIND_RESERVED = 0
	LOCATOR_KIND_UDPV4    = 1
	LOCATOR_KIND_UDPV6    = 2
	LOCATOR_PORT_INVALID  = 0
)

type locator struct {
	kind int32
	port uint32
	addr net.IP
}

func newUDPv4Loc(ip net.IP, port uint16) *locator {
	return &locator{
		kind: LOCATOR_KIND_UDPV4,
		port: uint32(port),
		addr: ip.To4(),
	}
}

func newUDPv4LocFromBytes(bin binary.ByteOrder, b []byte) (locator, error) {
	if len(b) < 4+4+16 {
		return locator{}, io.EOF
	}
	loc := locator{
		kind: int32(bin.Uint32(b[0:])),
		port: bin.Uint32(b[4:]),
	}
	switch loc.kind {
	case LOCATOR_KIND_UDPV4:
		loc.addr = net.IPv4(b[20], b[21], b[22], b[23]).To4()
	case LOCATOR_KIND_UDPV6:
		loc.addr = net.IP(append([]byte(nil), b[8:24]...))
	}
	return loc, nil
}

// Bytes encodes the locator little endian, address in the last 16 bytes.
func (loc *locator) Bytes() []byte {
	buf := make([]byte, 8+16)
	binary.LittleEndian.PutUint32(buf, uint32(loc.kind))
	binary.LittleEndian.PutUint32(buf[4:], loc.port)
	if ip4 := loc.addr.To4(); ip4 != nil {
		copy(buf[8+12:], ip4)
	} else {
		copy(buf[8:], loc.addr.To16())
	}
	return buf
}

func (loc *locator) valid() bool {
	return loc.kind > LOCATOR_KIND_RESERVED && loc.port != LOCATOR_PORT_INVALID
}

func (loc *locator) addrStr() string {
	return net.JoinHostPort(loc.addr.String(), fmt.Sprint(loc.port))
}
