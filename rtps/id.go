package rtps

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	UDPGuidPrefixLen  = 12
	Magic             = 0x52545053 // RTPS in ASCII
	MY_RTPS_VENDOR_ID = 0x1234
)

const (
	ENTITYID_UNKNOWN                                = 0x0
	ENTITYID_PARTICIPANT                            = 0x1c1
	ENTITYID_SEDP_BUILTIN_TOPIC_WRITER              = 0x2c2
	ENTITYID_SEDP_BUILTIN_TOPIC_READER              = 0x2c7
	ENTITYID_SEDP_BUILTIN_PUBLICATIONS_WRITER       = 0x3c2
	ENTITYID_SEDP_BUILTIN_PUBLICATIONS_READER       = 0x3c7
	ENTITYID_SEDP_BUILTIN_SUBSCRIPTIONS_WRITER      = 0x4c2
	ENTITYID_SEDP_BUILTIN_SUBSCRIPTIONS_READER      = 0x4c7
	ENTITYID_SPDP_BUILTIN_PARTICIPANT_WRITER        = 0x100c2
	ENTITYID_SPDP_BUILTIN_PARTICIPANT_READER        = 0x100c7
	ENTITYID_P2P_BUILTIN_PARTICIPANT_MESSAGE_WRITER = 0x200c2
	ENTITYID_P2P_BUILTIN_PARTICIPANT_MESSAGE_READER = 0x200c7
	ENTITYID_SOURCE_MASK                            = 0xc0
	ENTITYID_SOURCE_USER                            = 0x00
	ENTITYID_SOURCE_BUILTIN                         = 0xc0
	ENTITYID_SOURCE_VENDOR                          = 0x40
	ENTITYID_KIND_MASK                              = 0x3f
	ENTITYID_KIND_WRITER_WITH_KEY                   = 0x02
	ENTITYID_KIND_WRITER_NO_KEY                     = 0x03
	ENTITYID_KIND_READER_NO_KEY                     = 0x04
	ENTITYID_KIND_READER_WITH_KEY                   = 0x07
	ENTITYID_ALLOCSTEP                              = 0x100
)

func vendorName(id VendorID) string {
	switch id {
	case 0x0101:
		return "RTI Connext"
	case 0x0102:
		return "PrismTech OpenSplice"
	case 0x0103:
		return "OCI OpenDDS"
	case 0x0106:
		return "TwinOaks CoreDX"
	case 0x010f:
		return "eProsima"
	case 0x0110:
		return "Eclipse Cyclone DDS"
	case MY_RTPS_VENDOR_ID:
		return "go-dds"
	default:
		return "unknown"
	}
}

// EntityID is an entity id.
// NB: always encoded big endian, regardless of submessage endian flag
type EntityID uint32

func (eid EntityID) kind() uint8 {
	return uint8(eid & 0xff)
}

func userEntityID(key uint32, entityKind uint8) EntityID {
	// For user IDs, "the entityKey field within the EntityId_t
	// can be chosen arbitrarily by the middleware implementation
	// as long as the resulting EntityId_t is unique within the Participant.", sec 9.3.1.2
	return EntityID(key*ENTITYID_ALLOCSTEP | uint32(entityKind))
}

func (eid EntityID) isWriter() bool {
	switch eid & ENTITYID_KIND_MASK {
	case ENTITYID_KIND_WRITER_WITH_KEY, ENTITYID_KIND_WRITER_NO_KEY:
		return true
	}
	return false
}

func (eid EntityID) isReader() bool {
	switch eid & ENTITYID_KIND_MASK {
	case ENTITYID_KIND_READER_WITH_KEY, ENTITYID_KIND_READER_NO_KEY:
		return true
	}
	return false
}

func (eid EntityID) isBuiltin() bool {
	return (eid & ENTITYID_SOURCE_MASK) == ENTITYID_SOURCE_BUILTIN
}

type VendorID uint16
type GUIDPrefix [UDPGuidPrefixLen]byte

var unknownGUIDPrefix GUIDPrefix

// newGUIDPrefix starts with our vendor id; the rest is random so that
// participants in different processes never collide.
func newGUIDPrefix() GUIDPrefix {
	var gp GUIDPrefix
	binary.BigEndian.PutUint16(gp[0:], MY_RTPS_VENDOR_ID)
	u := uuid.New()
	copy(gp[2:], u[:UDPGuidPrefixLen-2])
	return gp
}

func (gp GUIDPrefix) String() string {
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x%02x%02x-%02x%02x%02x%02x",
		gp[0], gp[1], gp[2], gp[3], gp[4], gp[5], gp[6], gp[7], gp[8], gp[9], gp[10], gp[11])
}

// GUID identifies a participant, reader or writer across the domain.
type GUID struct {
	Prefix   GUIDPrefix
	EntityID EntityID
}

func guidFromBytes(b []byte) GUID {
	var g GUID
	copy(g.Prefix[:], b[:UDPGuidPrefixLen])
	g.EntityID = EntityID(binary.BigEndian.Uint32(b[UDPGuidPrefixLen:]))
	return g
}

func (g GUID) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, g.Prefix[:])
	binary.BigEndian.PutUint32(b[UDPGuidPrefixLen:], uint32(g.EntityID))
	return b
}

func (g GUID) Unknown() bool {
	return g.EntityID == ENTITYID_UNKNOWN && g.Prefix == unknownGUIDPrefix
}

func (g GUID) String() string {
	return fmt.Sprintf("[%s : 0x%x]", g.Prefix.String(), uint32(g.EntityID))
}
