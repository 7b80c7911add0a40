package rtps

import (
	"bytes"
	"encoding/binary"
	"time"
)

// spdp: Simple Participant Discovery Protocol
//
// "The purpose of a PDP is to discover the presence of other Participants on the network and their properties.
// A Participant may support multiple PDPs, but for the purpose of interoperability,
// all implementations must support at least the Simple Participant Discovery Protocol."

// announce sends the participant's SPDP data. A disposing announcement
// tells the others to forget the participant.
func (d *domain) announce(pp *participant, dispose bool) {
	if !d.running {
		return
	}
	var msgbuf bytes.Buffer
	newHeader(pp.guid.Prefix).WriteTo(&msgbuf)
	newTsSubMsg(time.Now(), binary.LittleEndian).WriteTo(&msgbuf)

	pp.spdpSeq++
	dataSubmsg := submsgData{
		readerID:     ENTITYID_SPDP_BUILTIN_PARTICIPANT_READER,
		writerID:     ENTITYID_SPDP_BUILTIN_PARTICIPANT_WRITER,
		writerSeqNum: pp.spdpSeq,
		inlineQos: []*paramListItem{
			{pid: PID_KEY_HASH, value: pp.guid.Bytes()},
		},
	}
	if dispose {
		dataSubmsg.inlineQos = append(dataSubmsg.inlineQos, &paramListItem{
			pid:   PID_STATUS_INFO,
			value: packParamUint32(binary.BigEndian, STATUSINFO_DISPOSE|STATUSINFO_UNREGISTER),
		})
	}

	var plbuf bytes.Buffer
	scheme := encapsulationScheme{scheme: SCHEME_PL_CDR_LE}
	scheme.WriteTo(&plbuf)

	params := []paramListItem{
		{pid: PID_PROTOCOL_VERSION, value: []byte{MY_RTPS_VERSION_MAJOR, MY_RTPS_VERSION_MINOR, 0, 0}},
		{pid: PID_VENDOR_ID, value: []byte{(MY_RTPS_VENDOR_ID >> 8) & 0xff, MY_RTPS_VENDOR_ID & 0xff, 0, 0}},
	}
	if u, ok := d.link.(*udpLink); ok {
		params = append(params,
			paramListItem{pid: PID_DEFAULT_UNICAST_LOCATOR, value: newUDPv4Loc(u.ip, u.ucastUserPort()).Bytes()},
			paramListItem{pid: PID_DEFAULT_MULTICAST_LOCATOR, value: newUDPv4Loc(u.group, u.mcastUserPort()).Bytes()},
			paramListItem{pid: PID_METATRAFFIC_UNICAST_LOCATOR, value: newUDPv4Loc(u.ip, u.ucastBuiltinPort()).Bytes()},
			paramListItem{pid: PID_METATRAFFIC_MULTICAST_LOCATOR, value: newUDPv4Loc(u.group, u.mcastBuiltinPort()).Bytes()},
		)
	}
	params = append(params,
		paramListItem{pid: PID_PARTICIPANT_LEASE_DURATION, value: durationToBytes(d.cfg.Discovery.LeaseDuration.Std(), binary.LittleEndian)},
		paramListItem{pid: PID_PARTICIPANT_GUID, value: pp.guid.Bytes()},
		paramListItem{pid: PID_BUILTIN_ENDPOINT_SET, value: packParamUint32(binary.LittleEndian, ourBuiltinEndpoints)},
	)
	if name := pp.qos.EntityName(); name != "" {
		params = append(params, paramListItem{pid: PID_ENTITY_NAME, value: packParamString(binary.LittleEndian, name)})
	}
	params = append(params, paramListItem{pid: PID_SENTINEL})
	for i := range params {
		params[i].WriteTo(&plbuf)
	}
	dataSubmsg.data = plbuf.Bytes()
	dataSubmsg.WriteTo(&msgbuf)

	d.send(msgbuf.Bytes())
}

// called when data has been received for the SPDP reader
func (d *domain) rxSPDP(r *receiver, smd *submsgData) {
	if p, ok := smd.param(PID_STATUS_INFO); ok && len(p.value) >= 4 {
		if binary.BigEndian.Uint32(p.value)&(STATUSINFO_DISPOSE|STATUSINFO_UNREGISTER) != 0 {
			if _, known := d.remote[r.srcGUIDPrefix]; known {
				log.Debugf("domain %d: participant %s left", d.id, r.srcGUIDPrefix)
				delete(d.remote, r.srcGUIDPrefix)
				d.dropRemoteWriters(r.srcGUIDPrefix)
			}
			return
		}
	}

	es, err := newSchemeFromBytes(binary.BigEndian, smd.data)
	if err != nil || es.scheme != SCHEME_PL_CDR_LE {
		log.Debugf("expected spdp data to be PL_CDR_LE, got %v", es.scheme)
		return
	}
	plist, _, err := newParamList(binary.LittleEndian, smd.data[4:])
	if err != nil {
		log.Debugf("spdp param list: %s", err)
		return
	}

	part := &participantProxy{
		guidPrefix:    r.srcGUIDPrefix,
		leaseDuration: 100 * time.Second,
	}
	bin := binary.LittleEndian

	for _, p := range plist {

		if p.pid&0x8000 != 0 {
			// ignoring vendor specific params for now
			continue
		}

		switch p.pid {
		case PID_PROTOCOL_VERSION:
			if len(p.value) >= 2 {
				part.protoVer = ProtoVersion{p.value[0], p.value[1]}
			}

		case PID_VENDOR_ID:
			if len(p.value) >= 2 {
				part.vid = VendorID(binary.BigEndian.Uint16(p.value[0:]))
			}

		case PID_DEFAULT_UNICAST_LOCATOR:
			part.defaultUcastLoc, _ = newUDPv4LocFromBytes(bin, p.value)

		case PID_DEFAULT_MULTICAST_LOCATOR:
			part.defaultMcastLoc, _ = newUDPv4LocFromBytes(bin, p.value)

		case PID_METATRAFFIC_UNICAST_LOCATOR:
			part.metaUcastLoc, _ = newUDPv4LocFromBytes(bin, p.value)

		case PID_METATRAFFIC_MULTICAST_LOCATOR:
			part.metaMcastLoc, _ = newUDPv4LocFromBytes(bin, p.value)

		case PID_PARTICIPANT_LEASE_DURATION:
			if dur, err := durationFromBytes(bin, p.value); err == nil {
				part.leaseDuration = dur
			}

		case PID_PARTICIPANT_GUID:
			if len(p.value) >= 16 {
				part.guidPrefix = guidFromBytes(p.value).Prefix
			}

		case PID_BUILTIN_ENDPOINT_SET:
			if len(p.value) >= 4 {
				part.builtinEndpoints = builtinEndpointSet(bin.Uint32(p.value[0:]))
			}

		case PID_PROPERTY_LIST, PID_ENTITY_NAME:
			// not used

		default:
			log.Debugf("unhandled spdp rx param 0x%x len %d", p.pid, len(p.value))
		}
	}
	part.lastSeen = time.Now()

	if _, found := d.remote[part.guidPrefix]; !found {
		log.Debugf("domain %d: new participant %s (%s)", d.id, part.guidPrefix, vendorName(part.vid))
		if part.metaUcastLoc.valid() {
			log.Debugf("    metatraffic unicast %s", part.metaUcastLoc.addrStr())
		}
	}
	d.remote[part.guidPrefix] = part
}

func (d *domain) expireParticipants(now time.Time) {
	for gp, part := range d.remote {
		if expired(part.lastSeen, part.leaseDuration, now) {
			log.Infof("domain %d: lease of participant %s expired", d.id, gp)
			delete(d.remote, gp)
			d.dropRemoteWriters(gp)
		}
	}
}
