package rtps

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/liamstask/go-dds/qos"
)

const (
	QOS_RELIABILITY_KIND_BEST_EFFORT = 1
	QOS_RELIABILITY_KIND_RELIABLE    = 2
)

type qosReliability struct {
	kind            uint32
	maxBlockingTime time.Duration
}

func reliabilityToWire(r qos.Reliability) qosReliability {
	kind := uint32(QOS_RELIABILITY_KIND_BEST_EFFORT)
	if r.Kind == qos.Reliable {
		kind = QOS_RELIABILITY_KIND_RELIABLE
	}
	return qosReliability{kind: kind, maxBlockingTime: r.MaxBlockingTime}
}

func newQosReliabilityFromBytes(bin binary.ByteOrder, b []byte) (qosReliability, error) {
	if len(b) < 4+4+4 {
		return qosReliability{}, io.EOF
	}
	dur, err := durationFromBytes(bin, b[4:])
	if err != nil {
		return qosReliability{}, err
	}
	return qosReliability{
		kind:            bin.Uint32(b[0:]),
		maxBlockingTime: dur,
	}, nil
}

func (r qosReliability) policy() qos.Reliability {
	kind := qos.BestEffort
	if r.kind == QOS_RELIABILITY_KIND_RELIABLE {
		kind = qos.Reliable
	}
	return qos.Reliability{Kind: kind, MaxBlockingTime: r.maxBlockingTime}
}

func (r qosReliability) Bytes() []byte {
	b := make([]byte, 4, 12)
	binary.LittleEndian.PutUint32(b, r.kind)
	return append(b, durationToBytes(r.maxBlockingTime, binary.LittleEndian)...)
}

type qosDurability struct {
	kind uint32
}

func durabilityToWire(k qos.DurabilityKind) qosDurability {
	return qosDurability{kind: uint32(k)}
}

func newQosDurabilityFromBytes(bin binary.ByteOrder, b []byte) (qosDurability, error) {
	if len(b) < 4 {
		return qosDurability{}, io.EOF
	}
	return qosDurability{kind: bin.Uint32(b)}, nil
}

func (d qosDurability) policy() qos.DurabilityKind {
	if d.kind > uint32(qos.Persistent) {
		return qos.Volatile
	}
	return qos.DurabilityKind(d.kind)
}

func (d qosDurability) Bytes() []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, d.kind)
	return b
}
