package qos

import (
	"math"
	"time"
)

// Infinite is the DDS infinite duration.
const Infinite = time.Duration(math.MaxInt64)

// LengthUnlimited disables a resource limit.
const LengthUnlimited = -1

type DurabilityKind int32

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

func (k DurabilityKind) String() string {
	switch k {
	case Volatile:
		return "volatile"
	case TransientLocal:
		return "transient-local"
	case Transient:
		return "transient"
	case Persistent:
		return "persistent"
	}
	return "unknown"
}

type HistoryKind int32

const (
	KeepLast HistoryKind = iota
	KeepAll
)

type History struct {
	Kind  HistoryKind
	Depth int32
}

type ResourceLimits struct {
	MaxSamples            int32
	MaxInstances          int32
	MaxSamplesPerInstance int32
}

type PresentationAccessScope int32

const (
	AccessInstance PresentationAccessScope = iota
	AccessTopic
	AccessGroup
)

type Presentation struct {
	AccessScope    PresentationAccessScope
	CoherentAccess bool
	OrderedAccess  bool
}

type OwnershipKind int32

const (
	Shared OwnershipKind = iota
	Exclusive
)

type LivelinessKind int32

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

type Liveliness struct {
	Kind          LivelinessKind
	LeaseDuration time.Duration
}

type ReliabilityKind int32

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

type Reliability struct {
	Kind            ReliabilityKind
	MaxBlockingTime time.Duration
}

type DestinationOrderKind int32

const (
	ByReceptionTimestamp DestinationOrderKind = iota
	BySourceTimestamp
)

type WriterDataLifecycle struct {
	AutodisposeUnregisteredInstances bool
}

type ReaderDataLifecycle struct {
	AutopurgeNoWriterSamplesDelay time.Duration
	AutopurgeDisposedSamplesDelay time.Duration
}

type DurabilityService struct {
	ServiceCleanupDelay time.Duration
	History             History
	ResourceLimits      ResourceLimits
}

type IgnoreLocalKind int32

const (
	IgnoreNone IgnoreLocalKind = iota
	IgnoreParticipant
	IgnoreProcess
)

type TypeConsistencyKind int32

const (
	DisallowTypeCoercion TypeConsistencyKind = iota
	AllowTypeCoercion
)

type TypeConsistency struct {
	Kind                 TypeConsistencyKind
	IgnoreSequenceBounds bool
	IgnoreStringBounds   bool
	IgnoreMemberNames    bool
	PreventTypeWidening  bool
	ForceTypeValidation  bool
}

type DataRepresentationID int16

const (
	XCDR1 DataRepresentationID = 0
	XML   DataRepresentationID = 1
	XCDR2 DataRepresentationID = 2
)

// Property is a named string property.
type Property struct {
	Name  string
	Value string
}

// BinaryProperty is a named binary property.
type BinaryProperty struct {
	Name  string
	Value []byte
}

// PolicyID identifies a policy. Values follow the DDS QosPolicyId numbering
// where one exists.
type PolicyID uint32

const (
	InvalidPolicy             PolicyID = 0
	UserDataPolicy            PolicyID = 1
	DurabilityPolicy          PolicyID = 2
	PresentationPolicy        PolicyID = 3
	DeadlinePolicy            PolicyID = 4
	LatencyBudgetPolicy       PolicyID = 5
	OwnershipPolicy           PolicyID = 6
	OwnershipStrengthPolicy   PolicyID = 7
	LivelinessPolicy          PolicyID = 8
	TimeBasedFilterPolicy     PolicyID = 9
	PartitionPolicy           PolicyID = 10
	ReliabilityPolicy         PolicyID = 11
	DestinationOrderPolicy    PolicyID = 12
	HistoryPolicy             PolicyID = 13
	ResourceLimitsPolicy      PolicyID = 14
	EntityFactoryPolicy       PolicyID = 15
	WriterDataLifecyclePolicy PolicyID = 16
	ReaderDataLifecyclePolicy PolicyID = 17
	TopicDataPolicy           PolicyID = 18
	GroupDataPolicy           PolicyID = 19
	TransportPriorityPolicy   PolicyID = 20
	LifespanPolicy            PolicyID = 21
	DurabilityServicePolicy   PolicyID = 22
	PropertyPolicy            PolicyID = 23
	TypeConsistencyPolicy     PolicyID = 24
	DataRepresentationPolicy  PolicyID = 25
	WriterBatchingPolicy      PolicyID = 26
	IgnoreLocalPolicy         PolicyID = 27
	EntityNamePolicy          PolicyID = 28
	BinaryPropertyPolicy      PolicyID = 29
	PSMXPolicy                PolicyID = 30
)

var policyNames = map[PolicyID]string{
	UserDataPolicy:            "UserData",
	DurabilityPolicy:          "Durability",
	PresentationPolicy:        "Presentation",
	DeadlinePolicy:            "Deadline",
	LatencyBudgetPolicy:       "LatencyBudget",
	OwnershipPolicy:           "Ownership",
	OwnershipStrengthPolicy:   "OwnershipStrength",
	LivelinessPolicy:          "Liveliness",
	TimeBasedFilterPolicy:     "TimeBasedFilter",
	PartitionPolicy:           "Partition",
	ReliabilityPolicy:         "Reliability",
	DestinationOrderPolicy:    "DestinationOrder",
	HistoryPolicy:             "History",
	ResourceLimitsPolicy:      "ResourceLimits",
	WriterDataLifecyclePolicy: "WriterDataLifecycle",
	ReaderDataLifecyclePolicy: "ReaderDataLifecycle",
	TopicDataPolicy:           "TopicData",
	GroupDataPolicy:           "GroupData",
	TransportPriorityPolicy:   "TransportPriority",
	LifespanPolicy:            "Lifespan",
	DurabilityServicePolicy:   "DurabilityService",
	PropertyPolicy:            "Property",
	TypeConsistencyPolicy:     "TypeConsistency",
	DataRepresentationPolicy:  "DataRepresentation",
	WriterBatchingPolicy:      "WriterBatching",
	IgnoreLocalPolicy:         "IgnoreLocal",
	EntityNamePolicy:          "EntityName",
	BinaryPropertyPolicy:      "BinaryProperty",
	PSMXPolicy:                "PSMX",
}

func (id PolicyID) String() string {
	if s, ok := policyNames[id]; ok {
		return s
	}
	return "Invalid"
}

// PolicyMask is a set of policies, bit n for PolicyID n.
type PolicyMask uint64

func (m PolicyMask) Has(id PolicyID) bool {
	return m&(1<<id) != 0
}

func maskOf(ids ...PolicyID) PolicyMask {
	var m PolicyMask
	for _, id := range ids {
		m |= 1 << id
	}
	return m
}

// ImmutableMask holds the policies that cannot change once an entity is enabled.
var ImmutableMask = maskOf(
	DurabilityPolicy, HistoryPolicy, ResourceLimitsPolicy, PresentationPolicy,
	OwnershipPolicy, LivelinessPolicy, ReliabilityPolicy, DestinationOrderPolicy,
	DurabilityServicePolicy, IgnoreLocalPolicy, TypeConsistencyPolicy,
	DataRepresentationPolicy, WriterBatchingPolicy, EntityNamePolicy, PSMXPolicy,
	PropertyPolicy, BinaryPropertyPolicy,
)
