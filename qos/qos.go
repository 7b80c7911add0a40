package qos

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Qos is a set of policies. Policies that were never set report their
// default value; Merge only fills in unset policies.
type Qos struct {
	present PolicyMask

	userData           []byte
	topicData          []byte
	groupData          []byte
	durability         DurabilityKind
	presentation       Presentation
	deadline           time.Duration
	latencyBudget      time.Duration
	ownership          OwnershipKind
	ownershipStrength  int32
	liveliness         Liveliness
	timeBasedFilter    time.Duration
	partition          []string
	reliability        Reliability
	destinationOrder   DestinationOrderKind
	history            History
	resourceLimits     ResourceLimits
	writerLifecycle    WriterDataLifecycle
	readerLifecycle    ReaderDataLifecycle
	transportPriority  int32
	lifespan           time.Duration
	durabilityService  DurabilityService
	props              []Property
	bprops             []BinaryProperty
	typeConsistency    TypeConsistency
	dataRepresentation []DataRepresentationID
	writerBatching     bool
	ignoreLocal        IgnoreLocalKind
	entityName         string
	psmxInstances      []string
}

var (
	defaultHistory        = History{Kind: KeepLast, Depth: 1}
	defaultResourceLimits = ResourceLimits{LengthUnlimited, LengthUnlimited, LengthUnlimited}
	defaultReliability    = Reliability{Kind: BestEffort, MaxBlockingTime: 100 * time.Millisecond}
	defaultLiveliness     = Liveliness{Kind: Automatic, LeaseDuration: Infinite}
	defaultReaderLC       = ReaderDataLifecycle{Infinite, Infinite}
	defaultDurabilitySvc  = DurabilityService{History: defaultHistory, ResourceLimits: defaultResourceLimits}
	defaultTypeConsist    = TypeConsistency{Kind: AllowTypeCoercion}
)

// New returns an empty Qos with every policy at its default.
func New() *Qos {
	return &Qos{}
}

// Reset clears every policy back to its default.
func (q *Qos) Reset() {
	*q = Qos{}
}

// Present reports whether a policy has been set explicitly.
func (q *Qos) Present(id PolicyID) bool {
	return q.present.Has(id)
}

func (q *Qos) set(id PolicyID) {
	q.present |= 1 << id
}

// Clone returns a deep copy.
func (q *Qos) Clone() *Qos {
	c := *q
	c.userData = slices.Clone(q.userData)
	c.topicData = slices.Clone(q.topicData)
	c.groupData = slices.Clone(q.groupData)
	c.partition = slices.Clone(q.partition)
	c.props = slices.Clone(q.props)
	c.bprops = make([]BinaryProperty, len(q.bprops))
	for i, bp := range q.bprops {
		c.bprops[i] = BinaryProperty{bp.Name, slices.Clone(bp.Value)}
	}
	if q.bprops == nil {
		c.bprops = nil
	}
	c.dataRepresentation = slices.Clone(q.dataRepresentation)
	c.psmxInstances = slices.Clone(q.psmxInstances)
	return &c
}

// Merge copies every policy set in other but unset in q.
// Policies already set in q are preserved, so merging twice is a no-op.
func (q *Qos) Merge(other *Qos) {
	if other == nil {
		return
	}
	src := other.Clone()
	for id := UserDataPolicy; id <= PSMXPolicy; id++ {
		if q.present.Has(id) || !src.present.Has(id) {
			continue
		}
		copyPolicy(q, src, id)
		q.set(id)
	}
}

func copyPolicy(dst, src *Qos, id PolicyID) {
	switch id {
	case UserDataPolicy:
		dst.userData = src.userData
	case TopicDataPolicy:
		dst.topicData = src.topicData
	case GroupDataPolicy:
		dst.groupData = src.groupData
	case DurabilityPolicy:
		dst.durability = src.durability
	case PresentationPolicy:
		dst.presentation = src.presentation
	case DeadlinePolicy:
		dst.deadline = src.deadline
	case LatencyBudgetPolicy:
		dst.latencyBudget = src.latencyBudget
	case OwnershipPolicy:
		dst.ownership = src.ownership
	case OwnershipStrengthPolicy:
		dst.ownershipStrength = src.ownershipStrength
	case LivelinessPolicy:
		dst.liveliness = src.liveliness
	case TimeBasedFilterPolicy:
		dst.timeBasedFilter = src.timeBasedFilter
	case PartitionPolicy:
		dst.partition = src.partition
	case ReliabilityPolicy:
		dst.reliability = src.reliability
	case DestinationOrderPolicy:
		dst.destinationOrder = src.destinationOrder
	case HistoryPolicy:
		dst.history = src.history
	case ResourceLimitsPolicy:
		dst.resourceLimits = src.resourceLimits
	case WriterDataLifecyclePolicy:
		dst.writerLifecycle = src.writerLifecycle
	case ReaderDataLifecyclePolicy:
		dst.readerLifecycle = src.readerLifecycle
	case TransportPriorityPolicy:
		dst.transportPriority = src.transportPriority
	case LifespanPolicy:
		dst.lifespan = src.lifespan
	case DurabilityServicePolicy:
		dst.durabilityService = src.durabilityService
	case PropertyPolicy:
		dst.props = src.props
	case BinaryPropertyPolicy:
		dst.bprops = src.bprops
	case TypeConsistencyPolicy:
		dst.typeConsistency = src.typeConsistency
	case DataRepresentationPolicy:
		dst.dataRepresentation = src.dataRepresentation
	case WriterBatchingPolicy:
		dst.writerBatching = src.writerBatching
	case IgnoreLocalPolicy:
		dst.ignoreLocal = src.ignoreLocal
	case EntityNamePolicy:
		dst.entityName = src.entityName
	case PSMXPolicy:
		dst.psmxInstances = src.psmxInstances
	}
}

// Equal compares the effective value of every policy.
func (q *Qos) Equal(other *Qos) bool {
	return Changed(q, other) == 0
}

// Changed returns the policies whose effective values differ.
func Changed(a, b *Qos) PolicyMask {
	if a == nil {
		a = New()
	}
	if b == nil {
		b = New()
	}
	var m PolicyMask
	diff := func(id PolicyID, same bool) {
		if !same {
			m |= 1 << id
		}
	}
	diff(UserDataPolicy, bytes.Equal(a.UserData(), b.UserData()))
	diff(TopicDataPolicy, bytes.Equal(a.TopicData(), b.TopicData()))
	diff(GroupDataPolicy, bytes.Equal(a.GroupData(), b.GroupData()))
	diff(DurabilityPolicy, a.Durability() == b.Durability())
	diff(PresentationPolicy, a.Presentation() == b.Presentation())
	diff(DeadlinePolicy, a.Deadline() == b.Deadline())
	diff(LatencyBudgetPolicy, a.LatencyBudget() == b.LatencyBudget())
	diff(OwnershipPolicy, a.Ownership() == b.Ownership())
	diff(OwnershipStrengthPolicy, a.OwnershipStrength() == b.OwnershipStrength())
	diff(LivelinessPolicy, a.Liveliness() == b.Liveliness())
	diff(TimeBasedFilterPolicy, a.TimeBasedFilter() == b.TimeBasedFilter())
	diff(PartitionPolicy, slices.Equal(a.Partition(), b.Partition()))
	diff(ReliabilityPolicy, a.Reliability() == b.Reliability())
	diff(DestinationOrderPolicy, a.DestinationOrder() == b.DestinationOrder())
	diff(HistoryPolicy, a.History() == b.History())
	diff(ResourceLimitsPolicy, a.ResourceLimits() == b.ResourceLimits())
	diff(WriterDataLifecyclePolicy, a.WriterDataLifecycle() == b.WriterDataLifecycle())
	diff(ReaderDataLifecyclePolicy, a.ReaderDataLifecycle() == b.ReaderDataLifecycle())
	diff(TransportPriorityPolicy, a.TransportPriority() == b.TransportPriority())
	diff(LifespanPolicy, a.Lifespan() == b.Lifespan())
	diff(DurabilityServicePolicy, a.DurabilityService() == b.DurabilityService())
	diff(PropertyPolicy, slices.Equal(a.props, b.props))
	diff(BinaryPropertyPolicy, slices.EqualFunc(a.bprops, b.bprops, func(x, y BinaryProperty) bool {
		return x.Name == y.Name && bytes.Equal(x.Value, y.Value)
	}))
	diff(TypeConsistencyPolicy, a.TypeConsistency() == b.TypeConsistency())
	diff(DataRepresentationPolicy, slices.Equal(a.DataRepresentation(), b.DataRepresentation()))
	diff(WriterBatchingPolicy, a.WriterBatching() == b.WriterBatching())
	diff(IgnoreLocalPolicy, a.IgnoreLocal() == b.IgnoreLocal())
	diff(EntityNamePolicy, a.EntityName() == b.EntityName())
	diff(PSMXPolicy, slices.Equal(a.PSMXInstances(), b.PSMXInstances()))
	return m
}

var ErrInconsistent = errors.New("qos: inconsistent policies")

// Validate reports combinations no entity can honour.
func (q *Qos) Validate() error {
	h, rl := q.History(), q.ResourceLimits()
	if h.Kind == KeepLast && h.Depth < 1 {
		return fmt.Errorf("%w: history depth %d", ErrInconsistent, h.Depth)
	}
	if h.Kind == KeepLast && rl.MaxSamplesPerInstance != LengthUnlimited && h.Depth > rl.MaxSamplesPerInstance {
		return fmt.Errorf("%w: history depth %d exceeds max samples per instance %d", ErrInconsistent, h.Depth, rl.MaxSamplesPerInstance)
	}
	if rl.MaxSamples != LengthUnlimited && rl.MaxSamplesPerInstance != LengthUnlimited && rl.MaxSamples < rl.MaxSamplesPerInstance {
		return fmt.Errorf("%w: max samples %d below max samples per instance %d", ErrInconsistent, rl.MaxSamples, rl.MaxSamplesPerInstance)
	}
	for _, d := range []time.Duration{q.Deadline(), q.LatencyBudget(), q.Lifespan(), q.TimeBasedFilter(), q.Liveliness().LeaseDuration} {
		if d < 0 {
			return fmt.Errorf("%w: negative duration %v", ErrInconsistent, d)
		}
	}
	if q.Deadline() < q.TimeBasedFilter() {
		return fmt.Errorf("%w: deadline %v shorter than time based filter %v", ErrInconsistent, q.Deadline(), q.TimeBasedFilter())
	}
	return nil
}
