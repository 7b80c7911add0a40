package qos

import (
	"slices"
	"time"
)

func (q *Qos) SetUserData(b []byte) {
	q.userData = slices.Clone(b)
	q.set(UserDataPolicy)
}

func (q *Qos) UserData() []byte {
	return q.userData
}

func (q *Qos) SetTopicData(b []byte) {
	q.topicData = slices.Clone(b)
	q.set(TopicDataPolicy)
}

func (q *Qos) TopicData() []byte {
	return q.topicData
}

func (q *Qos) SetGroupData(b []byte) {
	q.groupData = slices.Clone(b)
	q.set(GroupDataPolicy)
}

func (q *Qos) GroupData() []byte {
	return q.groupData
}

func (q *Qos) SetDurability(k DurabilityKind) {
	q.durability = k
	q.set(DurabilityPolicy)
}

func (q *Qos) Durability() DurabilityKind {
	return q.durability
}

func (q *Qos) SetHistory(kind HistoryKind, depth int32) {
	q.history = History{Kind: kind, Depth: depth}
	q.set(HistoryPolicy)
}

func (q *Qos) History() History {
	if !q.Present(HistoryPolicy) {
		return defaultHistory
	}
	return q.history
}

func (q *Qos) SetResourceLimits(maxSamples, maxInstances, maxSamplesPerInstance int32) {
	q.resourceLimits = ResourceLimits{maxSamples, maxInstances, maxSamplesPerInstance}
	q.set(ResourceLimitsPolicy)
}

func (q *Qos) ResourceLimits() ResourceLimits {
	if !q.Present(ResourceLimitsPolicy) {
		return defaultResourceLimits
	}
	return q.resourceLimits
}

func (q *Qos) SetPresentation(scope PresentationAccessScope, coherent, ordered bool) {
	q.presentation = Presentation{scope, coherent, ordered}
	q.set(PresentationPolicy)
}

func (q *Qos) Presentation() Presentation {
	return q.presentation
}

func (q *Qos) SetLifespan(d time.Duration) {
	q.lifespan = d
	q.set(LifespanPolicy)
}

func (q *Qos) Lifespan() time.Duration {
	if !q.Present(LifespanPolicy) {
		return Infinite
	}
	return q.lifespan
}

func (q *Qos) SetDeadline(d time.Duration) {
	q.deadline = d
	q.set(DeadlinePolicy)
}

func (q *Qos) Deadline() time.Duration {
	if !q.Present(DeadlinePolicy) {
		return Infinite
	}
	return q.deadline
}

func (q *Qos) SetLatencyBudget(d time.Duration) {
	q.latencyBudget = d
	q.set(LatencyBudgetPolicy)
}

func (q *Qos) LatencyBudget() time.Duration {
	return q.latencyBudget
}

func (q *Qos) SetOwnership(k OwnershipKind) {
	q.ownership = k
	q.set(OwnershipPolicy)
}

func (q *Qos) Ownership() OwnershipKind {
	return q.ownership
}

func (q *Qos) SetOwnershipStrength(v int32) {
	q.ownershipStrength = v
	q.set(OwnershipStrengthPolicy)
}

func (q *Qos) OwnershipStrength() int32 {
	return q.ownershipStrength
}

func (q *Qos) SetLiveliness(k LivelinessKind, lease time.Duration) {
	q.liveliness = Liveliness{Kind: k, LeaseDuration: lease}
	q.set(LivelinessPolicy)
}

func (q *Qos) Liveliness() Liveliness {
	if !q.Present(LivelinessPolicy) {
		return defaultLiveliness
	}
	return q.liveliness
}

func (q *Qos) SetTimeBasedFilter(minSeparation time.Duration) {
	q.timeBasedFilter = minSeparation
	q.set(TimeBasedFilterPolicy)
}

func (q *Qos) TimeBasedFilter() time.Duration {
	return q.timeBasedFilter
}

// SetPartition replaces the partition list.
func (q *Qos) SetPartition(names ...string) {
	q.partition = slices.Clone(names)
	q.set(PartitionPolicy)
}

func (q *Qos) Partition() []string {
	return q.partition
}

func (q *Qos) SetReliability(k ReliabilityKind, maxBlockingTime time.Duration) {
	q.reliability = Reliability{Kind: k, MaxBlockingTime: maxBlockingTime}
	q.set(ReliabilityPolicy)
}

func (q *Qos) Reliability() Reliability {
	if !q.Present(ReliabilityPolicy) {
		return defaultReliability
	}
	return q.reliability
}

func (q *Qos) SetTransportPriority(v int32) {
	q.transportPriority = v
	q.set(TransportPriorityPolicy)
}

func (q *Qos) TransportPriority() int32 {
	return q.transportPriority
}

func (q *Qos) SetDestinationOrder(k DestinationOrderKind) {
	q.destinationOrder = k
	q.set(DestinationOrderPolicy)
}

func (q *Qos) DestinationOrder() DestinationOrderKind {
	return q.destinationOrder
}

func (q *Qos) SetWriterDataLifecycle(autodispose bool) {
	q.writerLifecycle = WriterDataLifecycle{AutodisposeUnregisteredInstances: autodispose}
	q.set(WriterDataLifecyclePolicy)
}

func (q *Qos) WriterDataLifecycle() WriterDataLifecycle {
	if !q.Present(WriterDataLifecyclePolicy) {
		return WriterDataLifecycle{AutodisposeUnregisteredInstances: true}
	}
	return q.writerLifecycle
}

func (q *Qos) SetReaderDataLifecycle(autopurgeNoWriters, autopurgeDisposed time.Duration) {
	q.readerLifecycle = ReaderDataLifecycle{autopurgeNoWriters, autopurgeDisposed}
	q.set(ReaderDataLifecyclePolicy)
}

func (q *Qos) ReaderDataLifecycle() ReaderDataLifecycle {
	if !q.Present(ReaderDataLifecyclePolicy) {
		return defaultReaderLC
	}
	return q.readerLifecycle
}

func (q *Qos) SetWriterBatching(on bool) {
	q.writerBatching = on
	q.set(WriterBatchingPolicy)
}

func (q *Qos) WriterBatching() bool {
	return q.writerBatching
}

func (q *Qos) SetDurabilityService(cleanupDelay time.Duration, h History, rl ResourceLimits) {
	q.durabilityService = DurabilityService{cleanupDelay, h, rl}
	q.set(DurabilityServicePolicy)
}

func (q *Qos) DurabilityService() DurabilityService {
	if !q.Present(DurabilityServicePolicy) {
		return defaultDurabilitySvc
	}
	return q.durabilityService
}

func (q *Qos) SetIgnoreLocal(k IgnoreLocalKind) {
	q.ignoreLocal = k
	q.set(IgnoreLocalPolicy)
}

func (q *Qos) IgnoreLocal() IgnoreLocalKind {
	return q.ignoreLocal
}

// SetProp sets a property, overwriting the first property of the same name.
func (q *Qos) SetProp(name, value string) {
	q.set(PropertyPolicy)
	for i := range q.props {
		if q.props[i].Name == name {
			q.props[i].Value = value
			return
		}
	}
	q.props = append(q.props, Property{name, value})
}

func (q *Qos) UnsetProp(name string) {
	for i := range q.props {
		if q.props[i].Name == name {
			q.props = slices.Delete(q.props, i, i+1)
			return
		}
	}
}

func (q *Qos) Prop(name string) (string, bool) {
	for _, p := range q.props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

func (q *Qos) PropNames() []string {
	names := make([]string, len(q.props))
	for i, p := range q.props {
		names[i] = p.Name
	}
	return names
}

// SetBProp sets a binary property, overwriting the first one of the same name.
func (q *Qos) SetBProp(name string, value []byte) {
	q.set(BinaryPropertyPolicy)
	for i := range q.bprops {
		if q.bprops[i].Name == name {
			q.bprops[i].Value = slices.Clone(value)
			return
		}
	}
	q.bprops = append(q.bprops, BinaryProperty{name, slices.Clone(value)})
}

func (q *Qos) UnsetBProp(name string) {
	for i := range q.bprops {
		if q.bprops[i].Name == name {
			q.bprops = slices.Delete(q.bprops, i, i+1)
			return
		}
	}
}

func (q *Qos) BProp(name string) ([]byte, bool) {
	for _, p := range q.bprops {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

func (q *Qos) BPropNames() []string {
	names := make([]string, len(q.bprops))
	for i, p := range q.bprops {
		names[i] = p.Name
	}
	return names
}

func (q *Qos) SetTypeConsistency(tc TypeConsistency) {
	q.typeConsistency = tc
	q.set(TypeConsistencyPolicy)
}

func (q *Qos) TypeConsistency() TypeConsistency {
	if !q.Present(TypeConsistencyPolicy) {
		return defaultTypeConsist
	}
	return q.typeConsistency
}

func (q *Qos) SetDataRepresentation(ids ...DataRepresentationID) {
	q.dataRepresentation = slices.Clone(ids)
	q.set(DataRepresentationPolicy)
}

func (q *Qos) DataRepresentation() []DataRepresentationID {
	if !q.Present(DataRepresentationPolicy) {
		return []DataRepresentationID{XCDR1}
	}
	return q.dataRepresentation
}

func (q *Qos) SetEntityName(name string) {
	q.entityName = name
	q.set(EntityNamePolicy)
}

func (q *Qos) EntityName() string {
	return q.entityName
}

// SetPSMXInstances selects the shared-memory transport instances by name.
func (q *Qos) SetPSMXInstances(names ...string) {
	q.psmxInstances = slices.Clone(names)
	q.set(PSMXPolicy)
}

func (q *Qos) PSMXInstances() []string {
	return q.psmxInstances
}
