package rtps

import "github.com/liamstask/go-dds/qos"

type InconsistentTopicStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

type PublicationMatchedStatus struct {
	TotalCount             uint32
	TotalCountChange       int32
	CurrentCount           uint32
	CurrentCountChange     int32
	LastSubscriptionHandle InstanceHandle
}

type SubscriptionMatchedStatus struct {
	TotalCount            uint32
	TotalCountChange      int32
	CurrentCount          uint32
	CurrentCountChange    int32
	LastPublicationHandle InstanceHandle
}

type LivelinessLostStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

type LivelinessChangedStatus struct {
	AliveCount            uint32
	NotAliveCount         uint32
	AliveCountChange      int32
	NotAliveCountChange   int32
	LastPublicationHandle InstanceHandle
}

type OfferedDeadlineMissedStatus struct {
	TotalCount         uint32
	TotalCountChange   int32
	LastInstanceHandle InstanceHandle
}

type RequestedDeadlineMissedStatus struct {
	TotalCount         uint32
	TotalCountChange   int32
	LastInstanceHandle InstanceHandle
}

type OfferedIncompatibleQosStatus struct {
	TotalCount       uint32
	TotalCountChange int32
	LastPolicyID     qos.PolicyID
}

type RequestedIncompatibleQosStatus struct {
	TotalCount       uint32
	TotalCountChange int32
	LastPolicyID     qos.PolicyID
}

type SampleLostStatus struct {
	TotalCount       uint32
	TotalCountChange int32
}

type SampleRejectedReason int32

const (
	NotRejected SampleRejectedReason = iota
	RejectedByInstancesLimit
	RejectedBySamplesLimit
	RejectedBySamplesPerInstanceLimit
)

type SampleRejectedStatus struct {
	TotalCount         uint32
	TotalCountChange   int32
	LastReason         SampleRejectedReason
	LastInstanceHandle InstanceHandle
}

// writerStatus copies a writer status, resets its change counters and clears
// the corresponding flag.
func writerStatus[T any](h Entity, flag uint32, get func(w *writer) *T, reset func(*T)) (T, int32) {
	var zero T
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return zero, rc
	}
	w, ok := n.(*writer)
	if !ok {
		return zero, RetcodeIllegalOperation
	}
	st := get(w)
	out := *st
	reset(st)
	w.clear(flag)
	return out, RetcodeOK
}

func readerStatus[T any](h Entity, flag uint32, get func(r *reader) *T, reset func(*T)) (T, int32) {
	var zero T
	s := &defaultSession
	s.mu.Lock()
	defer s.mu.Unlock()
	n, rc := s.lookup(h)
	if rc != RetcodeOK {
		return zero, rc
	}
	r, ok := n.(*reader)
	if !ok {
		return zero, RetcodeIllegalOperation
	}
	st := get(r)
	out := *st
	reset(st)
	r.clear(flag)
	return out, RetcodeOK
}

func GetPublicationMatchedStatus(h Entity) (PublicationMatchedStatus, int32) {
	return writerStatus(h, StatusPublicationMatched,
		func(w *writer) *PublicationMatchedStatus { return &w.pubMatched },
		func(st *PublicationMatchedStatus) { st.TotalCountChange, st.CurrentCountChange = 0, 0 })
}

func GetLivelinessLostStatus(h Entity) (LivelinessLostStatus, int32) {
	return writerStatus(h, StatusLivelinessLost,
		func(w *writer) *LivelinessLostStatus { return &w.livelinessLost },
		func(st *LivelinessLostStatus) { st.TotalCountChange = 0 })
}

func GetOfferedDeadlineMissedStatus(h Entity) (OfferedDeadlineMissedStatus, int32) {
	return writerStatus(h, StatusOfferedDeadlineMissed,
		func(w *writer) *OfferedDeadlineMissedStatus { return &w.deadlineMissed },
		func(st *OfferedDeadlineMissedStatus) { st.TotalCountChange = 0 })
}

func GetOfferedIncompatibleQosStatus(h Entity) (OfferedIncompatibleQosStatus, int32) {
	return writerStatus(h, StatusOfferedIncompatibleQos,
		func(w *writer) *OfferedIncompatibleQosStatus { return &w.incompatible },
		func(st *OfferedIncompatibleQosStatus) { st.TotalCountChange = 0 })
}

func GetSubscriptionMatchedStatus(h Entity) (SubscriptionMatchedStatus, int32) {
	return readerStatus(h, StatusSubscriptionMatched,
		func(r *reader) *SubscriptionMatchedStatus { return &r.subMatched },
		func(st *SubscriptionMatchedStatus) { st.TotalCountChange, st.CurrentCountChange = 0, 0 })
}

func GetLivelinessChangedStatus(h Entity) (LivelinessChangedStatus, int32) {
	return readerStatus(h, StatusLivelinessChanged,
		func(r *reader) *LivelinessChangedStatus { return &r.livelinessChanged },
		func(st *LivelinessChangedStatus) { st.AliveCountChange, st.NotAliveCountChange = 0, 0 })
}

func GetRequestedDeadlineMissedStatus(h Entity) (RequestedDeadlineMissedStatus, int32) {
	return readerStatus(h, StatusRequestedDeadlineMissed,
		func(r *reader) *RequestedDeadlineMissedStatus { return &r.deadlineMissed },
		func(st *RequestedDeadlineMissedStatus) { st.TotalCountChange = 0 })
}

func GetRequestedIncompatibleQosStatus(h Entity) (RequestedIncompatibleQosStatus, int32) {
	return readerStatus(h, StatusRequestedIncompatibleQos,
		func(r *reader) *RequestedIncompatibleQosStatus { return &r.incompatible },
		func(st *RequestedIncompatibleQosStatus) { st.TotalCountChange = 0 })
}

func GetSampleLostStatus(h Entity) (SampleLostStatus, int32) {
	return readerStatus(h, StatusSampleLost,
		func(r *reader) *SampleLostStatus { return &r.sampleLost },
		func(st *SampleLostStatus) { st.TotalCountChange = 0 })
}

func GetSampleRejectedStatus(h Entity) (SampleRejectedStatus, int32) {
	return readerStatus(h, StatusSampleRejected,
		func(r *reader) *SampleRejectedStatus { return &r.sampleRejected },
		func(st *SampleRejectedStatus) { st.TotalCountChange = 0 })
}
