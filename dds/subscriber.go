package dds

import (
	"time"

	"go.uber.org/multierr"

	"github.com/liamstask/go-dds/cdr"
	"github.com/liamstask/go-dds/rtps"
)

type (
	SubscriptionMatchedStatus      = rtps.SubscriptionMatchedStatus
	SampleLostStatus               = rtps.SampleLostStatus
	SampleRejectedStatus           = rtps.SampleRejectedStatus
	LivelinessChangedStatus        = rtps.LivelinessChangedStatus
	RequestedDeadlineMissedStatus  = rtps.RequestedDeadlineMissedStatus
	RequestedIncompatibleQosStatus = rtps.RequestedIncompatibleQosStatus
)

// Sample, view and instance state masks for reads. Within each group zero
// selects every state.
const (
	ReadSampleState                = rtps.ReadSampleState
	NotReadSampleState             = rtps.NotReadSampleState
	NewViewState                   = rtps.NewViewState
	NotNewViewState                = rtps.NotNewViewState
	AliveInstanceState             = rtps.AliveInstanceState
	NotAliveDisposedInstanceState  = rtps.NotAliveDisposedInstanceState
	NotAliveNoWritersInstanceState = rtps.NotAliveNoWritersInstanceState
	AnyState                       = rtps.AnyState
)

// ReaderParent is an entity readers can be created under: a subscriber, or a
// participant which then gets an implicit subscriber.
type ReaderParent interface {
	Entity
	readerParent()
}

// Subscriber groups readers.
type Subscriber struct {
	entity
}

func (s *Subscriber) readerParent() {}

// NotifyReaders raises DATA_AVAILABLE on every reader of the subscriber
// holding unread samples.
func (s *Subscriber) NotifyReaders() error {
	return check("notify readers", rtps.NotifyReaders(s.raw()))
}

// RawSample is a serialized sample with its info.
type RawSample = rtps.Sample

// Sample is a decoded sample with its info. Data is the zero value when
// Info.ValidData is false.
type Sample[T any] struct {
	Info SampleInfo
	Data T
}

// ReadOption narrows a read, take or peek.
type ReadOption func(*readSettings)

type readSettings struct {
	instance InstanceHandle
	mask     uint32
}

// WithInstance restricts a read to one instance. An instance the reader
// does not hold fails with PreconditionNotMet.
func WithInstance(ih InstanceHandle) ReadOption {
	return func(s *readSettings) {
		s.instance = ih
	}
}

// WithMask restricts a read to samples in the given states.
func WithMask(mask uint32) ReadOption {
	return func(s *readSettings) {
		s.mask = mask
	}
}

type readOp struct {
	name string
	fn   func(rtps.Entity, int, InstanceHandle, uint32) ([]rtps.Sample, int32)
}

var (
	opPeek = readOp{"peek", rtps.PeekSamples}
	opRead = readOp{"read", rtps.ReadSamples}
	opTake = readOp{"take", rtps.TakeSamples}
)

// AnyDataReader is a reader without a sample type. It shares ownership of
// the reader with the DataReader it was obtained from.
type AnyDataReader struct {
	entity
	topic *AnyTopic
}

func (r *AnyDataReader) Topic() (*AnyTopic, error) {
	if _, rc := rtps.GetKind(r.raw()); rc < 0 {
		return nil, check("topic", rc)
	}
	return r.topic, nil
}

func (r *AnyDataReader) collect(op readOp, max int, opts []ReadOption) ([]RawSample, error) {
	var s readSettings
	for _, o := range opts {
		o(&s)
	}
	out, rc := op.fn(r.raw(), max, s.instance, s.mask)
	if err := check(op.name, rc); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AnyDataReader) next(name string, op readOp) (RawSample, bool, error) {
	out, rc := op.fn(r.raw(), 1, 0, NotReadSampleState)
	if err := check(name, rc); err != nil || len(out) == 0 {
		return RawSample{}, false, err
	}
	return out[0], true, nil
}

// PeekCDR returns up to max serialized samples without changing their
// state. Instances come in creation order, samples oldest first. No data is
// an empty result, not an error.
func (r *AnyDataReader) PeekCDR(max int, opts ...ReadOption) ([]RawSample, error) {
	return r.collect(opPeek, max, opts)
}

// ReadCDR is PeekCDR that marks the returned samples read.
func (r *AnyDataReader) ReadCDR(max int, opts ...ReadOption) ([]RawSample, error) {
	return r.collect(opRead, max, opts)
}

// TakeCDR is ReadCDR that also removes the samples from the reader.
func (r *AnyDataReader) TakeCDR(max int, opts ...ReadOption) ([]RawSample, error) {
	return r.collect(opTake, max, opts)
}

// WaitForHistoricalData waits until the data matched durable writers held
// when they were matched has arrived, or until timeout.
func (r *AnyDataReader) WaitForHistoricalData(timeout time.Duration) error {
	return check("wait for historical data", rtps.ReaderWaitForHistoricalData(r.raw(), timeout))
}

func (r *AnyDataReader) SubscriptionMatchedStatus() (SubscriptionMatchedStatus, error) {
	st, rc := rtps.GetSubscriptionMatchedStatus(r.raw())
	return st, check("subscription matched status", rc)
}

func (r *AnyDataReader) SampleLostStatus() (SampleLostStatus, error) {
	st, rc := rtps.GetSampleLostStatus(r.raw())
	return st, check("sample lost status", rc)
}

func (r *AnyDataReader) SampleRejectedStatus() (SampleRejectedStatus, error) {
	st, rc := rtps.GetSampleRejectedStatus(r.raw())
	return st, check("sample rejected status", rc)
}

func (r *AnyDataReader) LivelinessChangedStatus() (LivelinessChangedStatus, error) {
	st, rc := rtps.GetLivelinessChangedStatus(r.raw())
	return st, check("liveliness changed status", rc)
}

func (r *AnyDataReader) RequestedDeadlineMissedStatus() (RequestedDeadlineMissedStatus, error) {
	st, rc := rtps.GetRequestedDeadlineMissedStatus(r.raw())
	return st, check("requested deadline missed status", rc)
}

func (r *AnyDataReader) RequestedIncompatibleQosStatus() (RequestedIncompatibleQosStatus, error) {
	st, rc := rtps.GetRequestedIncompatibleQosStatus(r.raw())
	return st, check("requested incompatible qos status", rc)
}

// DataReader reads samples of type T.
type DataReader[T any] struct {
	AnyDataReader
}

// NewDataReader creates a reader for topic under parent. The reader applies
// the filter the topic handle carries at creation time.
func NewDataReader[T any](parent ReaderParent, topic *Topic[T], opts ...Option) (*DataReader[T], error) {
	s := applyOptions(opts)
	h := rtps.CreateReader(parent.raw(), topic.raw(), s.qos)
	own, err := newOwner("create reader", h, KindReader, parent.owned(), topic.own)
	if err != nil {
		return nil, err
	}
	return &DataReader[T]{AnyDataReader{entity: entity{own: own, parent: parent}, topic: &topic.AnyTopic}}, nil
}

// Any returns the type-erased view of the reader.
func (r *DataReader[T]) Any() *AnyDataReader {
	return &r.AnyDataReader
}

// decodeSample decodes rs. A payload that does not decode yields a sample
// marked invalid.
func decodeSample[T any](op string, rs RawSample) (Sample[T], error) {
	s := Sample[T]{Info: rs.Info}
	if !rs.Info.ValidData {
		return s, nil
	}
	if err := cdr.Unmarshal(rs.Payload, &s.Data); err != nil {
		log.Warnf("%s: undecodable sample of instance %d: %s", op, rs.Info.InstanceHandle, err)
		var zero T
		s.Data = zero
		s.Info.ValidData = false
		return s, &Error{Op: op, Code: RetcodeError}
	}
	return s, nil
}

func (r *DataReader[T]) decode(op string, raws []RawSample, err error) ([]Sample[T], error) {
	if err != nil {
		return nil, err
	}
	out := make([]Sample[T], len(raws))
	for i, rs := range raws {
		var derr error
		out[i], derr = decodeSample[T](op, rs)
		err = multierr.Append(err, derr)
	}
	return out, err
}

// Peek returns up to max samples without changing their state.
//
// Peek, Read and Take return every sample they collected, also when some of
// them do not decode as T. Those come back with Info.ValidData false, and the
// error reports them.
func (r *DataReader[T]) Peek(max int, opts ...ReadOption) ([]Sample[T], error) {
	raws, err := r.PeekCDR(max, opts...)
	return r.decode("peek", raws, err)
}

// Read returns up to max samples and marks them read.
func (r *DataReader[T]) Read(max int, opts ...ReadOption) ([]Sample[T], error) {
	raws, err := r.ReadCDR(max, opts...)
	return r.decode("read", raws, err)
}

// Take returns up to max samples and removes them from the reader.
func (r *DataReader[T]) Take(max int, opts ...ReadOption) ([]Sample[T], error) {
	raws, err := r.TakeCDR(max, opts...)
	return r.decode("take", raws, err)
}

// ReadNext reads the first sample not read before. The boolean is false
// when there is none. A sample that does not decode is returned invalid,
// with true and an error.
func (r *DataReader[T]) ReadNext() (Sample[T], bool, error) {
	rs, ok, err := r.next("read next", opRead)
	if !ok || err != nil {
		return Sample[T]{}, false, err
	}
	s, err := decodeSample[T]("read next", rs)
	return s, true, err
}

// TakeNext takes the first sample not read before.
func (r *DataReader[T]) TakeNext() (Sample[T], bool, error) {
	rs, ok, err := r.next("take next", opTake)
	if !ok || err != nil {
		return Sample[T]{}, false, err
	}
	s, err := decodeSample[T]("take next", rs)
	return s, true, err
}

// LookupInstance returns the handle of the instance of sample, or 0 when the
// reader holds no such instance.
func (r *DataReader[T]) LookupInstance(sample *T) (InstanceHandle, error) {
	b, err := cdr.Marshal(sample)
	if err != nil {
		return 0, &Error{Op: "lookup instance", Code: RetcodeBadParameter}
	}
	ih, rc := rtps.LookupInstance(r.raw(), b)
	return ih, check("lookup instance", rc)
}
