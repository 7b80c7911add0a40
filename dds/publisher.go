package dds

import (
	"time"

	"github.com/liamstask/go-dds/cdr"
	"github.com/liamstask/go-dds/rtps"
)

type (
	PublicationMatchedStatus     = rtps.PublicationMatchedStatus
	LivelinessLostStatus         = rtps.LivelinessLostStatus
	OfferedDeadlineMissedStatus  = rtps.OfferedDeadlineMissedStatus
	OfferedIncompatibleQosStatus = rtps.OfferedIncompatibleQosStatus
)

// WriterParent is an entity writers can be created under: a publisher, or a
// participant which then gets an implicit publisher.
type WriterParent interface {
	Entity
	writerParent()
}

// Publisher groups writers.
type Publisher struct {
	entity
}

func (p *Publisher) writerParent() {}

// Suspend holds back the writes of the publisher's writers until Resume.
func (p *Publisher) Suspend() error {
	return check("suspend", rtps.Suspend(p.raw()))
}

// Resume sends everything written since Suspend.
func (p *Publisher) Resume() error {
	return check("resume", rtps.Resume(p.raw()))
}

// WaitForAcks waits until every matched reliable reader acknowledged the
// data of all the publisher's writers, or until timeout. Zero polls.
func (p *Publisher) WaitForAcks(timeout time.Duration) error {
	return check("wait for acks", rtps.WaitForAcks(p.raw(), timeout))
}

// AnyDataWriter is a writer without a sample type. It shares ownership of
// the writer with the DataWriter it was obtained from.
type AnyDataWriter struct {
	entity
	topic *AnyTopic
}

func (w *AnyDataWriter) Topic() (*AnyTopic, error) {
	if _, rc := rtps.GetKind(w.raw()); rc < 0 {
		return nil, check("topic", rc)
	}
	return w.topic, nil
}

// WriteCDR writes a sample already serialized with an encapsulation header.
func (w *AnyDataWriter) WriteCDR(data []byte) error {
	return check("write", rtps.Write(w.raw(), data))
}

// WriteFlush sends the samples batched by the writer.
func (w *AnyDataWriter) WriteFlush() error {
	return check("write flush", rtps.WriteFlush(w.raw()))
}

// WaitForAcks waits until every matched reliable reader acknowledged
// everything written so far, or until timeout. Zero polls; a writer with no
// reliable readers is done at once.
func (w *AnyDataWriter) WaitForAcks(timeout time.Duration) error {
	return check("wait for acks", rtps.WaitForAcks(w.raw(), timeout))
}

func (w *AnyDataWriter) UnregisterInstanceHandle(ih InstanceHandle) error {
	return check("unregister instance", rtps.UnregisterInstanceHandle(w.raw(), ih, time.Time{}))
}

func (w *AnyDataWriter) DisposeInstanceHandle(ih InstanceHandle) error {
	return w.DisposeInstanceHandleTS(ih, time.Time{})
}

// DisposeInstanceHandleTS disposes an instance with an explicit source
// timestamp.
func (w *AnyDataWriter) DisposeInstanceHandleTS(ih InstanceHandle, ts time.Time) error {
	return check("dispose instance", rtps.DisposeInstanceHandle(w.raw(), ih, ts))
}

// PublicationMatchedStatus returns the PUBLICATION_MATCHED status and resets
// its change counters.
func (w *AnyDataWriter) PublicationMatchedStatus() (PublicationMatchedStatus, error) {
	st, rc := rtps.GetPublicationMatchedStatus(w.raw())
	return st, check("publication matched status", rc)
}

func (w *AnyDataWriter) LivelinessLostStatus() (LivelinessLostStatus, error) {
	st, rc := rtps.GetLivelinessLostStatus(w.raw())
	return st, check("liveliness lost status", rc)
}

func (w *AnyDataWriter) OfferedDeadlineMissedStatus() (OfferedDeadlineMissedStatus, error) {
	st, rc := rtps.GetOfferedDeadlineMissedStatus(w.raw())
	return st, check("offered deadline missed status", rc)
}

func (w *AnyDataWriter) OfferedIncompatibleQosStatus() (OfferedIncompatibleQosStatus, error) {
	st, rc := rtps.GetOfferedIncompatibleQosStatus(w.raw())
	return st, check("offered incompatible qos status", rc)
}

// DataWriter writes samples of type T.
type DataWriter[T any] struct {
	AnyDataWriter
}

// NewDataWriter creates a writer for topic under parent. Writers are
// reliable unless the QoS says otherwise.
func NewDataWriter[T any](parent WriterParent, topic *Topic[T], opts ...Option) (*DataWriter[T], error) {
	s := applyOptions(opts)
	h := rtps.CreateWriter(parent.raw(), topic.raw(), s.qos)
	own, err := newOwner("create writer", h, KindWriter, parent.owned(), topic.own)
	if err != nil {
		return nil, err
	}
	return &DataWriter[T]{AnyDataWriter{entity: entity{own: own, parent: parent}, topic: &topic.AnyTopic}}, nil
}

// Any returns the type-erased view of the writer.
func (w *DataWriter[T]) Any() *AnyDataWriter {
	return &w.AnyDataWriter
}

func (w *DataWriter[T]) encode(op string, sample *T) ([]byte, error) {
	b, err := cdr.Marshal(sample)
	if err != nil {
		log.Debugf("%s: %s", op, err)
		return nil, &Error{Op: op, Code: RetcodeBadParameter}
	}
	return b, nil
}

// Write publishes a sample timestamped now. It does not wait for delivery,
// except that a reliable keep-all writer whose resource limits are reached
// blocks up to the reliability max blocking time and then fails with
// RetcodeTimeout.
func (w *DataWriter[T]) Write(sample *T) error {
	return w.WriteTS(sample, time.Time{})
}

// WriteTS publishes a sample with an explicit source timestamp.
func (w *DataWriter[T]) WriteTS(sample *T, ts time.Time) error {
	b, err := w.encode("write", sample)
	if err != nil {
		return err
	}
	return check("write", rtps.WriteTS(w.raw(), b, ts))
}

// RegisterInstance registers the instance of sample and returns its handle.
func (w *DataWriter[T]) RegisterInstance(sample *T) (InstanceHandle, error) {
	b, err := w.encode("register instance", sample)
	if err != nil {
		return 0, err
	}
	ih, rc := rtps.RegisterInstance(w.raw(), b)
	return ih, check("register instance", rc)
}

// UnregisterInstance unregisters the instance of sample; only its key
// fields are used.
func (w *DataWriter[T]) UnregisterInstance(sample *T) error {
	b, err := w.encode("unregister instance", sample)
	if err != nil {
		return err
	}
	return check("unregister instance", rtps.UnregisterInstance(w.raw(), b, time.Time{}))
}

// Dispose disposes the instance of sample, registering it if needed.
func (w *DataWriter[T]) Dispose(sample *T) error {
	b, err := w.encode("dispose", sample)
	if err != nil {
		return err
	}
	return check("dispose", rtps.Dispose(w.raw(), b, time.Time{}))
}

// LookupInstance returns the handle of the instance of sample, or 0 when the
// writer has not registered it.
func (w *DataWriter[T]) LookupInstance(sample *T) (InstanceHandle, error) {
	b, err := w.encode("lookup instance", sample)
	if err != nil {
		return 0, err
	}
	ih, rc := rtps.LookupInstance(w.raw(), b)
	return ih, check("lookup instance", rc)
}
