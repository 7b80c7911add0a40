package dds

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamstask/go-dds/qos"
	"github.com/liamstask/go-dds/rtps"
)

type Foo struct {
	ID   int32 `dds:"key"`
	Text string
}

type Bar struct {
	N uint64
}

// fooWide claims Foo's type name with a different layout.
type fooWide struct {
	ID   int32 `dds:"key"`
	Text string
	N    uint64
}

func (fooWide) TopicName() string { return "Foo" }
func (fooWide) TypeName() string  { return "dds::Foo" }

type chatter struct {
	Data string
}

func (chatter) TopicName() string { return "chatter" }
func (chatter) TypeName() string  { return "std_msgs::msg::dds_::String_" }

func newTestParticipant(t *testing.T, id uint32) *Participant {
	t.Helper()
	p, err := NewParticipant(id)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func reliable() *qos.Qos {
	q := qos.New()
	q.SetReliability(qos.Reliable, time.Second)
	q.SetHistory(qos.KeepLast, 8)
	return q
}

type pubsub struct {
	p  *Participant
	tp *Topic[Foo]
	w  *DataWriter[Foo]
	r  *DataReader[Foo]
}

func newPubSub(t *testing.T, id uint32) *pubsub {
	t.Helper()
	ps := &pubsub{p: newTestParticipant(t, id)}
	var err error
	ps.tp, err = NewTopic[Foo](ps.p)
	require.NoError(t, err)
	pub, err := ps.p.Publisher()
	require.NoError(t, err)
	sub, err := ps.p.Subscriber()
	require.NoError(t, err)
	ps.w, err = NewDataWriter(pub, ps.tp)
	require.NoError(t, err)
	ps.r, err = NewDataReader(sub, ps.tp, WithQos(reliable()))
	require.NoError(t, err)
	return ps
}

func TestParticipantsInEveryDomain(t *testing.T) {
	for id := uint32(0); id <= rtps.MaxDomainID; id++ {
		p, err := NewParticipant(id)
		require.NoError(t, err, "domain %d", id)
		ih, err := p.InstanceHandle()
		require.NoError(t, err)
		assert.NotZero(t, ih)
		g, err := p.GUID()
		require.NoError(t, err)
		assert.False(t, g.Unknown())
		did, err := p.DomainID()
		require.NoError(t, err)
		assert.Equal(t, id, did)
		require.NoError(t, p.Close())
	}
}

func TestDefaultDomainRejected(t *testing.T) {
	_, err := NewParticipant(DomainDefault)
	var dce *DomainCreationError
	require.ErrorAs(t, err, &dce)
	assert.Equal(t, DomainBadParameter, dce.Kind)
	assert.ErrorIs(t, err, RetcodeBadParameter)
}

func TestCloseCascades(t *testing.T) {
	p, err := NewParticipant(10)
	require.NoError(t, err)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	pub, err := p.Publisher()
	require.NoError(t, err)
	sub, err := p.Subscriber()
	require.NoError(t, err)
	w, err := NewDataWriter(pub, tp)
	require.NoError(t, err)
	r, err := NewDataReader(sub, tp)
	require.NoError(t, err)
	implicit, err := NewDataReader(p, tp)
	require.NoError(t, err)

	// a topic still bound to endpoints stays
	assert.ErrorIs(t, tp.Close(), RetcodePreconditionNotMet)

	require.NoError(t, p.Close())
	for i, e := range []Entity{p, tp, pub, sub, w, r, implicit} {
		_, err := e.InstanceHandle()
		assert.ErrorIs(t, err, RetcodeAlreadyDeleted, "[%d]", i)
		assert.ErrorIs(t, e.Close(), RetcodeAlreadyDeleted, "[%d]", i)
	}

	ih, err := w.LookupInstance(&Foo{ID: 1})
	assert.ErrorIs(t, err, RetcodeAlreadyDeleted)
	assert.Zero(t, ih)
	ih, err = r.LookupInstance(&Foo{ID: 1})
	assert.ErrorIs(t, err, RetcodeAlreadyDeleted)
	assert.Zero(t, ih)
	_, err = Ref(p).Children()
	assert.ErrorIs(t, err, RetcodeAlreadyDeleted)
}

func TestRoundtrip(t *testing.T) {
	ps := newPubSub(t, 11)
	ih, err := ps.w.RegisterInstance(&Foo{ID: 2})
	require.NoError(t, err)

	for _, s := range []Foo{{2, "a"}, {1, "b"}, {2, "c"}} {
		require.NoError(t, ps.w.Write(&s))
	}
	require.NoError(t, ps.w.WaitForAcks(time.Second))

	got, err := ps.r.Read(10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	cases := []struct {
		data Foo
		same bool
	}{
		{Foo{2, "a"}, true},
		{Foo{2, "c"}, true},
		{Foo{1, "b"}, false},
	}
	for i, c := range cases {
		assert.Equal(t, c.data, got[i].Data, "[%d]", i)
		assert.True(t, got[i].Info.ValidData, "[%d]", i)
		assert.Equal(t, c.same, got[i].Info.InstanceHandle == ih, "[%d]", i)
	}

	rih, err := ps.r.LookupInstance(&Foo{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, ih, rih)
	wih, err := ps.w.LookupInstance(&Foo{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, ih, wih)

	// only the samples of the registered instance
	got, err = ps.r.Peek(10, WithInstance(ih), WithMask(ReadSampleState))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestWaitForAcksWithoutReaders(t *testing.T) {
	p := newTestParticipant(t, 12)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	w, err := NewDataWriter(p, tp)
	require.NoError(t, err)
	require.NoError(t, w.Write(&Foo{ID: 1}))
	assert.NoError(t, w.WaitForAcks(0))
	assert.NoError(t, w.Any().WaitForAcks(0))
}

func TestTakeThenRead(t *testing.T) {
	ps := newPubSub(t, 13)
	require.NoError(t, ps.w.Write(&Foo{ID: 7, Text: "x"}))
	ih, err := ps.r.LookupInstance(&Foo{ID: 7})
	require.NoError(t, err)
	require.NotZero(t, ih)

	got, err := ps.r.Take(4, WithInstance(ih))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Data.Text)

	got, err = ps.r.Read(4, WithInstance(ih))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ps.r.Read(4, WithInstance(999999))
	assert.ErrorIs(t, err, RetcodePreconditionNotMet)
	_, err = ps.r.Read(0)
	assert.ErrorIs(t, err, RetcodeBadParameter)

	got, err = ps.r.Read(math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = ps.r.PeekCDR(math.MaxInt, WithMask(1<<30))
	assert.ErrorIs(t, err, RetcodeBadParameter)
}

func TestUndecodableSamplesKept(t *testing.T) {
	ps := newPubSub(t, 34)
	wtp, err := NewTopic[fooWide](ps.p)
	require.NoError(t, err)
	wide, err := NewDataWriter(ps.p, wtp)
	require.NoError(t, err)
	r, err := NewDataReader(ps.p, wtp, WithQos(reliable()))
	require.NoError(t, err)

	require.NoError(t, ps.w.Write(&Foo{1, "a"}))
	require.NoError(t, wide.Write(&fooWide{2, "b", 7}))
	require.NoError(t, ps.w.Write(&Foo{3, "c"}))
	require.NoError(t, ps.w.WaitForAcks(time.Second))
	require.NoError(t, wide.WaitForAcks(time.Second))

	got, err := r.Take(8)
	assert.ErrorIs(t, err, RetcodeError)
	require.Len(t, got, 3)
	cases := []struct {
		valid bool
		data  fooWide
	}{
		{false, fooWide{}},
		{true, fooWide{2, "b", 7}},
		{false, fooWide{}},
	}
	for i, c := range cases {
		assert.Equal(t, c.valid, got[i].Info.ValidData, "[%d]", i)
		assert.Equal(t, c.data, got[i].Data, "[%d]", i)
	}

	got, err = r.Take(8)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, ps.w.Write(&Foo{4, "d"}))
	s, ok, err := r.TakeNext()
	assert.ErrorIs(t, err, RetcodeError)
	assert.True(t, ok)
	assert.False(t, s.Info.ValidData)
}

func TestReadNext(t *testing.T) {
	ps := newPubSub(t, 14)
	for _, s := range []Foo{{1, "a"}, {2, "b"}} {
		require.NoError(t, ps.w.Write(&s))
	}
	s, ok, err := ps.r.ReadNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Foo{1, "a"}, s.Data)

	s, ok, err = ps.r.TakeNext()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Foo{2, "b"}, s.Data)

	_, ok, err = ps.r.TakeNext()
	require.NoError(t, err)
	assert.False(t, ok)

	raws, err := ps.r.PeekCDR(4)
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, ReadSampleState, raws[0].Info.SampleState)
}

func TestDispose(t *testing.T) {
	ps := newPubSub(t, 15)
	require.NoError(t, ps.w.Write(&Foo{ID: 3, Text: "three"}))
	ih, err := ps.w.LookupInstance(&Foo{ID: 3})
	require.NoError(t, err)

	require.NoError(t, ps.w.DisposeInstanceHandleTS(ih, time.Now()))
	got, err := ps.r.Take(4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, NotAliveDisposedInstanceState, got[0].Info.InstanceState)

	require.NoError(t, ps.w.Dispose(&Foo{ID: 4}))
	require.NoError(t, ps.w.UnregisterInstance(&Foo{ID: 4}))
	assert.ErrorIs(t, ps.w.UnregisterInstance(&Foo{ID: 5}), RetcodePreconditionNotMet)
	assert.ErrorIs(t, ps.w.Any().UnregisterInstanceHandle(424242), RetcodePreconditionNotMet)
}

func TestTopicFromMismatch(t *testing.T) {
	p := newTestParticipant(t, 16)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	at := tp.Any()
	assert.Same(t, &tp.AnyTopic, at)

	thi, err := tp.InstanceHandle()
	require.NoError(t, err)
	ahi, err := at.InstanceHandle()
	require.NoError(t, err)
	assert.Equal(t, thi, ahi)
	assert.Equal(t, "Foo", at.Name())
	assert.Equal(t, "dds::Foo", at.TypeName())

	_, err = TopicFrom[Bar](at)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	back, err := TopicFrom[Foo](at)
	require.NoError(t, err)
	assert.Equal(t, "Foo", back.Name())
}

func TestInconsistentTopic(t *testing.T) {
	p := newTestParticipant(t, 17)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	_, err = NewTopic[Bar](p, WithTopicName("Foo"))
	assert.ErrorIs(t, err, RetcodePreconditionNotMet)

	st, err := tp.InconsistentTopicStatus()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), st.TotalCount)
	assert.Equal(t, int32(1), st.TotalCountChange)
	st, err = tp.InconsistentTopicStatus()
	require.NoError(t, err)
	assert.Zero(t, st.TotalCountChange)
}

func TestTypeNames(t *testing.T) {
	cases := []struct {
		entry func() (*typeEntry, error)
		topic string
		typ   string
		flags uint32
	}{
		{describeType[Foo], "Foo", "dds::Foo", FlagFixedKey},
		{describeType[Bar], "Bar", "dds::Bar", FlagFixedSize},
		{describeType[chatter], "chatter", "std_msgs::msg::dds_::String_", 0},
	}
	for i, c := range cases {
		e, err := c.entry()
		require.NoError(t, err, "[%d]", i)
		assert.Equal(t, c.topic, e.topicName, "[%d]", i)
		assert.Equal(t, c.typ, e.desc.TypeName, "[%d]", i)
		assert.Equal(t, c.flags, e.desc.Flags, "[%d]", i)
		assert.Len(t, e.desc.TypeInformation, typeInfoLen, "[%d]", i)
		assert.NotEmpty(t, e.desc.TypeMapping, "[%d]", i)
	}

	foo, _ := describeType[Foo]()
	require.Len(t, foo.desc.Keys, 1)
	assert.Equal(t, "ID", foo.desc.Keys[0].Name)

	_, err := describe(reflect.TypeOf(0))
	assert.Error(t, err)
}

func TestTopicFilter(t *testing.T) {
	p := newTestParticipant(t, 18)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	require.NoError(t, tp.SetFilter(func(s *Foo, arg any) bool {
		return s.ID >= arg.(int32)
	}, int32(10)))
	w, err := NewDataWriter(p, tp)
	require.NoError(t, err)
	r, err := NewDataReader(p, tp, WithQos(reliable()))
	require.NoError(t, err)
	for _, id := range []int32{1, 10, 20} {
		require.NoError(t, w.Write(&Foo{ID: id}))
	}
	got, err := r.Take(8)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int32(10), got[0].Data.ID)
	assert.Equal(t, int32(20), got[1].Data.ID)
}

func TestFindTopic(t *testing.T) {
	p1 := newTestParticipant(t, 19)
	p2 := newTestParticipant(t, 19)
	_, err := NewTopic[Foo](p1)
	require.NoError(t, err)

	at, err := p2.FindTopic(FindLocalDomain, "Foo", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "dds::Foo", at.TypeName())
	pp, err := at.Participant()
	require.NoError(t, err)
	assert.Same(t, p2, pp)

	_, err = p2.FindTopic(FindParticipant, "Nope", 0)
	assert.ErrorIs(t, err, RetcodeTimeout)
	assert.True(t, IsTransient(err))

	_, err = p1.AnyTopic("Foo")
	assert.NoError(t, err)
}

func TestEntityCapability(t *testing.T) {
	ps := newPubSub(t, 20)

	at, err := ps.r.Topic()
	require.NoError(t, err)
	assert.Same(t, &ps.tp.AnyTopic, at)
	_, err = ps.p.Topic()
	assert.ErrorIs(t, err, RetcodeIllegalOperation)

	pp, err := ps.w.Participant()
	require.NoError(t, err)
	assert.Same(t, ps.p, pp)
	assert.Equal(t, KindWriter, ps.w.Kind())
	assert.Equal(t, KindPublisher, ps.w.Parent().Kind())

	assert.NoError(t, ps.w.AssertLiveliness())
	assert.NoError(t, ps.p.AssertLiveliness())
	assert.ErrorIs(t, ps.w.Parent().AssertLiveliness(), RetcodeIllegalOperation)
	_, err = ps.w.Parent().GUID()
	assert.ErrorIs(t, err, RetcodeIllegalOperation)

	children, err := ps.p.Children()
	require.NoError(t, err)
	assert.Len(t, children, 3)
	for i, c := range children {
		k, err := c.Kind()
		require.NoError(t, err, "[%d]", i)
		assert.Contains(t, []EntityKind{KindTopic, KindPublisher, KindSubscriber}, k, "[%d]", i)
		if k != KindPublisher {
			continue
		}
		writers, err := c.Children()
		require.NoError(t, err, "[%d]", i)
		require.Len(t, writers, 1, "[%d]", i)
		assert.Equal(t, Ref(ps.w), writers[0], "[%d]", i)
	}

	require.NoError(t, ps.w.Write(&Foo{ID: 1}))
	trig, err := ps.r.Triggered()
	require.NoError(t, err)
	assert.True(t, trig)
	_, err = ps.r.Take(4)
	require.NoError(t, err)
	st, err := ps.r.StatusChanges()
	require.NoError(t, err)
	assert.Zero(t, st&rtps.StatusDataAvailable)
}

func TestQos(t *testing.T) {
	ps := newPubSub(t, 21)
	wq, err := ps.w.Qos()
	require.NoError(t, err)
	assert.Equal(t, qos.Reliable, wq.Reliability().Kind)

	q := qos.New()
	q.SetHistory(qos.KeepLast, 3)
	assert.ErrorIs(t, ps.w.SetQos(q), RetcodeImmutablePolicy)

	q = qos.New()
	q.SetPartition("sensors")
	require.NoError(t, ps.w.SetQos(q))
	wq, err = ps.w.Qos()
	require.NoError(t, err)
	assert.Equal(t, []string{"sensors"}, wq.Partition())
}

func TestMatchedStatus(t *testing.T) {
	ps := newPubSub(t, 22)
	pm, err := ps.w.PublicationMatchedStatus()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pm.CurrentCount)
	assert.Equal(t, int32(1), pm.CurrentCountChange)
	pm, err = ps.w.PublicationMatchedStatus()
	require.NoError(t, err)
	assert.Zero(t, pm.CurrentCountChange)

	sm, err := ps.r.SubscriptionMatchedStatus()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sm.TotalCount)

	_, err = ps.r.SampleLostStatus()
	assert.NoError(t, err)
	_, err = ps.r.SampleRejectedStatus()
	assert.NoError(t, err)
}

func TestDomainFromRawConfig(t *testing.T) {
	d, err := NewDomain(23, []byte("timing:\n  tick: 5ms\n"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	assert.Equal(t, uint32(23), d.Config().ID)

	p, err := d.CreateParticipant()
	require.NoError(t, err)
	assert.Same(t, Entity(d), p.Parent())
	refs, err := d.LookupParticipants()
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, Ref(p), refs[0])

	_, err = NewDomain(23, nil)
	var dce *DomainCreationError
	require.ErrorAs(t, err, &dce)
	assert.Equal(t, DomainPreconditionNotMet, dce.Kind)

	_, err = RawConfig(24, []byte("link: carrier-pigeon\n"))
	require.ErrorAs(t, err, &dce)
	assert.Equal(t, DomainBadParameter, dce.Kind)

	require.NoError(t, d.Close())
	_, err = p.InstanceHandle()
	assert.ErrorIs(t, err, RetcodeAlreadyDeleted)
}

func TestPublisherSuspend(t *testing.T) {
	p := newTestParticipant(t, 25)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	pub, err := p.Publisher()
	require.NoError(t, err)
	w, err := NewDataWriter(pub, tp)
	require.NoError(t, err)
	r, err := NewDataReader(p, tp, WithQos(reliable()))
	require.NoError(t, err)

	require.NoError(t, pub.Suspend())
	require.NoError(t, w.Write(&Foo{ID: 1}))
	got, err := r.Peek(4)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, pub.Resume())
	require.NoError(t, pub.WaitForAcks(time.Second))
	got, err = r.Peek(4)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.ErrorIs(t, pub.Resume(), RetcodePreconditionNotMet)
}

func TestCloseAll(t *testing.T) {
	ps := newPubSub(t, 26)
	require.NoError(t, CloseAll(ps.r, ps.w, ps.p))
	// everything is gone already
	require.NoError(t, CloseAll(ps.r, ps.w, ps.p))

	p := newTestParticipant(t, 26)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	_, err = NewDataReader(p, tp)
	require.NoError(t, err)
	err = CloseAll(tp)
	assert.ErrorIs(t, err, RetcodePreconditionNotMet)
}

func TestNotifyReaders(t *testing.T) {
	p := newTestParticipant(t, 27)
	tp, err := NewTopic[Foo](p)
	require.NoError(t, err)
	sub, err := p.Subscriber()
	require.NoError(t, err)
	r, err := NewDataReader(sub, tp, WithQos(reliable()))
	require.NoError(t, err)
	w, err := NewDataWriter(p, tp)
	require.NoError(t, err)
	require.NoError(t, w.Write(&Foo{ID: 1}))
	_, err = r.Peek(1)
	require.NoError(t, err)

	require.NoError(t, sub.NotifyReaders())
	st, err := r.StatusChanges()
	require.NoError(t, err)
	assert.NotZero(t, st&rtps.StatusDataAvailable)
}
