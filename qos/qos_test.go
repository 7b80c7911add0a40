package qos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	q := New()
	assert.Equal(t, Volatile, q.Durability())
	assert.Equal(t, History{KeepLast, 1}, q.History())
	assert.Equal(t, ResourceLimits{-1, -1, -1}, q.ResourceLimits())
	assert.Equal(t, Infinite, q.Deadline())
	assert.Equal(t, Infinite, q.Lifespan())
	assert.Equal(t, Reliability{BestEffort, 100 * time.Millisecond}, q.Reliability())
	assert.Equal(t, Liveliness{Automatic, Infinite}, q.Liveliness())
	assert.True(t, q.WriterDataLifecycle().AutodisposeUnregisteredInstances)
	assert.Equal(t, AllowTypeCoercion, q.TypeConsistency().Kind)
	assert.Equal(t, []DataRepresentationID{XCDR1}, q.DataRepresentation())
	assert.Empty(t, q.Partition())
	assert.NoError(t, q.Validate())
}

func TestSetGet(t *testing.T) {
	q := New()
	q.SetDurability(TransientLocal)
	q.SetHistory(KeepAll, 0)
	q.SetReliability(Reliable, time.Second)
	q.SetPartition("a", "b*")
	q.SetUserData([]byte("ud"))
	q.SetOwnership(Exclusive)
	q.SetOwnershipStrength(7)
	q.SetEntityName("w1")
	q.SetPSMXInstances("iox")
	q.SetDataRepresentation(XCDR2)

	assert.Equal(t, TransientLocal, q.Durability())
	assert.Equal(t, History{KeepAll, 0}, q.History())
	assert.Equal(t, Reliability{Reliable, time.Second}, q.Reliability())
	assert.Equal(t, []string{"a", "b*"}, q.Partition())
	assert.Equal(t, []byte("ud"), q.UserData())
	assert.Equal(t, Exclusive, q.Ownership())
	assert.Equal(t, int32(7), q.OwnershipStrength())
	assert.Equal(t, "w1", q.EntityName())
	assert.Equal(t, []string{"iox"}, q.PSMXInstances())
	assert.Equal(t, []DataRepresentationID{XCDR2}, q.DataRepresentation())
	assert.True(t, q.Present(PartitionPolicy))
	assert.False(t, q.Present(DeadlinePolicy))

	q.Reset()
	assert.True(t, q.Equal(New()))
}

func TestProps(t *testing.T) {
	q := New()
	q.SetProp("k", "v1")
	q.SetProp("other", "x")
	q.SetProp("k", "v2")
	v, ok := q.Prop("k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
	assert.Equal(t, []string{"k", "other"}, q.PropNames())

	q.UnsetProp("k")
	_, ok = q.Prop("k")
	assert.False(t, ok)

	q.SetBProp("b", []byte{1})
	q.SetBProp("b", []byte{2})
	bv, ok := q.BProp("b")
	require.True(t, ok)
	assert.Equal(t, []byte{2}, bv)
	assert.Equal(t, []string{"b"}, q.BPropNames())
	q.UnsetBProp("b")
	assert.Empty(t, q.BPropNames())
}

func TestMergeIdempotent(t *testing.T) {
	a := New()
	a.SetReliability(Reliable, time.Second)
	a.SetProp("x", "1")

	b := New()
	b.SetReliability(BestEffort, 0)
	b.SetDurability(Persistent)
	b.SetPartition("p")
	b.SetProp("y", "2")

	a.Merge(b)
	once := a.Clone()
	a.Merge(b)

	assert.True(t, a.Equal(once))
	assert.Equal(t, Reliable, a.Reliability().Kind, "set policies are preserved")
	assert.Equal(t, Persistent, a.Durability(), "unset policies are filled in")
	assert.Equal(t, []string{"p"}, a.Partition())
	_, ok := a.Prop("y")
	assert.False(t, ok, "property list is merged as one policy")

	// merged slices are not shared with the source
	b.SetPartition("changed")
	assert.Equal(t, []string{"p"}, a.Partition())
}

func TestCloneEqual(t *testing.T) {
	a := New()
	a.SetBProp("key", []byte{1, 2})
	a.SetDeadline(time.Second)
	c := a.Clone()
	assert.True(t, a.Equal(c))

	c.SetBProp("key", []byte{3})
	assert.False(t, a.Equal(c))
	assert.True(t, Changed(a, c).Has(BinaryPropertyPolicy))

	d := New()
	d.SetHistory(KeepLast, 1)
	assert.True(t, d.Equal(New()), "explicit default equals unset default")
}

func TestChangedImmutable(t *testing.T) {
	a := New()
	b := a.Clone()
	b.SetDeadline(time.Second)
	assert.Zero(t, Changed(a, b)&ImmutableMask)

	b.SetDurability(TransientLocal)
	assert.NotZero(t, Changed(a, b)&ImmutableMask)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		setup func(q *Qos)
		ok    bool
	}{
		{func(q *Qos) {}, true},
		{func(q *Qos) { q.SetHistory(KeepLast, 0) }, false},
		{func(q *Qos) { q.SetHistory(KeepAll, 0) }, true},
		{func(q *Qos) { q.SetHistory(KeepLast, 5); q.SetResourceLimits(-1, -1, 2) }, false},
		{func(q *Qos) { q.SetResourceLimits(1, -1, 2) }, false},
		{func(q *Qos) { q.SetDeadline(-time.Second) }, false},
		{func(q *Qos) { q.SetDeadline(time.Millisecond); q.SetTimeBasedFilter(time.Second) }, false},
	}

	for i, c := range cases {
		q := New()
		c.setup(q)
		err := q.Validate()
		if c.ok {
			assert.NoError(t, err, "[%d]", i)
		} else {
			assert.ErrorIs(t, err, ErrInconsistent, "[%d]", i)
		}
	}
}

func TestPolicyNames(t *testing.T) {
	assert.Equal(t, "Reliability", ReliabilityPolicy.String())
	assert.Equal(t, "Invalid", PolicyID(99).String())
	assert.Equal(t, "transient-local", TransientLocal.String())
}
