package rtps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamstask/go-dds/qos"
)

func newTestRHC(configure func(q *qos.Qos)) *rhc {
	q := qos.New()
	if configure != nil {
		configure(q)
	}
	r := &reader{}
	r.qos = q
	return newRHC(r)
}

func alive(iid, pub InstanceHandle, payload string, ts time.Time) *incomingSample {
	return &incomingSample{
		kind:     changeAlive,
		iid:      iid,
		keyhash:  [16]byte{byte(iid)},
		payload:  []byte(payload),
		srcTS:    ts,
		pubIID:   pub,
		lifespan: qos.Infinite,
	}
}

func payloads(b [][]byte) []string {
	var out []string
	for _, p := range b {
		out = append(out, string(p))
	}
	return out
}

func TestRHCKeepLast(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) { q.SetHistory(qos.KeepLast, 2) })
	now := time.Now()
	for _, p := range []string{"a", "b", "c"} {
		res, _ := h.store(alive(1, 100, p, now), now)
		assert.Equal(t, storeChanged, res)
	}
	infos, data, rc := h.collect(opPeek, 10, 0, 0, now)
	require.Equal(t, RetcodeOK, rc)
	assert.Equal(t, []string{"b", "c"}, payloads(data))
	assert.Len(t, infos, 2)
	assert.Equal(t, 2, h.nsamples)
}

func TestRHCResourceLimits(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) {
		q.SetHistory(qos.KeepAll, 0)
		q.SetResourceLimits(3, 2, 2)
	})
	now := time.Now()
	cases := []struct {
		in     *incomingSample
		res    storeResult
		reason SampleRejectedReason
	}{
		{alive(1, 100, "a", now), storeChanged, NotRejected},
		{alive(1, 100, "b", now), storeChanged, NotRejected},
		{alive(1, 100, "c", now), storeRejected, RejectedBySamplesPerInstanceLimit},
		{alive(2, 100, "d", now), storeChanged, NotRejected},
		{alive(2, 100, "e", now), storeRejected, RejectedBySamplesLimit},
		{alive(3, 100, "f", now), storeRejected, RejectedByInstancesLimit},
	}
	for i, c := range cases {
		res, reason := h.store(c.in, now)
		assert.Equal(t, c.res, res, "[%d]", i)
		assert.Equal(t, c.reason, reason, "[%d]", i)
	}
	assert.Len(t, h.instances, 2)
}

func TestRHCMasks(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) { q.SetHistory(qos.KeepLast, 4) })
	now := time.Now()
	h.store(alive(1, 100, "a", now), now)
	h.store(alive(2, 100, "b", now), now)
	_, _, rc := h.collect(opRead, 1, 0, 1, now)
	require.Equal(t, RetcodeOK, rc)
	h.store(alive(1, 100, "c", now), now)

	cases := []struct {
		mask uint32
		want []string
	}{
		{0, []string{"a", "c", "b"}},
		{AnyState, []string{"a", "c", "b"}},
		{ReadSampleState, []string{"a"}},
		{NotReadSampleState, []string{"c", "b"}},
		{NewViewState, []string{"b"}},
		{NotNewViewState, []string{"a", "c"}},
		{NotAliveDisposedInstanceState, nil},
		{NotReadSampleState | NotNewViewState, []string{"c"}},
	}
	for i, c := range cases {
		_, data, rc := h.collect(opPeek, 10, c.mask, 0, now)
		require.Equal(t, RetcodeOK, rc, "[%d]", i)
		assert.Equal(t, c.want, payloads(data), "[%d] mask 0x%x", i, c.mask)
	}

	_, data, _ := h.collect(opPeek, 2, 0, 0, now)
	assert.Len(t, data, 2)
	_, _, rc = h.collect(opPeek, 2, 0, 42, now)
	assert.Equal(t, RetcodePreconditionNotMet, rc)
}

func TestRHCGenerations(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) { q.SetHistory(qos.KeepLast, 8) })
	now := time.Now()
	h.store(alive(1, 100, "a", now), now)
	h.store(&incomingSample{kind: changeDisposed, iid: 1, pubIID: 100, srcTS: now}, now)
	h.store(alive(1, 100, "b", now), now)
	h.store(&incomingSample{kind: changeUnregistered, iid: 1, pubIID: 100, srcTS: now}, now)

	infos, _, rc := h.collect(opTake, 10, 0, 0, now)
	require.Equal(t, RetcodeOK, rc)
	require.Len(t, infos, 2)

	// "a" was written before the disposal, "b" after it; unregistering while
	// "b" is unread adds no sample
	assert.Equal(t, uint32(0), infos[0].DisposedGenerationCount)
	assert.Equal(t, uint32(1), infos[1].DisposedGenerationCount)
	assert.Equal(t, uint32(1), infos[0].SampleRank)
	assert.Equal(t, uint32(1), infos[0].GenerationRank)
	assert.Equal(t, uint32(0), infos[1].GenerationRank)
	assert.Equal(t, uint32(1), infos[0].AbsoluteGenerationRank)
	for _, si := range infos {
		assert.Equal(t, NotAliveNoWritersInstanceState, si.InstanceState)
	}
	// emptied without writers: the instance is gone
	assert.Empty(t, h.instances)
	assert.Zero(t, h.nsamples)
}

func TestRHCDestinationOrder(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) {
		q.SetHistory(qos.KeepLast, 4)
		q.SetDestinationOrder(qos.BySourceTimestamp)
	})
	now := time.Now()
	h.store(alive(1, 100, "new", now), now)
	res, _ := h.store(alive(1, 100, "old", now.Add(-time.Second)), now)
	assert.Equal(t, storeUnchanged, res)
	_, data, _ := h.collect(opPeek, 10, 0, 0, now)
	assert.Equal(t, []string{"new"}, payloads(data))
}

func TestRHCTimeBasedFilter(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) {
		q.SetHistory(qos.KeepLast, 4)
		q.SetTimeBasedFilter(time.Second)
	})
	now := time.Now()
	h.store(alive(1, 100, "a", now), now)
	res, _ := h.store(alive(1, 100, "b", now), now.Add(time.Millisecond))
	assert.Equal(t, storeFiltered, res)
	res, _ = h.store(alive(1, 100, "c", now), now.Add(2*time.Second))
	assert.Equal(t, storeChanged, res)
}

func TestRHCExclusiveOwnership(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) {
		q.SetHistory(qos.KeepLast, 8)
		q.SetOwnership(qos.Exclusive)
	})
	now := time.Now()
	weak := alive(1, 100, "weak", now)
	weak.strength = 1
	strong := alive(1, 200, "strong", now)
	strong.strength = 5

	h.store(weak, now)
	h.store(strong, now)
	res, _ := h.store(alive(1, 100, "ignored", now), now)
	assert.Equal(t, storeUnchanged, res)

	// once the owner unregisters, the weaker writer takes over
	h.store(&incomingSample{kind: changeUnregistered, iid: 1, pubIID: 200, srcTS: now}, now)
	again := alive(1, 100, "taken", now)
	again.strength = 1
	res, _ = h.store(again, now)
	assert.Equal(t, storeChanged, res)

	_, data, _ := h.collect(opPeek, 10, 0, 0, now)
	assert.Equal(t, []string{"weak", "strong", "taken"}, payloads(data))
}

func TestRHCLifespanAndAutopurge(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) {
		q.SetHistory(qos.KeepLast, 4)
		q.SetReaderDataLifecycle(qos.Infinite, 10*time.Millisecond)
	})
	now := time.Now()
	short := alive(1, 100, "short", now)
	short.lifespan = 50 * time.Millisecond
	h.store(short, now)
	h.store(alive(2, 100, "long", now), now)

	_, data, _ := h.collect(opPeek, 10, 0, 0, now.Add(time.Second))
	assert.Equal(t, []string{"long"}, payloads(data))

	h.store(&incomingSample{kind: changeDisposed, iid: 2, pubIID: 100, srcTS: now}, now)
	h.tick(now.Add(time.Second))
	assert.Nil(t, h.byIID[2])
}

func TestRHCDeadline(t *testing.T) {
	h := newTestRHC(func(q *qos.Qos) { q.SetDeadline(100 * time.Millisecond) })
	now := time.Now()
	h.store(alive(1, 100, "a", now), now)
	assert.Empty(t, h.tick(now.Add(50*time.Millisecond)))
	assert.Equal(t, []InstanceHandle{1}, h.tick(now.Add(200*time.Millisecond)))
	// the deadline restarts after a miss
	assert.Empty(t, h.tick(now.Add(250*time.Millisecond)))
}

func TestRHCWriterGone(t *testing.T) {
	h := newTestRHC(nil)
	now := time.Now()
	h.store(alive(1, 100, "a", now), now)
	h.store(alive(2, 200, "b", now), now)
	h.collect(opRead, 10, 0, 0, now)

	assert.True(t, h.writerGone(100, now))
	assert.False(t, h.writerGone(100, now))
	infos, _, _ := h.collect(opPeek, 10, NotAliveNoWritersInstanceState, 0, now)
	require.Len(t, infos, 2)
	// the read sample is joined by an invalid one marking the state change
	assert.True(t, infos[0].ValidData)
	assert.False(t, infos[1].ValidData)
	assert.True(t, h.hasUnread())
}
