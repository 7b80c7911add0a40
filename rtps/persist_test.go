package rtps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamstask/go-dds/qos"
)

func newStoreWriter(t *testing.T, cleanup time.Duration, depth int32) *writer {
	q := qos.New()
	q.SetDurability(qos.Transient)
	q.SetDurabilityService(cleanup, qos.History{Kind: qos.KeepLast, Depth: depth},
		qos.ResourceLimits{MaxSamples: qos.LengthUnlimited, MaxInstances: qos.LengthUnlimited, MaxSamplesPerInstance: qos.LengthUnlimited})
	w := &writer{
		topic: &topic{name: "stored", desc: descFor(t, sample{}, "test::Sample")},
		guid:  GUID{Prefix: newGUIDPrefix(), EntityID: userEntityID(1, ENTITYID_KIND_WRITER_WITH_KEY)},
	}
	w.qos = q
	return w
}

func openTestStore(t *testing.T, path string) *durableStore {
	st, err := openDurableStore(path, 7)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestDurableStoreDepth(t *testing.T) {
	st := openTestStore(t, "")
	w := newStoreWriter(t, qos.Infinite, 2)
	base := time.Now()
	for i, txt := range []string{"a", "b", "c"} {
		cc := &cacheChange{seq: SeqNum(i + 1), keyhash: [16]byte{1}, payload: encode(t, &sample{ID: 1, Text: txt}), ts: base.Add(time.Duration(i) * time.Millisecond)}
		require.NoError(t, st.put(w, cc))
	}
	require.NoError(t, st.put(w, &cacheChange{seq: 4, keyhash: [16]byte{2}, payload: encode(t, &sample{ID: 2}), ts: base}))
	// unregistrations are not stored
	require.NoError(t, st.put(w, &cacheChange{seq: 5, kind: changeUnregistered, keyhash: [16]byte{2}, ts: base}))

	recs, err := st.load("stored")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(2), recs[0].Seq)
	assert.Equal(t, int64(3), recs[1].Seq)
	assert.Equal(t, int64(4), recs[2].Seq)
	assert.Equal(t, "test::Sample", recs[0].TypeName)
	assert.Equal(t, w.guid, guidFromBytes(recs[0].Writer))

	others, err := st.load("elsewhere")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestDurableStoreCleanup(t *testing.T) {
	st := openTestStore(t, "")
	now := time.Now()

	immediate := newStoreWriter(t, 0, 4)
	require.NoError(t, st.put(immediate, &cacheChange{seq: 1, keyhash: [16]byte{1}, payload: encode(t, &sample{ID: 1}), ts: now}))
	require.NoError(t, st.put(immediate, &cacheChange{seq: 2, kind: changeDisposed, keyhash: [16]byte{1}, payload: encode(t, &sample{ID: 1}), ts: now}))
	recs, err := st.load("stored")
	require.NoError(t, err)
	assert.Empty(t, recs)

	delayed := newStoreWriter(t, 50*time.Millisecond, 4)
	require.NoError(t, st.put(delayed, &cacheChange{seq: 1, keyhash: [16]byte{2}, payload: encode(t, &sample{ID: 2}), ts: now}))
	require.NoError(t, st.put(delayed, &cacheChange{seq: 2, kind: changeDisposed, keyhash: [16]byte{2}, payload: encode(t, &sample{ID: 2}), ts: now.Add(time.Millisecond)}))
	require.NoError(t, st.purge(now))
	recs, _ = st.load("stored")
	assert.Len(t, recs, 2)

	require.NoError(t, st.purge(now.Add(time.Minute)))
	recs, _ = st.load("stored")
	assert.Empty(t, recs)
}

func TestDurableStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	w := newStoreWriter(t, qos.Infinite, 1)

	st, err := openDurableStore(dir, 7)
	require.NoError(t, err)
	require.NoError(t, st.put(w, &cacheChange{seq: 1, keyhash: [16]byte{9}, payload: encode(t, &sample{ID: 9, Text: "disk"}), ts: time.Now()}))
	require.NoError(t, st.Close())

	st = openTestStore(t, dir)
	recs, err := st.load("stored")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "stored", recs[0].Topic)
}
