package rtps

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/liamstask/go-dds/qos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRoundtrip(t *testing.T) {

	cases := []struct{ t time.Time }{
		{time.Unix(1451457191, 226962928)}, // arbitrary point in time
		{time.Unix(0, 0)},
	}

	for i, c := range cases {
		b := timeToBytes(c.t, binary.LittleEndian)

		tout, err := timeFromBytes(binary.LittleEndian, b)
		require.NoError(t, err, "[%d]", i)
		assert.True(t, tout.Equal(c.t), "[%d] time roundtrip mismatch. got %v, want %v", i, tout, c.t)
	}

	_, err := timeFromBytes(binary.LittleEndian, []byte{1, 2})
	assert.Error(t, err)
}

func TestDurationRoundtrip(t *testing.T) {
	cases := []struct{ d time.Duration }{
		{time.Duration(1451457191)}, // arbitrary duration
		{100 * time.Second},
		{0},
		{qos.Infinite},
	}

	for i, c := range cases {
		b := durationToBytes(c.d, binary.LittleEndian)

		dout, err := durationFromBytes(binary.LittleEndian, b)
		require.NoError(t, err, "[%d]", i)
		assert.Equal(t, c.d, dout, "[%d] duration roundtrip mismatch", i)
	}
}

func TestDeadlineAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, now, deadlineAfter(now, 0))
	assert.Equal(t, now, deadlineAfter(now, -time.Second))
	assert.Equal(t, now.Add(time.Second), deadlineAfter(now, time.Second))
	assert.Equal(t, timeInfinite, deadlineAfter(now, qos.Infinite))

	assert.False(t, expired(now, qos.Infinite, now.Add(time.Hour)))
	assert.True(t, expired(now, time.Second, now.Add(2*time.Second)))
	assert.False(t, expired(now, time.Second, now.Add(time.Second/2)))
}
