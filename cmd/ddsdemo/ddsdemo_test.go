package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamstask/go-dds/dds"
)

func TestRunNodeHelloWorld(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("timing:\n  tick: 5ms\n"), 0644))

	var kept *dds.Participant
	err := runNode(context.Background(), nodeParams{DomainID: 31, ConfigPath: cfg}, func(ctx context.Context, n *node) error {
		kept = n.participant
		require.NotNil(t, n.domain)
		topic, err := dds.NewTopic[Msg](n.participant)
		require.NoError(t, err)
		assert.Equal(t, "HelloWorldData_Msg", topic.Name())
		assert.Equal(t, "HelloWorldData::Msg", topic.TypeName())

		r, err := dds.NewDataReader(n.participant, topic, dds.WithQos(helloQos()))
		require.NoError(t, err)
		w, err := dds.NewDataWriter(n.participant, topic, dds.WithQos(helloQos()))
		require.NoError(t, err)
		require.NoError(t, waitForReader(ctx, w.Any(), time.Second))
		require.NoError(t, w.Write(&Msg{UserID: 1, Message: "Hello World"}))

		got, err := r.Take(4)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, Msg{UserID: 1, Message: "Hello World"}, got[0].Data)
		return nil
	})
	require.NoError(t, err)

	// stopping the app deletes the participant
	_, err = kept.InstanceHandle()
	assert.ErrorIs(t, err, dds.RetcodeAlreadyDeleted)
}

func TestRunNodeBadConfig(t *testing.T) {
	called := false
	err := runNode(context.Background(), nodeParams{DomainID: 32, ConfigPath: "/nonexistent/domain.yaml"}, func(context.Context, *node) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)

	cfg := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("link: smoke-signals\n"), 0644))
	err = runNode(context.Background(), nodeParams{DomainID: 32, ConfigPath: cfg}, func(context.Context, *node) error {
		called = true
		return nil
	})
	var dce *dds.DomainCreationError
	assert.ErrorAs(t, err, &dce)
	assert.False(t, called)
}

func TestPoll(t *testing.T) {
	calls := 0
	err := poll(context.Background(), time.Millisecond, func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	require.NoError(t, poll(ctx, time.Hour, func() (bool, error) {
		calls++
		return false, nil
	}))
	assert.Equal(t, 1, calls)
}

func TestWaitForReaderTimesOut(t *testing.T) {
	p, err := dds.NewParticipant(33)
	require.NoError(t, err)
	defer p.Close()
	topic, err := dds.NewTopic[Msg](p)
	require.NoError(t, err)
	w, err := dds.NewDataWriter(p, topic)
	require.NoError(t, err)
	assert.Error(t, waitForReader(context.Background(), w.Any(), 30*time.Millisecond))
}
