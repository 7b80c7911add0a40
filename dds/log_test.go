package dds

import (
	"testing"

	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	InstallLogSink(core)
	t.Cleanup(RemoveLogSink)
	require.NoError(t, logging.SetLogLevel("dds", "warn"))

	other, others := observer.New(zapcore.DebugLevel)
	InstallLogSink(other)

	p, err := NewParticipant(300)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	warned := fromDDS(logs).FilterMessageSnippet("outside the usual range")
	assert.Equal(t, 1, warned.Len())
	assert.Equal(t, zapcore.WarnLevel, warned.All()[0].Level)
	assert.Zero(t, others.Len())

	// below the subsystem level
	n := fromDDS(logs).Len()
	log.Debugf("quiet")
	assert.Equal(t, n, fromDDS(logs).Len())
}

func fromDDS(logs *observer.ObservedLogs) *observer.ObservedLogs {
	return logs.Filter(func(e observer.LoggedEntry) bool {
		return e.LoggerName == "dds"
	})
}
