package dds

import (
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

var log = logging.Logger("dds")

var sink struct {
	mu        sync.Mutex
	installed bool
}

// InstallLogSink routes the log output of every subsystem to core. Only the
// first call takes effect; later calls are no-ops until RemoveLogSink.
func InstallLogSink(core zapcore.Core) {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.installed {
		return
	}
	logging.SetPrimaryCore(core)
	sink.installed = true
}

// RemoveLogSink restores the logging configured from the environment.
func RemoveLogSink() {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if !sink.installed {
		return
	}
	logging.SetupLogging(logging.GetConfig())
	sink.installed = false
}

// CloseAll closes entities in order and combines the failures. Entities
// already deleted, typically by closing their parent earlier in the list,
// are not failures.
func CloseAll(es ...Entity) error {
	var err error
	for _, e := range es {
		if e == nil {
			continue
		}
		if cerr := e.Close(); cerr != nil && CodeOf(cerr) != RetcodeAlreadyDeleted {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}
