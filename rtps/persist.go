package rtps

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	logging "github.com/ipfs/go-log/v2"

	"github.com/liamstask/go-dds/cdr"
	"github.com/liamstask/go-dds/qos"
)

var storeLog = logging.Logger("rtps/durability")

// storedSample is the durable form of a change of a transient or persistent
// writer.
type storedSample struct {
	Topic     string
	TypeName  string
	Writer    []byte
	Seq       int64
	Kind      uint8
	KeyHash   []byte
	Payload   []byte
	Timestamp int64
}

// durableStore keeps the data of transient and persistent writers beyond
// their lifetime. It lives in memory unless the domain configures a path.
//
// Keys:
//
//	s/<topic>\x00<keyhash>/<timestamp>/<writer>/<seq>  samples
//	p/<topic>\x00<keyhash>                             purge deadline of a disposed instance
type durableStore struct {
	db *badger.DB
}

type badgerLogger struct {
	log *logging.ZapEventLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func openDurableStore(path string, domainID uint32) (*durableStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	if path != "" {
		opts = badger.DefaultOptions(filepath.Join(path, fmt.Sprintf("domain-%d", domainID)))
	}
	opts = opts.WithLogger(&badgerLogger{storeLog})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("rtps: opening durable store: %w", err)
	}
	return &durableStore{db: db}, nil
}

// durable returns the domain's store, opening it on first use.
func (d *domain) durable() *durableStore {
	if d.store == nil && !d.storeFailed {
		st, err := openDurableStore(d.cfg.Durability.Path, d.id)
		if err != nil {
			log.Errorf("domain %d: %s", d.id, err)
			d.storeFailed = true
			return nil
		}
		d.store = st
	}
	return d.store
}

func topicPrefix(topic string) []byte {
	return []byte("s/" + topic + "\x00")
}

func instanceName(topic string, kh [16]byte) string {
	return topic + "\x00" + hex.EncodeToString(kh[:])
}

func instancePrefix(topic string, kh [16]byte) []byte {
	return []byte("s/" + instanceName(topic, kh) + "/")
}

func purgeKey(topic string, kh [16]byte) []byte {
	return []byte("p/" + instanceName(topic, kh))
}

func sampleKey(topic string, kh [16]byte, ts time.Time, writer GUID, seq SeqNum) []byte {
	return []byte(fmt.Sprintf("s/%s/%016x/%s/%016x", instanceName(topic, kh), ts.UnixNano(), hex.EncodeToString(writer.Bytes()), int64(seq)))
}

func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func deleteKeys(txn *badger.Txn, keys [][]byte) error {
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// put records a change, applying the writer's durability service history
// per instance.
func (ds *durableStore) put(w *writer, cc *cacheChange) error {
	svc := w.qos.DurabilityService()
	topic := w.topic.name
	ipfx := instancePrefix(topic, cc.keyhash)

	return ds.db.Update(func(txn *badger.Txn) error {
		switch cc.kind {
		case changeUnregistered:
			return nil
		case changeDisposed, changeDisposedUnregistered:
			if svc.ServiceCleanupDelay == 0 {
				if err := deleteKeys(txn, keysWithPrefix(txn, ipfx)); err != nil {
					return err
				}
				return txn.Delete(purgeKey(topic, cc.keyhash))
			}
			if svc.ServiceCleanupDelay != qos.Infinite {
				b := make([]byte, 8)
				binary.BigEndian.PutUint64(b, uint64(time.Now().Add(svc.ServiceCleanupDelay).UnixNano()))
				if err := txn.Set(purgeKey(topic, cc.keyhash), b); err != nil {
					return err
				}
			}
		case changeAlive:
			if err := txn.Delete(purgeKey(topic, cc.keyhash)); err != nil {
				return err
			}
		}

		rec := storedSample{
			Topic:     topic,
			TypeName:  w.topic.desc.TypeName,
			Writer:    w.guid.Bytes(),
			Seq:       int64(cc.seq),
			Kind:      uint8(cc.kind),
			KeyHash:   cc.keyhash[:],
			Payload:   cc.payload,
			Timestamp: cc.ts.UnixNano(),
		}
		b, err := cdr.Marshal(&rec)
		if err != nil {
			return err
		}
		if err := txn.Set(sampleKey(topic, cc.keyhash, cc.ts, w.guid, cc.seq), b); err != nil {
			return err
		}

		depth := svc.ResourceLimits.MaxSamplesPerInstance
		if svc.History.Kind == qos.KeepLast {
			depth = svc.History.Depth
		}
		if depth == qos.LengthUnlimited {
			return nil
		}
		keys := keysWithPrefix(txn, ipfx)
		if excess := len(keys) - int(depth); excess > 0 {
			return deleteKeys(txn, keys[:excess])
		}
		return nil
	})
}

// load returns the samples stored for a topic, instance by instance in
// timestamp order.
func (ds *durableStore) load(topic string) ([]storedSample, error) {
	var recs []storedSample
	err := ds.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = topicPrefix(topic)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				var rec storedSample
				if err := cdr.Unmarshal(v, &rec); err != nil {
					return err
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return recs, err
}

// purge drops disposed instances whose cleanup delay passed.
func (ds *durableStore) purge(now time.Time) error {
	return ds.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("p/")
		it := txn.NewIterator(opts)
		var expired [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				if len(v) == 8 && now.UnixNano() >= int64(binary.BigEndian.Uint64(v)) {
					expired = append(expired, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for _, k := range expired {
			ipfx := append([]byte("s/"), bytes.TrimPrefix(k, []byte("p/"))...)
			ipfx = append(ipfx, '/')
			if err := deleteKeys(txn, keysWithPrefix(txn, ipfx)); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
			storeLog.Debugf("purged disposed instance %q", k[2:])
		}
		return nil
	})
}

func (ds *durableStore) Close() error {
	return ds.db.Close()
}
