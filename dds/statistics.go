package dds

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liamstask/go-dds/rtps"
)

type Stat = rtps.Stat

// Statistics is a refreshable snapshot of the counters of a reader or
// writer.
type Statistics struct {
	entity Entity
	snap   *rtps.Statistics
}

// NewStatistics takes a first snapshot of e's counters.
func NewStatistics(e Entity) (*Statistics, error) {
	st := &Statistics{entity: e}
	if err := st.Refresh(); err != nil {
		return nil, err
	}
	return st, nil
}

// Refresh replaces the snapshot with the current counters.
func (s *Statistics) Refresh() error {
	snap, rc := rtps.GetStatistics(s.entity.raw())
	if err := check("statistics", rc); err != nil {
		return err
	}
	s.snap = snap
	return nil
}

// Lookup returns the named counter from the last snapshot.
func (s *Statistics) Lookup(name string) (uint64, bool) {
	return s.snap.Lookup(name)
}

func (s *Statistics) Time() time.Time {
	return s.snap.Time
}

// Opaque returns the instance handle of the entity the counters belong to.
func (s *Statistics) Opaque() InstanceHandle {
	return s.snap.Opaque
}

func (s *Statistics) Values() []Stat {
	return append([]Stat(nil), s.snap.Values...)
}

// gauges are the counters that can go down.
var gauges = map[string]bool{
	"unacked_count": true,
}

// StatisticsCollector exports the counters of readers and writers to
// Prometheus. Entities that have been deleted are dropped on the next
// collection.
type StatisticsCollector struct {
	mu       sync.Mutex
	entities map[rtps.Entity]Entity

	counter *prometheus.Desc
	gauge   *prometheus.Desc
}

// NewStatisticsCollector returns a collector whose metrics are prefixed
// with namespace.
func NewStatisticsCollector(namespace string) *StatisticsCollector {
	labels := []string{"kind", "topic", "handle", "stat"}
	return &StatisticsCollector{
		entities: make(map[rtps.Entity]Entity),
		counter: prometheus.NewDesc(prometheus.BuildFQName(namespace, "entity", "statistic_total"),
			"DDS reader and writer counters.", labels, nil),
		gauge: prometheus.NewDesc(prometheus.BuildFQName(namespace, "entity", "statistic"),
			"DDS reader and writer levels.", labels, nil),
	}
}

// Add starts exporting the counters of a reader or writer.
func (c *StatisticsCollector) Add(e Entity) error {
	if k := e.Kind(); k != KindReader && k != KindWriter {
		return &Error{Op: "add statistics", Code: RetcodeIllegalOperation}
	}
	c.mu.Lock()
	c.entities[e.raw()] = e
	c.mu.Unlock()
	return nil
}

func (c *StatisticsCollector) Remove(e Entity) {
	c.mu.Lock()
	delete(c.entities, e.raw())
	c.mu.Unlock()
}

func (c *StatisticsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.counter
	ch <- c.gauge
}

func (c *StatisticsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, e := range c.entities {
		st, err := NewStatistics(e)
		if errors.Is(err, RetcodeAlreadyDeleted) {
			delete(c.entities, h)
			continue
		}
		if err != nil {
			log.Debugf("collecting statistics of %d: %s", h, err)
			continue
		}
		topic := ""
		if t, err := e.Topic(); err == nil {
			topic = t.Name()
		}
		handle := strconv.FormatInt(int64(h), 10)
		for _, v := range st.snap.Values {
			desc, vt := c.counter, prometheus.CounterValue
			if gauges[v.Name] {
				desc, vt = c.gauge, prometheus.GaugeValue
			}
			ch <- prometheus.MustNewConstMetric(desc, vt, float64(v.Value), e.Kind().String(), topic, handle, v.Name)
		}
	}
}
