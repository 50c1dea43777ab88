// File: internal/observability/metrics.go
package observability

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/xkilldash9x/domtree/internal/arena"
)

// StatsSource is anything that reports arena occupancy under a stable identity.
// *dom.Tree satisfies it.
type StatsSource interface {
	ID() uuid.UUID
	Stats() arena.Stats
}

// ArenaCollector exports the last recorded arena statistics of each tree.
// Recording copies the numbers, so a tree may keep mutating while a scrape runs.
type ArenaCollector struct {
	mu     sync.Mutex
	latest map[uuid.UUID]arena.Stats

	live     *prometheus.Desc
	free     *prometheus.Desc
	retired  *prometheus.Desc
	allocs   *prometheus.Desc
	deallocs *prometheus.Desc
}

var _ prometheus.Collector = (*ArenaCollector)(nil)

// NewArenaCollector creates a collector whose metric names start with namespace,
// "domtree" when empty.
func NewArenaCollector(namespace string) *ArenaCollector {
	if namespace == "" {
		namespace = "domtree"
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "arena", name), help, []string{"tree"}, nil)
	}
	return &ArenaCollector{
		latest:   make(map[uuid.UUID]arena.Stats),
		live:     desc("live_nodes", "Nodes currently allocated in the tree arena."),
		free:     desc("free_slots", "Slots waiting on the free list for reuse."),
		retired:  desc("retired_slots", "Slots whose generation counter is exhausted."),
		allocs:   desc("allocs_total", "Node allocations since the tree was created."),
		deallocs: desc("deallocs_total", "Node deallocations since the tree was created."),
	}
}

// Record snapshots src's current statistics.
func (c *ArenaCollector) Record(src StatsSource) {
	stats := src.Stats()
	c.mu.Lock()
	c.latest[src.ID()] = stats
	c.mu.Unlock()
}

// Forget drops a tree's series.
func (c *ArenaCollector) Forget(id uuid.UUID) {
	c.mu.Lock()
	delete(c.latest, id)
	c.mu.Unlock()
}

func (c *ArenaCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.live
	ch <- c.free
	ch <- c.retired
	ch <- c.allocs
	ch <- c.deallocs
}

func (c *ArenaCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.latest {
		tree := id.String()
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.Live), tree)
		ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(s.Free), tree)
		ch <- prometheus.MustNewConstMetric(c.retired, prometheus.GaugeValue, float64(s.Retired), tree)
		ch <- prometheus.MustNewConstMetric(c.allocs, prometheus.CounterValue, float64(s.Allocs), tree)
		ch <- prometheus.MustNewConstMetric(c.deallocs, prometheus.CounterValue, float64(s.Deallocs), tree)
	}
}

// WriteSnapshot gathers g and writes it in the Prometheus text exposition format.
func WriteSnapshot(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
