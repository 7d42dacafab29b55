package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scusemua/notebook-runtime/common/client"
)

// poolCollector exports the Stats of every registered connection pool.
type poolCollector struct {
	mu    sync.RWMutex
	pools map[string]func() client.Stats

	calls             *prometheus.Desc
	transportFailures *prometheus.Desc
	created           *prometheus.Desc
	discarded         *prometheus.Desc
	idle              *prometheus.Desc
}

func newPoolCollector() *poolCollector {
	labels := []string{"pool"}
	return &poolCollector{
		pools:             make(map[string]func() client.Stats),
		calls:             prometheus.NewDesc(namespace+"_pool_calls_total", "Calls made through a connection pool.", labels, nil),
		transportFailures: prometheus.NewDesc(namespace+"_pool_transport_failures_total", "Calls that failed at the transport level.", labels, nil),
		created:           prometheus.NewDesc(namespace+"_pool_connections_created_total", "Connections created by a pool.", labels, nil),
		discarded:         prometheus.NewDesc(namespace+"_pool_connections_discarded_total", "Connections discarded after a transport failure.", labels, nil),
		idle:              prometheus.NewDesc(namespace+"_pool_connections_idle", "Idle connections of a pool.", labels, nil),
	}
}

func (c *poolCollector) add(name string, stats func() client.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pools[name] = stats
}

func (c *poolCollector) remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pools, name)
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.transportFailures
	ch <- c.created
	ch <- c.discarded
	ch <- c.idle
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, statsFn := range c.pools {
		stats := statsFn()
		ch <- prometheus.MustNewConstMetric(c.calls, prometheus.CounterValue, float64(stats.Calls), name)
		ch <- prometheus.MustNewConstMetric(c.transportFailures, prometheus.CounterValue, float64(stats.TransportFailures), name)
		ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(stats.Created), name)
		ch <- prometheus.MustNewConstMetric(c.discarded, prometheus.CounterValue, float64(stats.Discarded), name)
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stats.Idle), name)
	}
}
