// Package metrics generalizes the teacher's api/metrics package
// (Registry/Registerer over prometheus.Registerer+Gatherer, the
// Averager helper in engines/linear/chain/poll) from generic consensus
// bookkeeping to the counters the five core components need: tx
// admitted/rejected, cycles used, blocks committed, sync lag, and
// bucket-rebuild latency.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registerer is the registration half of a prometheus registry.
type Registerer interface {
	prometheus.Registerer
}

// Registry is a full prometheus registry: registerable and gatherable,
// matching the teacher's api/metrics.Registry.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry creates a fresh prometheus-backed Registry.
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// Averager tracks a running average of observed values.
type Averager interface {
	Observe(value float64)
	Read() float64
}

type averager struct {
	mu        sync.RWMutex
	sum       float64
	count     float64
	promCount prometheus.Counter
	promSum   prometheus.Gauge
}

// NewAverager registers a count/sum pair under reg, mirroring the
// teacher's engines/linear/chain/poll.metric.NewAverager signature.
func NewAverager(name, help string, reg prometheus.Registerer) (Averager, error) {
	count := prometheus.NewCounter(prometheus.CounterOpts{Name: name + "_count", Help: "Total # of observations of " + help})
	sum := prometheus.NewGauge(prometheus.GaugeOpts{Name: name + "_sum", Help: "Sum of " + help})
	if err := reg.Register(count); err != nil {
		return nil, err
	}
	if err := reg.Register(sum); err != nil {
		return nil, err
	}
	return &averager{promCount: count, promSum: sum}, nil
}

func (a *averager) Observe(value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sum += value
	a.count++
	a.promCount.Inc()
	a.promSum.Add(value)
}

func (a *averager) Read() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return 0
	}
	return a.sum / a.count
}

// NodeMetrics is the concrete set of counters/gauges/averagers the node
// wires into each core component at startup.
type NodeMetrics struct {
	TxAdmitted   prometheus.Counter
	TxRejected   prometheus.Counter
	CyclesUsed   prometheus.Counter
	BlocksCommitted prometheus.Counter
	SyncLagHeight   prometheus.Gauge
	BucketRebuild   Averager
}

// NewNodeMetrics registers every core-component metric under namespace
// and returns the handles components hold onto directly, following the
// teacher's pattern of a single constructor registering a related
// family of collectors (api/metrics.NewMetrics).
func NewNodeMetrics(namespace string, reg Registerer) (*NodeMetrics, error) {
	m := &NodeMetrics{
		TxAdmitted:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "mempool_tx_admitted_total", Help: "Transactions accepted into the mempool."}),
		TxRejected:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "mempool_tx_rejected_total", Help: "Transactions rejected at admission."}),
		CyclesUsed:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "executor_cycles_used_total", Help: "Cycles consumed by executed transactions."}),
		BlocksCommitted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "consensus_blocks_committed_total", Help: "Blocks committed by this node."}),
		SyncLagHeight:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sync_lag_height", Help: "Remote height minus local committed height."}),
	}
	for _, c := range []prometheus.Collector{m.TxAdmitted, m.TxRejected, m.CyclesUsed, m.BlocksCommitted, m.SyncLagHeight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}
	avg, err := NewAverager(namespace+"_state_bucket_rebuild_seconds", "bucket rebuild latency in seconds", reg)
	if err != nil {
		return nil, err
	}
	m.BucketRebuild = avg
	return m, nil
}
