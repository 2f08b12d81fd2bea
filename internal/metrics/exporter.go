// Package metrics collects invocation outcome counters and renders them in
// Prometheus/OpenMetrics exposition format.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kartikbazzad/sharddb/internal/types"
)

// Exporter accumulates per-procedure invocation outcomes.
type Exporter struct {
	mu sync.RWMutex

	// procedure -> terminal status -> count
	invocationsTotal map[string]map[string]uint64

	// procedure -> recent durations in seconds
	invocationDurations map[string][]float64
}

func NewExporter() *Exporter {
	return &Exporter{
		invocationsTotal:    make(map[string]map[string]uint64),
		invocationDurations: make(map[string][]float64),
	}
}

// RecordInvocation records one terminal invocation outcome.
func (e *Exporter) RecordInvocation(procedure string, status types.StatusCode, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.invocationsTotal[procedure] == nil {
		e.invocationsTotal[procedure] = make(map[string]uint64)
	}
	e.invocationsTotal[procedure][status.String()]++

	durations := append(e.invocationDurations[procedure], duration.Seconds())
	// Keep only the last 1000 durations per procedure
	if len(durations) > 1000 {
		durations = durations[len(durations)-1000:]
	}
	e.invocationDurations[procedure] = durations
}

// Export renders the counters plus an engine snapshot in exposition format.
func (e *Exporter) Export(stats *types.Stats) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP sharddb_invocations_total Total invocations by procedure and terminal status\n")
	b.WriteString("# TYPE sharddb_invocations_total counter\n")
	for _, procedure := range sortedKeys(e.invocationsTotal) {
		statuses := e.invocationsTotal[procedure]
		for _, status := range sortedKeys(statuses) {
			fmt.Fprintf(&b, "sharddb_invocations_total{procedure=%q,status=%q} %d\n",
				procedure, status, statuses[status])
		}
	}

	b.WriteString("# HELP sharddb_invocation_duration_seconds Invocation duration in seconds\n")
	b.WriteString("# TYPE sharddb_invocation_duration_seconds summary\n")
	for _, procedure := range sortedKeys(e.invocationDurations) {
		durations := e.invocationDurations[procedure]
		if len(durations) == 0 {
			continue
		}

		var sum float64
		min, max := durations[0], durations[0]
		for _, d := range durations {
			sum += d
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}

		// The mean is _sum over _count; only true quantiles carry the label.
		fmt.Fprintf(&b, "sharddb_invocation_duration_seconds{procedure=%q,quantile=\"0\"} %f\n", procedure, min)
		fmt.Fprintf(&b, "sharddb_invocation_duration_seconds{procedure=%q,quantile=\"1\"} %f\n", procedure, max)
		fmt.Fprintf(&b, "sharddb_invocation_duration_seconds_sum{procedure=%q} %f\n", procedure, sum)
		fmt.Fprintf(&b, "sharddb_invocation_duration_seconds_count{procedure=%q} %d\n", procedure, len(durations))
	}

	b.WriteString("# HELP sharddb_procedures Registered procedures\n")
	b.WriteString("# TYPE sharddb_procedures gauge\n")
	fmt.Fprintf(&b, "sharddb_procedures %d\n", stats.Procedures)

	b.WriteString("# HELP sharddb_partitions Partition count\n")
	b.WriteString("# TYPE sharddb_partitions gauge\n")
	fmt.Fprintf(&b, "sharddb_partitions %d\n", stats.Partitions)

	b.WriteString("# HELP sharddb_topology_version Current topology version\n")
	b.WriteString("# TYPE sharddb_topology_version gauge\n")
	fmt.Fprintf(&b, "sharddb_topology_version %d\n", stats.TopologyVersion)

	b.WriteString("# HELP sharddb_retries_total Transparent routing retries\n")
	b.WriteString("# TYPE sharddb_retries_total counter\n")
	fmt.Fprintf(&b, "sharddb_retries_total %d\n", stats.Retries)

	b.WriteString("# HELP sharddb_timeouts_total Invocations that exhausted their budget\n")
	b.WriteString("# TYPE sharddb_timeouts_total counter\n")
	fmt.Fprintf(&b, "sharddb_timeouts_total %d\n", stats.Timeouts)

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
