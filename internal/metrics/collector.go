package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/snarg/lecturescribe/internal/scheduler"
)

// ProgressSource provides the collector access to run state.
type ProgressSource interface {
	Snapshot() scheduler.Progress
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool     *pgxpool.Pool
	progress ProgressSource

	running         *prometheus.Desc
	lanes           *prometheus.Desc
	planned         *prometheus.Desc
	done            *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil when no run ledger is configured.
func NewCollector(pool *pgxpool.Pool, progress ProgressSource) *Collector {
	gauge := func(subsystem, name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &Collector{
		pool:            pool,
		progress:        progress,
		running:         gauge("run", "running", "1 while a run is in progress."),
		lanes:           gauge("run", "lanes", "Lanes in the current run."),
		planned:         gauge("run", "lectures_planned", "Lectures scheduled in the current run."),
		done:            gauge("run", "lectures_done", "Lectures finished in the current run."),
		dbTotalConns:    gauge("db_pool", "total_conns", "Total database pool connections."),
		dbAcquiredConns: gauge("db_pool", "acquired_conns", "Database pool connections currently in use."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.running
	ch <- c.lanes
	ch <- c.planned
	ch <- c.done
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var p scheduler.Progress
	if c.progress != nil {
		p = c.progress.Snapshot()
	}
	running := 0.0
	if p.Running {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running)
	ch <- prometheus.MustNewConstMetric(c.lanes, prometheus.GaugeValue, float64(p.Lanes))
	ch <- prometheus.MustNewConstMetric(c.planned, prometheus.GaugeValue, float64(p.Total))
	ch <- prometheus.MustNewConstMetric(c.done, prometheus.GaugeValue, float64(p.Done))

	var total, acquired int32
	if c.pool != nil {
		stat := c.pool.Stat()
		total, acquired = stat.TotalConns(), stat.AcquiredConns()
	}
	ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(total))
	ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(acquired))
}
