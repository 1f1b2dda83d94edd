// Package metrics - метрики Prometheus для дампов.
//
// Метрики регистрируются в собственном реестре: CLI отправляет их
// в Pushgateway после дампа, режим serve отдает через /metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ruslano69/tdtp-mysqldump/pkg/dump"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
)

// Metrics - набор метрик дампа
type Metrics struct {
	registry *prometheus.Registry

	dumps       *prometheus.CounterVec
	rows        *prometheus.CounterVec
	statements  *prometheus.CounterVec
	bytes       prometheus.Counter
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// New создает метрики. withRuntime добавляет go_* и process_* коллекторы.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dumps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mysqldump_dumps_total",
			Help: "Total number of dumps by status and error class",
		}, []string{"status", "error_class"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mysqldump_rows_total",
			Help: "Total number of rows dumped per table",
		}, []string{"table"}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mysqldump_insert_statements_total",
			Help: "Total number of INSERT statements emitted per table",
		}, []string{"table"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mysqldump_bytes_total",
			Help: "Total uncompressed dump text written",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mysqldump_duration_seconds",
			Help:    "Dump duration",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mysqldump_last_success_timestamp_seconds",
			Help: "Unix time of the last successful dump",
		}),
	}

	m.registry.MustRegister(m.dumps, m.rows, m.statements, m.bytes, m.duration, m.lastSuccess)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// ObserveTable учитывает выгруженную таблицу
func (m *Metrics) ObserveTable(s dump.TableStats) {
	if s.Skipped {
		return
	}
	m.rows.WithLabelValues(s.Name).Add(float64(s.Rows))
	m.statements.WithLabelValues(s.Name).Add(float64(s.Statements))
}

// ObserveDump учитывает итог дампа. res может быть nil.
func (m *Metrics) ObserveDump(res *dump.Result, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.dumps.WithLabelValues(status, dumperr.Class(err)).Inc()

	if res == nil {
		return
	}
	m.bytes.Add(float64(res.Bytes))
	m.duration.Observe(res.Duration().Seconds())
	if err == nil {
		m.lastSuccess.Set(float64(res.Finished.Unix()))
	}
}

// Registry возвращает реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler - обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push отправляет метрики в Pushgateway (замещая группу job)
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return dumperr.Connection("push metrics", err)
	}
	return nil
}
