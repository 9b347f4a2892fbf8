package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 收集日历聚合、实时状态查询和批量导入的指标，nil 时所有方法都是空操作
type Metrics struct {
	aggregation  *prometheus.HistogramVec
	liveLookups  *prometheus.CounterVec
	liveLatency  prometheus.Histogram
	importedRows *prometheus.CounterVec
}

// New 在 reg 上注册指标，reg 为 nil 时使用默认的 registerer，已经注册过的指标会被复用
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	aggregation := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calendar_aggregation_seconds",
		Help:    "Time spent aggregating a calendar window",
		Buckets: prometheus.DefBuckets,
	}, []string{"view"})
	liveLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "live_status_lookups_total",
		Help: "Live status lookups by outcome",
	}, []string{"outcome"})
	liveLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "live_status_lookup_seconds",
		Help:    "Latency of a single live status lookup",
		Buckets: prometheus.DefBuckets,
	})
	importedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_import_rows_total",
		Help: "Imported assignment rows by outcome",
	}, []string{"outcome"})

	var err error
	if aggregation, err = register(reg, aggregation); err != nil {
		return nil, err
	}
	if liveLookups, err = register(reg, liveLookups); err != nil {
		return nil, err
	}
	if liveLatency, err = register(reg, liveLatency); err != nil {
		return nil, err
	}
	if importedRows, err = register(reg, importedRows); err != nil {
		return nil, err
	}

	return &Metrics{
		aggregation:  aggregation,
		liveLookups:  liveLookups,
		liveLatency:  liveLatency,
		importedRows: importedRows,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(T), nil
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) ObserveAggregation(view string, d time.Duration) {
	if m == nil {
		return
	}
	m.aggregation.WithLabelValues(view).Observe(d.Seconds())
}

func (m *Metrics) LiveLookup(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.liveLookups.WithLabelValues(outcome).Inc()
	m.liveLatency.Observe(d.Seconds())
}

func (m *Metrics) ImportedRow(outcome string) {
	if m == nil {
		return
	}
	m.importedRows.WithLabelValues(outcome).Inc()
}
