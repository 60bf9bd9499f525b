package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"

	"github.com/afroash/env-monitor/internal/storage"
)

const namespace = "envmon"

// gatherTimeout bounds the row counts taken on each scrape.
const gatherTimeout = 2 * time.Second

// CountSource reports table sizes; storage.Store satisfies it.
type CountSource interface {
	Counts(ctx context.Context) (*storage.Counts, error)
}

// Collector owns a private Prometheus registry holding the request counter
// and the store and stream gauges.
type Collector struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	handler  http.Handler
	logger   zerolog.Logger
}

// New creates a collector. counts and subscribers may be nil.
func New(counts CountSource, subscribers func() int, logger zerolog.Logger) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
		logger: logger,
	}
	c.registry.MustRegister(c.requests)

	if counts != nil {
		c.registry.MustRegister(newStoreCollector(counts, logger))
	}
	if subscribers != nil {
		c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Connected event stream subscribers.",
		}, func() float64 { return float64(subscribers()) }))
	}

	c.handler = promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{logger},
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	return c
}

// ObserveRequest counts one finished HTTP request.
func (c *Collector) ObserveRequest(method string, status int) {
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Gather returns the current metric families. Families without samples are
// left out.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}

// ServeHTTP writes the metrics in the format the scraper negotiates.
func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.handler.ServeHTTP(w, r)
}

// storeCollector reads row counts from the store at scrape time.
type storeCollector struct {
	counts   CountSource
	sensors  *prometheus.Desc
	readings *prometheus.Desc
	alerts   *prometheus.Desc
	logger   zerolog.Logger
}

func newStoreCollector(counts CountSource, logger zerolog.Logger) *storeCollector {
	return &storeCollector{
		counts:   counts,
		sensors:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "sensors"), "Number of registered sensors.", nil, nil),
		readings: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "readings"), "Number of stored readings.", nil, nil),
		alerts:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "alerts"), "Number of stored alerts.", nil, nil),
		logger:   logger,
	}
}

func (s *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.sensors
	ch <- s.readings
	ch <- s.alerts
}

func (s *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), gatherTimeout)
	defer cancel()

	counts, err := s.counts.Counts(ctx)
	if err != nil {
		err = fmt.Errorf("failed to count rows: %w", err)
		s.logger.Error().Err(err).Msg("Failed to gather store metrics")
		ch <- prometheus.NewInvalidMetric(s.sensors, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(s.sensors, prometheus.GaugeValue, float64(counts.Sensors))
	ch <- prometheus.MustNewConstMetric(s.readings, prometheus.GaugeValue, float64(counts.Readings))
	ch <- prometheus.MustNewConstMetric(s.alerts, prometheus.GaugeValue, float64(counts.Alerts))
}

// promLogger routes promhttp errors to zerolog.
type promLogger struct {
	logger zerolog.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
