package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "acw"

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	recordsIngested prometheus.Counter
	sourceErrors    *prometheus.CounterVec

	// Pairing metrics
	slotsOpened    prometheus.Counter
	slotsClosed    prometheus.Counter
	skippedOpeners prometheus.Counter
	ignoredRecords prometheus.Counter
	invalidGaps    prometheus.Counter

	// Report metrics
	reportsTotal   prometheus.Counter
	reportDuration prometheus.Histogram
	serviceAverage *prometheus.GaugeVec
	lastReportUnix prometheus.Gauge

	// WebSocket metrics
	websocketConnections prometheus.Gauge
	websocketMessages    prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	mu sync.Mutex
}

var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates a Metrics with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		recordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_ingested_total",
			Help: "Transaction records loaded from record sources.",
		}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "source_errors_total",
			Help: "Failed record source reads.",
		}, []string{"source"}),

		slotsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slots_opened_total",
			Help: "Daily agent slots opened by a completed transaction.",
		}),
		slotsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "slots_closed_total",
			Help: "Daily agent slots closed by the following transaction.",
		}),
		skippedOpeners: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "skipped_openers_total",
			Help: "First transactions of a day that were not completed.",
		}),
		ignoredRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ignored_records_total",
			Help: "Transactions after a slot was closed or never opened.",
		}),
		invalidGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invalid_gaps_total",
			Help: "Closed slots whose timestamps could not be parsed.",
		}),

		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reports_total",
			Help: "Reports built.",
		}),
		reportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "report_duration_seconds",
			Help:    "Time to build a report, source read included.",
			Buckets: prometheus.DefBuckets,
		}),
		serviceAverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "service_average_seconds",
			Help: "Average after-call work per service in the latest report.",
		}, []string{"service"}),
		lastReportUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_report_timestamp_seconds",
			Help: "Unix time of the latest report.",
		}),

		websocketConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "websocket_active_connections",
			Help: "Connected dashboard clients.",
		}),
		websocketMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "websocket_messages_total",
			Help: "Widgets sent to dashboard clients.",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"endpoint", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recordsIngested,
		m.sourceErrors,
		m.slotsOpened,
		m.slotsClosed,
		m.skippedOpeners,
		m.ignoredRecords,
		m.invalidGaps,
		m.reportsTotal,
		m.reportDuration,
		m.serviceAverage,
		m.lastReportUnix,
		m.websocketConnections,
		m.websocketMessages,
		m.httpRequests,
		m.httpRequestDuration,
	)

	return m
}

// PairingCounts mirrors pairing.Stats without importing it
type PairingCounts struct {
	Opened, Closed, SkippedOpeners, Ignored, InvalidGaps int
}

// RecordIngested adds n loaded records
func (m *Metrics) RecordIngested(n int) {
	m.recordsIngested.Add(float64(n))
}

// RecordSourceError increments the error counter for a source kind
func (m *Metrics) RecordSourceError(source string) {
	m.sourceErrors.WithLabelValues(source).Inc()
}

// RecordPairing adds the outcome of one pairing pass
func (m *Metrics) RecordPairing(c PairingCounts) {
	m.slotsOpened.Add(float64(c.Opened))
	m.slotsClosed.Add(float64(c.Closed))
	m.skippedOpeners.Add(float64(c.SkippedOpeners))
	m.ignoredRecords.Add(float64(c.Ignored))
	m.invalidGaps.Add(float64(c.InvalidGaps))
}

// RecordReport records a built report and replaces the per-service gauges
func (m *Metrics) RecordReport(duration time.Duration, generatedAt time.Time, averages map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reportsTotal.Inc()
	m.reportDuration.Observe(duration.Seconds())
	m.lastReportUnix.Set(float64(generatedAt.Unix()))

	m.serviceAverage.Reset()
	for service, avg := range averages {
		m.serviceAverage.WithLabelValues(service).Set(float64(avg))
	}
}

// RecordWebSocketConnect increments the active connection gauge
func (m *Metrics) RecordWebSocketConnect() {
	m.websocketConnections.Inc()
}

// RecordWebSocketDisconnect decrements the active connection gauge
func (m *Metrics) RecordWebSocketDisconnect() {
	m.websocketConnections.Dec()
}

// RecordWebSocketMessage increments the sent widget counter
func (m *Metrics) RecordWebSocketMessage() {
	m.websocketMessages.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
