// Package metrics contains support for reporting metrics about lint runs to a Prometheus
// pushgateway. The language server talks over stdio and has no HTTP surface for Prometheus
// to scrape, so like the tools it runs alongside we push rather than wait to be pulled.
package metrics

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("metrics")

// This is the maximum number of errors after which we will stop attempting to send metrics.
const maxErrors = 3

// jobName is the job we push metrics under.
const jobName = "credo_langserver"

// Kinds of lint run.
const (
	Document  = "document"
	Workspace = "workspace"
)

// Outcomes of a lint run.
const (
	Success        = "success"
	InvalidCommand = "invalid_command"
	StartFailure   = "start_failure"
	EmptyOutput    = "empty_output"
	ParseFailure   = "parse_failure"
)

type metrics struct {
	url        string
	newMetrics bool
	ticker     *time.Ticker
	cancelled  bool
	errors     int
	pushes     int
	timeout    time.Duration
	client     *retryablehttp.Client
	registry   *prometheus.Registry
	runs       *prometheus.CounterVec
	issues     *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	mutex      sync.Mutex
}

// m is the singleton metrics instance.
var m *metrics

// Init sets up metrics pushing to the given pushgateway URL. Nothing is recorded if it's never called.
func Init(url string, frequency, timeout time.Duration) {
	if url != "" {
		m = initMetrics(url, frequency, timeout)
	}
}

// initMetrics initialises a new metrics instance.
// This is deliberately not exposed but is useful for testing.
func initMetrics(url string, frequency, timeout time.Duration) *metrics {
	hostname, err := os.Hostname()
	if err != nil {
		log.Warning("Can't determine hostname for metrics: %s", err)
		hostname = "unknown"
	}
	constLabels := prometheus.Labels{
		"host": hostname,
		"arch": runtime.GOOS + "_" + runtime.GOARCH,
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = timeout / 2
	client.Logger = nil
	m := &metrics{
		url:      url,
		client:   client,
		timeout:  timeout,
		ticker:   time.NewTicker(frequency),
		registry: prometheus.NewRegistry(),
	}
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "credo_lint_runs",
		Help:        "Count of Credo runs, by kind of run and outcome",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})
	m.issues = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "credo_issues",
		Help:        "Count of issues reported by Credo, by kind of run",
		ConstLabels: constLabels,
	}, []string{"kind"})
	m.durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "credo_lint_duration_seconds",
		Help:        "Time taken by Credo runs, including any pre-compile step",
		Buckets:     prometheus.ExponentialBuckets(0.1, 2, 10),
		ConstLabels: constLabels,
	}, []string{"kind"})
	m.registry.MustRegister(m.runs, m.issues, m.durations)
	go m.keepPushing()
	return m
}

// Stop shuts down the metrics and ensures the final ones are sent before returning.
func Stop() {
	if m != nil {
		m.stop()
	}
}

func (m *metrics) stop() {
	m.ticker.Stop()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.cancelled {
		m.errors = m.pushMetrics()
	}
}

// Record records the result of a single lint run.
func Record(kind, outcome string, issues int, duration time.Duration) {
	if m != nil {
		m.record(kind, outcome, issues, duration)
	}
}

func (m *metrics) record(kind, outcome string, issues int, duration time.Duration) {
	m.runs.WithLabelValues(kind, outcome).Inc()
	if outcome == Success {
		m.issues.WithLabelValues(kind).Add(float64(issues))
		m.durations.WithLabelValues(kind).Observe(duration.Seconds())
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.newMetrics = true
}

func (m *metrics) keepPushing() {
	for range m.ticker.C {
		m.mutex.Lock()
		m.errors = m.pushMetrics()
		if m.errors >= maxErrors {
			log.Warning("Metrics don't seem to be working, giving up")
			m.cancelled = true
			m.mutex.Unlock()
			return
		}
		m.mutex.Unlock()
	}
}

// deadline applies a deadline to an arbitrary function and returns when either the function
// completes or the deadline expires.
func deadline(f func() error, timeout time.Duration) error {
	c := make(chan error, 1)
	go func() {
		c <- f()
	}()
	select {
	case err := <-c:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("metrics push timed out")
	}
}

// pushMetrics attempts to send some new metrics to the server. It returns the new number of errors.
// The caller must hold the mutex.
func (m *metrics) pushMetrics() int {
	if !m.newMetrics {
		return m.errors
	}
	start := time.Now()
	m.newMetrics = false
	if err := deadline(func() error {
		return push.New(m.url, jobName).Client(m.client.StandardClient()).Gatherer(m.registry).Add()
	}, m.timeout); err != nil {
		log.Warning("Could not push metrics to %s: %s", m.url, err)
		m.newMetrics = true
		return m.errors + 1
	}
	m.pushes++
	log.Debug("Push #%d of metrics in %0.3fs", m.pushes, time.Since(start).Seconds())
	return 0
}
