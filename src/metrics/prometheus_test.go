package metrics

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

const url = "http://localhost:9999"
const verySlow = time.Hour // Long duration so it never actually reports anything.

func TestNoMetrics(t *testing.T) {
	m := initMetrics(url, verySlow, time.Second)
	assert.Equal(t, 0, m.errors)
	assert.Equal(t, 0, m.pushes)
	m.stop()
	assert.Equal(t, 0, m.errors, "Stop should not push when there aren't metrics")
}

func TestSomeMetrics(t *testing.T) {
	m := initMetrics(url, verySlow, time.Second)
	m.record(Document, Success, 3, time.Millisecond)
	m.stop()
	assert.Equal(t, 1, m.errors, "Stop should push once more when there are metrics")
}

func TestOutcomes(t *testing.T) {
	m := initMetrics(url, verySlow, time.Second)
	m.record(Document, Success, 3, time.Millisecond)
	m.record(Document, Success, 2, time.Millisecond)
	m.record(Workspace, Success, 10, time.Second)
	m.record(Document, InvalidCommand, 0, time.Millisecond)
	m.record(Document, EmptyOutput, 0, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(Document, Success)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(Document, InvalidCommand)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.issues.WithLabelValues(Document)))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.issues.WithLabelValues(Workspace)))
	m.ticker.Stop()
}

func TestPushAttempts(t *testing.T) {
	m := initMetrics(url, 1, time.Second) // Fast push attempts
	m.record(Workspace, Success, 1, time.Millisecond)
	time.Sleep(200 * time.Millisecond) // Not ideal but should be heaps of time for it to attempt pushes.
	m.mutex.Lock()
	defer m.mutex.Unlock()
	assert.Equal(t, maxErrors, m.errors)
	assert.True(t, m.cancelled)
}

func TestPush(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/metrics/job/credo_langserver")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	m := initMetrics(server.URL, verySlow, time.Second)
	m.record(Document, Success, 1, time.Millisecond)
	m.stop()
	assert.Equal(t, 0, m.errors)
	assert.Equal(t, 1, m.pushes)
	assert.EqualValues(t, 1, atomic.LoadInt32(&requests))
}
