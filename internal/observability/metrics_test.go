package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/cases", "POST", 201, 5*time.Millisecond)
	m.RecordRequest("/cases", "POST", 201, 7*time.Millisecond)
	m.RecordError("/alerts/1/resolve", "POST", "CONFLICT")
	m.RecordAlert("critical")
	m.RecordAlert("critical")
	m.RecordAlert("high")

	requests, errors, alerts := m.Snapshot()
	assert.Equal(t, int64(2), requests["/cases|POST|201"])
	assert.Equal(t, int64(1), errors["/alerts/1/resolve|POST|CONFLICT"])
	assert.Equal(t, int64(2), alerts["critical"])
	assert.Equal(t, int64(1), alerts["high"])
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	m := NewMetrics()
	m.RecordAlert("medium")
	_, _, alerts := m.Snapshot()
	alerts["medium"] = 99

	_, _, fresh := m.Snapshot()
	assert.Equal(t, int64(1), fresh["medium"])
}

func TestMetricsConcurrentRecording(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordAlert("high")
			}
		}()
	}
	wg.Wait()

	_, _, alerts := m.Snapshot()
	assert.Equal(t, int64(800), alerts["high"])
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "INTERNAL_ERROR")
	m.RecordAlert("low")
	requests, errors, alerts := m.Snapshot()
	assert.Nil(t, requests)
	assert.Nil(t, errors)
	assert.Nil(t, alerts)
}
