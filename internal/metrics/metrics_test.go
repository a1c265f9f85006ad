package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordForward(t *testing.T) {
	before := testutil.ToFloat64(forwards.WithLabelValues(ForwardResultFailed))
	RecordForward(ForwardResultFailed)
	RecordForward(ForwardResultFailed)

	assert.InDelta(t, before+2, testutil.ToFloat64(forwards.WithLabelValues(ForwardResultFailed)), 0.001)
}

func TestRecordForwardAttempt(t *testing.T) {
	before := testutil.ToFloat64(forwardAttempts)
	RecordForwardAttempt()

	assert.InDelta(t, before+1, testutil.ToFloat64(forwardAttempts), 0.001)
}

func TestObserveHTTP(t *testing.T) {
	counter := httpReqs.WithLabelValues("GET", "/health", "200")
	before := testutil.ToFloat64(counter)

	ObserveHTTP("GET", "/health", 200, 15*time.Millisecond)

	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0.001)
}
