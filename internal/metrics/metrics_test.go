package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FrameReceived("notification")
		m.DecodeError()
		m.ReconnectScheduled()
		m.SetConnectionState(2)
		m.SetUnread(3)
		m.ObserveFetch("bulk_fetch", time.Now(), nil)
	})
}

func TestCollectors(t *testing.T) {
	m := New()

	m.FrameReceived("notification")
	m.FrameReceived("notification")
	m.FrameReceived("transaction.success")
	m.ReconnectScheduled()
	m.SetUnread(4)
	m.ObserveFetch("reconcile", time.Now(), errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesReceived.WithLabelValues("notification")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconnectsScheduled))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.unread))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `notifier_frames_received_total{type="transaction.success"} 1`))
	assert.True(t, strings.Contains(string(body), `notifier_fetch_duration_seconds_count{operation="reconcile",status="error"} 1`))
}
