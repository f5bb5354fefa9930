package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestMustRegisterTo(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegisterTo(reg)
	assert.Panics(t, func() { MustRegisterTo(reg) })

	ObserveHTTP("GET /api/v1/items", "200", 15*time.Millisecond)
	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["renit_http_requests_total"])
	assert.True(t, names["renit_http_request_duration_seconds"])
	assert.True(t, names["renit_chat_streams_open"])
}

func TestBookingCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingOutcomes.WithLabelValues("create", "overlap"))
	IncBooking("create", "overlap")
	assert.Equal(t, before+1, testutil.ToFloat64(bookingOutcomes.WithLabelValues("create", "overlap")))

	beforeStore := testutil.ToFloat64(overlapRejections.WithLabelValues("store"))
	IncOverlap("store")
	IncOverlap("store")
	assert.Equal(t, beforeStore+2, testutil.ToFloat64(overlapRejections.WithLabelValues("store")))
}

func TestRelayAndSyncCounters(t *testing.T) {
	dropped := testutil.ToFloat64(relayDeliveries.WithLabelValues("dropped"))
	IncRelay("dropped")
	assert.Equal(t, dropped+1, testutil.ToFloat64(relayDeliveries.WithLabelValues("dropped")))

	failed := testutil.ToFloat64(syncTasks.WithLabelValues("failed"))
	IncSyncTask("failed")
	assert.Equal(t, failed+1, testutil.ToFloat64(syncTasks.WithLabelValues("failed")))
}

func TestTrackChatStream(t *testing.T) {
	base := testutil.ToFloat64(chatStreams)

	done := TrackChatStream()
	assert.Equal(t, base+1, testutil.ToFloat64(chatStreams))

	done()
	done()
	assert.Equal(t, base, testutil.ToFloat64(chatStreams))
}
