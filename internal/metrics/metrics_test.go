package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDispatch_Counters(t *testing.T) {
	m := New()
	m.Handled("agents-status-update", time.Millisecond)
	m.Handled("agents-status-update", 2*time.Millisecond)
	m.Dropped(ReasonMalformed)
	m.Dropped("")
	m.Sent("get-agents-status")

	require.Equal(t, 2.0, testutil.ToFloat64(m.handled.WithLabelValues("agents-status-update")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(ReasonMalformed)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("unknown")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sent.WithLabelValues("get-agents-status")))

	require.Equal(t, 2.0, m.HandledCount("agents-status-update"))
	require.Equal(t, 1.0, m.DroppedCount(ReasonMalformed))
	require.Equal(t, 1.0, m.SentCount("get-agents-status"))
	require.Zero(t, m.SentCount("never-sent"))
}

func TestDispatch_NilIsNoop(t *testing.T) {
	var m *Dispatch
	require.NotPanics(t, func() {
		m.Handled("x", time.Second)
		m.Dropped(ReasonNoHandler)
		m.Sent("x")
	})
	require.Nil(t, m.Registry())
	require.Zero(t, m.HandledCount("x"))

	samples, err := m.Summary()
	require.NoError(t, err)
	require.Nil(t, samples)
}

func TestDispatch_Summary(t *testing.T) {
	m := New()
	m.Handled("error", time.Millisecond)
	m.Dropped(ReasonNoHandler)

	samples, err := m.Summary()
	require.NoError(t, err)

	byName := map[string]Sample{}
	for _, s := range samples {
		byName[s.Name] = s
	}
	require.Equal(t, 1.0, byName["agentpanel_envelopes_handled_total"].Value)
	require.Equal(t, map[string]string{"kind": "error"}, byName["agentpanel_envelopes_handled_total"].Label)
	require.Equal(t, 1.0, byName["agentpanel_envelopes_dropped_total"].Value)
	require.Equal(t, 1.0, byName["agentpanel_handler_duration_seconds"].Value)
	_, hasSent := byName["agentpanel_outbound_sent_total"]
	require.False(t, hasSent, "vectors without children are not gathered")
}
