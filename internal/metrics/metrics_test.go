package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cvperfect-sessions/internal/session"
)

func TestCollector_RegistersWithoutPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	require.NotNil(t, c)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "cvperfect_session_saves_total")
	assert.Contains(t, names, "cvperfect_sessions_swept_total")
	assert.Contains(t, names, "cvperfect_session_lookup_latency_seconds")
}

func TestCollector_CountsSavesAndSweeps(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSave()
	c.RecordSave()
	c.RecordSaveFailure()
	c.RecordSwept(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.saves))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.saveFailures))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.swept))
}

func TestCollector_ClassifiesLookupErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"invalid format", session.ErrInvalidIDFormat, "invalid_format"},
		{"expired", session.ErrExpired, "expired"},
		{"not found", session.ErrNotFound, "not_found"},
		{"unavailable", session.Unavailable(fmt.Errorf("connection refused")), "unavailable"},
		{"unclassified", fmt.Errorf("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			c := NewCollector(reg)

			c.RecordLookupError(tt.err)

			got := testutil.ToFloat64(c.lookups.WithLabelValues(tt.outcome))
			assert.Equal(t, float64(1), got)
		})
	}
}

func TestCollector_CountsRecoveriesBySource(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRecovery("store")
	c.RecordRecovery("store")
	c.RecordRecovery("mirror")
	c.RecordRecovery("none")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.recoveries.WithLabelValues("store")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.recoveries.WithLabelValues("mirror")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.recoveries.WithLabelValues("none")))
}

func TestCollector_ObservesLookupLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLookupLatency(5 * time.Millisecond)
	c.RecordLookupLatency(20 * time.Millisecond)

	count := testutil.CollectAndCount(c.lookupLatency)
	assert.Equal(t, 1, count)
}
