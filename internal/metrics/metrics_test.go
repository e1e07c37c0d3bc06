package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"imageguard/internal/core"
)

func TestCollector_RecordSuccessUpdatesAverages(t *testing.T) {
	c := NewCollectorWith(prometheus.NewRegistry())
	risk := 0.1
	c.RecordSuccess(100*time.Millisecond, &core.AggregateResult{Classification: core.Safe, RiskScore: risk})
	c.RecordSuccess(300*time.Millisecond, &core.AggregateResult{Classification: core.Suspicious, RiskScore: risk})

	assert.EqualValues(t, 2, c.GetRequestsTotal())
	assert.Equal(t, 200*time.Millisecond, c.GetAverageLatency())
}

func TestCollector_RecordFailureCountsTowardTotal(t *testing.T) {
	c := NewCollectorWith(prometheus.NewRegistry())
	c.RecordFailure(50 * time.Millisecond)
	assert.EqualValues(t, 1, c.GetRequestsTotal())
	assert.Equal(t, 50*time.Millisecond, c.GetAverageLatency())
}

func TestCollector_GetAverageLatencyZeroWhenNoRequests(t *testing.T) {
	c := NewCollectorWith(prometheus.NewRegistry())
	assert.Equal(t, time.Duration(0), c.GetAverageLatency())
}

func TestCollector_RecordModuleDoesNotPanic(t *testing.T) {
	c := NewCollectorWith(prometheus.NewRegistry())
	assert.NotPanics(t, func() {
		c.RecordModule("text_extraction", core.StatusOK, 42)
		c.RecordModule("hidden_text", core.StatusTimeout, 5001)
	})
}
