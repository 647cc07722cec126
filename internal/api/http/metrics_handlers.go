package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
)

// MetricsSummary reports running totals and breaker health as JSON
type MetricsSummary struct {
	metrics  *monitoring.Metrics
	breakers []*resilience.Breaker
}

// NewMetricsSummary creates a summary over metrics and the given breakers
func NewMetricsSummary(metrics *monitoring.Metrics, breakers ...*resilience.Breaker) *MetricsSummary {
	return &MetricsSummary{metrics: metrics, breakers: breakers}
}

// BreakerStatus is the view of one circuit breaker
type BreakerStatus struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// SummaryResponse is the body of the summary endpoint
type SummaryResponse struct {
	Timestamp time.Time           `json:"timestamp"`
	Summary   monitoring.Snapshot `json:"summary"`
	ErrorRate float64             `json:"error_rate"`
	Breakers  []BreakerStatus     `json:"breakers"`
}

// Collect builds the current summary
func (ms *MetricsSummary) Collect() SummaryResponse {
	snap := ms.metrics.Snapshot()
	resp := SummaryResponse{
		Timestamp: time.Now().UTC(),
		Summary:   snap,
		Breakers:  make([]BreakerStatus, 0, len(ms.breakers)),
	}
	if snap.TotalRequests > 0 {
		resp.ErrorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}
	for _, b := range ms.breakers {
		if b == nil {
			continue
		}
		counts := b.Counts()
		resp.Breakers = append(resp.Breakers, BreakerStatus{
			Name:                b.Name(),
			State:               b.State().String(),
			Requests:            counts.Requests,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		})
	}
	return resp
}

// GetMetricsSummary returns running totals and breaker states
func (h *Handlers) GetMetricsSummary(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Collect())
}
