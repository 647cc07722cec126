package automation

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WorkflowStats summarizes counters and duration spread of an owned workflow.
func (m *Manager) WorkflowStats(ctx context.Context, workflowID, userID string) (*Stats, error) {
	wf, err := m.GetWorkflow(ctx, workflowID, userID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrWorkflowNotFound
	}

	execs, err := m.ListExecutions(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}
	return summarize(wf, execs), nil
}

func summarize(wf *Workflow, execs []Execution) *Stats {
	s := &Stats{
		WorkflowID:     wf.ID,
		ExecutionCount: wf.ExecutionCount,
		SuccessfulRuns: wf.SuccessfulRuns,
		SuccessRate:    wf.SuccessRate,
	}

	durations := make([]float64, 0, len(execs))
	for _, e := range execs {
		switch e.Status {
		case StatusCompleted:
			s.Completed++
			if e.DurationMS != nil {
				durations = append(durations, float64(*e.DurationMS))
			}
		case StatusFailed:
			s.Failed++
		}
	}
	if len(durations) == 0 {
		return s
	}

	sort.Float64s(durations)
	s.MeanMS, s.StdDevMS = stat.MeanStdDev(durations, nil)
	if math.IsNaN(s.StdDevMS) {
		s.StdDevMS = 0
	}
	s.MedianMS = stat.Quantile(0.5, stat.Empirical, durations, nil)
	return s
}
