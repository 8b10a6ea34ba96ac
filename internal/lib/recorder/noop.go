package recorder

import "context"

// NoopRecorder is used when plan history is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordPlan(_ context.Context, _ *PlanRecord) error { return nil }
func (n *NoopRecorder) RecentPlans(_ context.Context, _ int) ([]PlanRecord, error) {
	return nil, nil
}
func (n *NoopRecorder) Close() error { return nil }
