package store

import (
	"context"
	"time"

	"github.com/pavelanni/assessor/internal/model"
)

// WithLatency wraps r so that every call waits d before reaching the
// underlying repository. The wait is abandoned when ctx is cancelled.
// It is meant for demos and tests that need to observe in-flight state.
func WithLatency(r Repository, d time.Duration) Repository {
	if d <= 0 {
		return r
	}
	return &latencyRepo{next: r, delay: d}
}

type latencyRepo struct {
	next  Repository
	delay time.Duration
}

func (l *latencyRepo) wait(ctx context.Context) error {
	t := time.NewTimer(l.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (l *latencyRepo) GetAssessment(ctx context.Context, id string) (model.Assessment, error) {
	if err := l.wait(ctx); err != nil {
		return model.Assessment{}, err
	}
	return l.next.GetAssessment(ctx, id)
}

func (l *latencyRepo) ListAssessments(ctx context.Context, includeArchived bool) ([]model.Assessment, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.ListAssessments(ctx, includeArchived)
}

func (l *latencyRepo) CreateResult(ctx context.Context, r model.Result) (model.Result, error) {
	if err := l.wait(ctx); err != nil {
		return model.Result{}, err
	}
	return l.next.CreateResult(ctx, r)
}

func (l *latencyRepo) UpdateResult(ctx context.Context, id string, patch ResultPatch) (model.Result, error) {
	if err := l.wait(ctx); err != nil {
		return model.Result{}, err
	}
	return l.next.UpdateResult(ctx, id, patch)
}

func (l *latencyRepo) GetResult(ctx context.Context, id string) (model.Result, error) {
	if err := l.wait(ctx); err != nil {
		return model.Result{}, err
	}
	return l.next.GetResult(ctx, id)
}

func (l *latencyRepo) ListResultsByAssessment(ctx context.Context, assessmentID string) ([]model.Result, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	return l.next.ListResultsByAssessment(ctx, assessmentID)
}
