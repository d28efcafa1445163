package pose

import (
	"context"
	"sync"

	"PostureGuard/internal/entity"
)

// Mock is an IEstimator for tests. A nil EstimateFunc returns an empty set.
type Mock struct {
	EstimateFunc func(ctx context.Context, f *entity.Frame) (entity.LandmarkSet, error)

	mu     sync.Mutex
	calls  int
	closed bool
}

func (m *Mock) Estimate(ctx context.Context, f *entity.Frame) (entity.LandmarkSet, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.EstimateFunc != nil {
		return m.EstimateFunc(ctx, f)
	}
	return entity.LandmarkSet{}, nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
