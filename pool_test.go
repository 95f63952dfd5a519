package flightctl

import (
	"errors"
	"sync"
	"testing"
)

var errTestFactory = errors.New("executor construction failed")

func TestPoolParallelRollouts(t *testing.T) {

	const poolSize = 3

	factory := func() (Executor, error) {
		return newStubExecutor(HistoryFeatureSize, []float32{0.2, 0.2, 0.2, 0.2}), nil
	}

	pool, err := NewPool(poolSize, Config{UseActionHistory: true}, factory)

	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	defer pool.Close()

	var wg sync.WaitGroup

	// more rollouts than pool slots so controllers get reused
	for rollout := 0; rollout < poolSize*4; rollout++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ctrl := pool.Get()
			defer pool.Return(ctrl)

			actions := make([]float32, ActionSize)

			for i := 0; i < 10; i++ {
				ctrl.Control(zeroState(), actions)
			}

			if ctrl.Tick() != 10 {
				t.Errorf("rollout tick = %d; want 10", ctrl.Tick())
			}
		}()
	}

	wg.Wait()
}

func TestPoolReturnResets(t *testing.T) {

	factory := func() (Executor, error) {
		return newStubExecutor(HistoryFeatureSize, []float32{1, 1, 1, 1}), nil
	}

	pool, err := NewPool(1, Config{UseActionHistory: true}, factory)

	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}

	defer pool.Close()

	ctrl := pool.Get()

	actions := make([]float32, ActionSize)
	ctrl.Control(zeroState(), actions)

	pool.Return(ctrl)

	ctrl = pool.Get()

	if ctrl.Tick() != 0 {
		t.Errorf("returned controller tick = %d; want reset to 0", ctrl.Tick())
	}

	pool.Return(ctrl)
}

func TestPoolFactoryError(t *testing.T) {

	calls := 0

	factory := func() (Executor, error) {
		calls++

		if calls > 1 {
			return nil, errTestFactory
		}

		return newStubExecutor(BaseFeatureSize), nil
	}

	if _, err := NewPool(3, Config{}, factory); err == nil {
		t.Error("expected factory error to propagate, got nil")
	}
}
