package flightctl

import (
	"sync"
)

// Pool is a simple controller pool for evaluating a policy over many
// simulated rollouts in parallel.  Each controller keeps its own
// executor, history and tick so the single-threaded contract of an
// individual controller still holds, only distinct instances run
// concurrently.
type Pool struct {
	// pool of controllers
	controllers chan *Controller
	// size of pool
	size  int
	close sync.Once
}

// NewPool creates a pool of size controllers.  The factory is invoked
// once per pool slot to produce an independent executor instance.
func NewPool(size int, cfg Config, factory func() (Executor, error)) (*Pool, error) {

	p := &Pool{
		controllers: make(chan *Controller, size),
		size:        size,
	}

	for i := 0; i < size; i++ {
		exec, err := factory()

		if err != nil {
			p.Close()
			return nil, err
		}

		ctrl, err := NewController(exec, cfg)

		if err != nil {
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(ctrl)
	}

	return p, nil
}

// Gets a controller from the pool
func (p *Pool) Get() *Controller {
	return <-p.controllers
}

// Return a controller to the pool.  The controller is reset so the next
// rollout starts from a clean history and tick.
func (p *Pool) Return(ctrl *Controller) {

	ctrl.Reset()

	select {
	case p.controllers <- ctrl:
	default:
		// pool is full or closed
	}
}

// Close the pool and release all controllers in it
func (p *Pool) Close() {
	p.close.Do(func() {
		close(p.controllers)

		for range p.controllers {
		}
	})
}
