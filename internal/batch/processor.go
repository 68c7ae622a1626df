package batch

import (
	"context"
	"sync"
)

// Processor runs indexed work items on a bounded pool of goroutines
type Processor struct {
	workers int
}

// NewProcessor creates a new processor with the given worker limit
func NewProcessor(workers int) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{workers: workers}
}

// Run calls fn for every index in [0, n). The first error cancels the
// context passed to the remaining items, stops scheduling and is returned
// once in-flight items finish.
func (p *Processor) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workerChan := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	var processErr error
	var mu sync.Mutex

	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if processErr == nil {
			processErr = err
			cancel()
		}
	}

loop:
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case workerChan <- struct{}{}:
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				defer func() { <-workerChan }()

				if err := fn(ctx, i); err != nil {
					fail(err)
				}
			}(i)
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if processErr != nil {
		return processErr
	}
	return ctx.Err()
}
