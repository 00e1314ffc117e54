package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type queuedJob struct {
	seq int
	job Job
}

// Pool runs jobs on a fixed number of workers and returns results in submission order
type Pool struct {
	workers int
	queue   chan queuedJob
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	results []Result
	closed  bool
}

// NewPool creates a pool bound to ctx; cancelling ctx stops workers after their current job
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers: workers,
		queue:   make(chan queuedJob, workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case qj, ok := <-p.queue:
			if !ok {
				return
			}
			if p.ctx.Err() != nil {
				return
			}
			result := qj.job.Execute(p.ctx)

			p.mu.Lock()
			p.results[qj.seq] = result
			p.mu.Unlock()
		}
	}
}

// Submit queues a job, blocking while all workers are busy.
// It returns false if the pool was cancelled or already waited on.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	seq := len(p.results)
	p.results = append(p.results, nil)
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- queuedJob{seq: seq, job: job}:
		return true
	}
}

// Wait closes the queue, waits for the workers and returns one slot per submitted job.
// Slots of jobs skipped because of cancellation are nil.
func (p *Pool) Wait() []Result {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.results...)
}

// Shutdown cancels outstanding work and waits for running jobs to return
func (p *Pool) Shutdown() {
	p.cancel()
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Run executes fn(i) for i in [0, n) with at most workers concurrent calls
// and returns the errors indexed like the inputs.
func Run(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) []error {
	pool := NewPool(ctx, workers)
	pool.Start()
	for i := 0; i < n; i++ {
		if !pool.Submit(funcJob{i: i, fn: fn}) {
			break
		}
	}

	results := pool.Wait()
	errs := make([]error, n)
	for i := range errs {
		if i < len(results) && results[i] != nil {
			errs[i] = results[i].GetError()
			continue
		}
		// never ran
		errs[i] = ctx.Err()
	}
	return errs
}

type funcJob struct {
	i  int
	fn func(ctx context.Context, i int) error
}

type errResult struct{ err error }

func (r errResult) GetError() error { return r.err }

func (j funcJob) Execute(ctx context.Context) Result {
	return errResult{err: j.fn(ctx, j.i)}
}
