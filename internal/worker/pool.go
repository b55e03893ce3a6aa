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

// sequenced pairs a job or result with its submission index
type sequenced[T any] struct {
	seq  int
	item T
}

// Pool manages a pool of workers that execute jobs concurrently.
// Results come back in submission order regardless of completion order.
type Pool struct {
	workers    int
	jobQueue   chan sequenced[Job]
	results    chan sequenced[Result]
	collected  []sequenced[Result]
	collectWG  sync.WaitGroup
	submitted  int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan sequenced[Job], workers*2),
		results:    make(chan sequenced[Result], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go func() {
		defer p.collectWG.Done()
		for r := range p.results {
			p.collected = append(p.collected, r)
		}
	}()

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
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.item.Execute(p.ctx)
			p.results <- sequenced[Result]{seq: job.seq, item: result}
		}
	}
}

// Submit queues a job. It reports false once the pool has been shut down or its
// context cancelled. Submit must be called from a single goroutine, before Wait.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- sequenced[Job]{seq: p.submitted, item: job}:
		p.submitted++
		return true
	}
}

// Wait closes the queue, waits for every queued job and returns the results
// indexed by submission order. Jobs dropped by cancellation leave nil entries.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
	p.cancelFunc()

	ordered := make([]Result, p.submitted)
	for _, r := range p.collected {
		ordered[r.seq] = r.item
	}
	return ordered
}

// Shutdown stops the pool immediately. Running jobs see a cancelled context.
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	p.collectWG.Wait()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
