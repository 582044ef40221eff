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

// Pool manages a pool of workers that execute jobs concurrently
type Pool struct {
	workers     int
	jobQueue    chan Job
	results     chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancelFunc  context.CancelFunc
	queueOnce   sync.Once
	resultsOnce sync.Once
}

// NewPool creates a pool bound to ctx; cancelling ctx stops the workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker goroutines
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
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. Returns false once the pool context is done.
func (p *Pool) Submit(job Job) bool {
	// Run closes the queue before it cancels, so check first
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Run executes every job and returns their results in completion order.
// Jobs are fed from a separate goroutine so result collection never stalls submission.
// The pool is single-use: its context is released when Run returns.
func (p *Pool) Run(jobs []Job) []Result {
	defer p.cancelFunc()
	p.Start()

	go func() {
		for _, job := range jobs {
			if !p.Submit(job) {
				break
			}
		}
		p.closeQueue()
	}()

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	results := make([]Result, 0, len(jobs))
	for result := range p.results {
		results = append(results, result)
	}
	return results
}

func (p *Pool) closeQueue() {
	p.queueOnce.Do(func() {
		close(p.jobQueue)
	})
}

func (p *Pool) closeResults() {
	p.resultsOnce.Do(func() {
		close(p.results)
	})
}
