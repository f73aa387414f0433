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

// Pool runs jobs on a fixed number of goroutines. Results are collected
// internally, so Submit only blocks while every worker is busy and the queue
// is full.
type Pool struct {
	workers   int
	jobQueue  chan Job
	collector *ResultCollector
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a new worker pool bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:   workers,
		jobQueue:  make(chan Job, workers*2),
		collector: NewResultCollector(),
		ctx:       ctx,
		cancel:    cancel,
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
			p.collector.Add(job.Execute(p.ctx))
		}
	}
}

// Submit queues a job. It returns without queueing once the pool is shut
// down. Submit must not be called after Wait.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.jobQueue <- job:
	}
}

// Wait closes the queue, waits for queued jobs to finish and returns their
// results in completion order.
func (p *Pool) Wait() []Result {
	p.closeOnce.Do(func() { close(p.jobQueue) })
	p.wg.Wait()
	p.cancel()
	return p.collector.Results()
}

// Shutdown cancels in-flight jobs and stops the workers
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

// ResultCollector gathers results from concurrent workers
type ResultCollector struct {
	results []Result
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{
		results: make([]Result, 0),
	}
}

// Add adds a result to the collector (thread-safe)
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// Results returns a copy of the collected results
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.results))
	copy(out, c.results)
	return out
}
