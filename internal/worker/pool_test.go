package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockResult implements Result
type mockResult struct {
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

// mockJob implements Job
type mockJob struct {
	duration  time.Duration
	shouldErr bool
	executed  *int32 // atomic counter
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{err: errors.New("job error")}
	}
	return &mockResult{err: nil}
}

func TestNewPool(t *testing.T) {
	ctx := context.Background()

	p1 := NewPool(ctx, 5)
	if p1.workers != 5 {
		t.Errorf("expected 5 workers, got %d", p1.workers)
	}

	p2 := NewPool(ctx, 0)
	if p2.workers != 1 {
		t.Errorf("expected default 1 worker for 0 input, got %d", p2.workers)
	}

	p3 := NewPool(ctx, -1)
	if p3.workers != 1 {
		t.Errorf("expected default 1 worker for negative input, got %d", p3.workers)
	}
}

func TestPool_Execution(t *testing.T) {
	pool := NewPool(context.Background(), 2)

	var executed int32
	count := 4
	jobs := make([]Job, count)
	for i := range jobs {
		jobs[i] = &mockJob{executed: &executed}
	}

	results := pool.Run(jobs)

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}

	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

func TestPool_RunManyJobs(t *testing.T) {
	pool := NewPool(context.Background(), 3)

	var executed int32
	count := 500
	jobs := make([]Job, count)
	for i := range jobs {
		jobs[i] = &mockJob{executed: &executed}
	}

	results := pool.Run(jobs)

	if len(results) != count {
		t.Errorf("expected %d results, got %d", count, len(results))
	}
	if atomic.LoadInt32(&executed) != int32(count) {
		t.Errorf("expected %d executed jobs, got %d", count, executed)
	}
}

// concurrencyJob tracks max concurrent executions
type concurrencyJob struct {
	start    func()
	end      func()
	duration time.Duration
}

func (j *concurrencyJob) Execute(ctx context.Context) Result {
	if j.start != nil {
		j.start()
	}
	time.Sleep(j.duration)
	if j.end != nil {
		j.end()
	}
	return &mockResult{}
}

func TestPool_Concurrency(t *testing.T) {
	workers := 10
	pool := NewPool(context.Background(), workers)

	var current int32
	var maxConcurrent int32
	var completed int32
	var mu sync.Mutex

	totalJobs := 50
	jobs := make([]Job, 0, totalJobs)

	for i := 0; i < totalJobs; i++ {
		jobs = append(jobs, &concurrencyJob{
			start: func() {
				curr := atomic.AddInt32(&current, 1)
				mu.Lock()
				if curr > maxConcurrent {
					maxConcurrent = curr
				}
				mu.Unlock()
			},
			end: func() {
				atomic.AddInt32(&current, -1)
				atomic.AddInt32(&completed, 1)
			},
			duration: 10 * time.Millisecond,
		})
	}

	pool.Run(jobs)

	if atomic.LoadInt32(&completed) != int32(totalJobs) {
		t.Errorf("expected %d completed jobs, got %d", totalJobs, completed)
	}

	mu.Lock()
	peak := maxConcurrent
	mu.Unlock()

	if peak > int32(workers) {
		t.Errorf("max concurrency %d exceeded workers %d", peak, workers)
	}

	if peak <= 1 {
		t.Logf("Warning: max concurrency was %d, expected > 1", peak)
	}
}

func TestPool_ErrorHandling(t *testing.T) {
	pool := NewPool(context.Background(), 2)

	results := pool.Run([]Job{&mockJob{shouldErr: true}, &mockJob{shouldErr: false}})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	errCount := 0
	for _, res := range results {
		if res.GetError() != nil {
			errCount++
		}
	}

	if errCount != 1 {
		t.Errorf("expected 1 error, got %d", errCount)
	}
}

func TestPool_RunReleasesContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := NewPool(parent, 2)

	pool.Run([]Job{&mockJob{}, &mockJob{}})

	if pool.ctx.Err() == nil {
		t.Fatal("pool context still live after Run returned")
	}
	if parent.Err() != nil {
		t.Error("Run must not cancel the caller's context")
	}

	// a finished pool refuses work instead of blocking
	done := make(chan bool)
	go func() { done <- pool.Submit(&mockJob{}) }()
	select {
	case ok := <-done:
		if ok {
			t.Error("Submit accepted a job after Run returned")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after Run returned")
	}
}

func TestPool_RunWithCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := NewPool(ctx, 2)

	jobs := make([]Job, 100)
	for i := range jobs {
		jobs[i] = &mockJob{}
	}

	done := make(chan []Result)
	go func() { done <- pool.Run(jobs) }()

	select {
	case results := <-done:
		if len(results) > len(jobs) {
			t.Errorf("got %d results for %d jobs", len(results), len(jobs))
		}
	case <-time.After(time.Second):
		t.Fatal("Run blocked with cancelled parent")
	}
}
