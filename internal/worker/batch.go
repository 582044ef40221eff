package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Task processes one entity identified by id
type Task func(ctx context.Context, id string) error

// ItemResult is the outcome of a Task for one id
type ItemResult struct {
	ID  string
	Err error
}

// GetError returns the task error
func (r *ItemResult) GetError() error {
	return r.Err
}

type itemJob struct {
	id   string
	task Task
}

// Execute runs the task, converting a panic into an error so siblings keep running
func (j *itemJob) Execute(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &ItemResult{ID: j.id, Err: fmt.Errorf("panic processing %s: %v", j.id, r)}
		}
	}()
	return &ItemResult{ID: j.id, Err: j.task(ctx, j.id)}
}

// Summary counts batch outcomes
type Summary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Errors    int `json:"errors"`
}

// BatchProcessor runs a task over many ids with bounded concurrency
type BatchProcessor struct {
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(concurrency int) *BatchProcessor {
	return &BatchProcessor{concurrency: concurrency}
}

// Process runs task for every id. A failing id never stops the others.
func (b *BatchProcessor) Process(ctx context.Context, ids []string, task Task) ([]*ItemResult, Summary) {
	if len(ids) == 0 {
		return []*ItemResult{}, Summary{}
	}

	jobs := make([]Job, len(ids))
	for i, id := range ids {
		jobs[i] = &itemJob{id: id, task: task}
	}

	pool := NewPool(ctx, b.concurrency)
	results := pool.Run(jobs)

	out := make([]*ItemResult, len(results))
	var summary Summary
	for i, r := range results {
		out[i] = r.(*ItemResult)
		summary.Processed++
		if r.GetError() != nil {
			summary.Errors++
		} else {
			summary.Succeeded++
		}
	}
	return out, summary
}

// ReadIDsFromFile reads ids from a file (one per line, '#' comments allowed)
func ReadIDsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			ids = append(ids, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
