// Package worker provides a parallel texture rendering worker pool.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/MeKo-Tech/proctex/internal/imageio"
	"github.com/MeKo-Tech/proctex/internal/texture"
)

// Renderer renders one task and persists it, returning where it went.
type Renderer interface {
	Render(ctx context.Context, task Task) (path string, err error)
}

// Task represents a single texture rendering task.
type Task struct {
	Name    string
	Request texture.Request
	Post    imageio.Postprocess
}

// Result represents the outcome of a rendering task.
type Result struct {
	Task    Task
	Path    string
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called with each finished result and the running counts.
type ProgressFunc func(result Result, completed, total, failed int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Renderer   Renderer
	OnProgress ProgressFunc
}

// Pool manages parallel texture rendering.
type Pool struct {
	workers    int
	renderer   Renderer
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		renderer:   cfg.Renderer,
		onProgress: cfg.OnProgress,
	}
}

// Run executes all tasks and returns one result per task, in task order.
// The function blocks until all tasks complete or the context is cancelled;
// tasks that never started carry the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	type indexed struct {
		result Result
		index  int
	}

	taskCh := make(chan int, len(tasks))
	resultCh := make(chan indexed, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskCh {
				resultCh <- indexed{index: idx, result: p.runTask(ctx, tasks[idx])}
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for i := range tasks {
			select {
			case taskCh <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, len(tasks))
	seen := make([]bool, len(tasks))
	completed, failed := 0, 0
	for r := range resultCh {
		results[r.index] = r.result
		seen[r.index] = true

		completed++
		if r.result.Err != nil {
			failed++
		}
		if p.onProgress != nil {
			p.onProgress(r.result, completed, len(tasks), failed)
		}
	}

	for i := range tasks {
		if !seen[i] {
			results[i] = Result{Task: tasks[i], Err: ctx.Err()}
		}
	}

	return results
}

// runTask renders a single task unless the context is already done.
func (p *Pool) runTask(ctx context.Context, task Task) Result {
	select {
	case <-ctx.Done():
		return Result{Task: task, Err: ctx.Err()}
	default:
	}

	start := time.Now()
	path, err := p.renderer.Render(ctx, task)
	return Result{
		Task:    task,
		Path:    path,
		Err:     err,
		Elapsed: time.Since(start),
	}
}
