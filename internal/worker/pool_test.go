package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/proctex/internal/texture"
)

// mockRenderer simulates texture rendering for testing
type mockRenderer struct {
	fail      map[string]bool // task names that should fail
	delay     time.Duration
	callCount atomic.Int32
}

func (m *mockRenderer) Render(ctx context.Context, task Task) (string, error) {
	m.callCount.Add(1)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	if m.fail != nil && m.fail[task.Name] {
		return "", errors.New("simulated failure")
	}

	return "/tmp/" + task.Name + ".png", nil
}

func noiseTask(name string, seed uint32) Task {
	return Task{
		Name:    name,
		Request: texture.Request{Mode: texture.ModeNoise, Width: 8, Height: 8, Scale: 2, Seed: seed},
	}
}

func TestPool_BasicExecution(t *testing.T) {
	r := &mockRenderer{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:  2,
		Renderer: r,
	})

	tasks := []Task{noiseTask("a", 1), noiseTask("b", 2), noiseTask("c", 3)}

	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	for i, res := range results {
		if res.Err != nil {
			t.Errorf("Unexpected error for %s: %v", res.Task.Name, res.Err)
		}
		if res.Task.Name != tasks[i].Name {
			t.Errorf("Result %d out of order: got %s, want %s", i, res.Task.Name, tasks[i].Name)
		}
		if res.Path != "/tmp/"+tasks[i].Name+".png" {
			t.Errorf("Unexpected path for %s: %s", res.Task.Name, res.Path)
		}
	}

	if r.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d render calls, got %d", len(tasks), r.callCount.Load())
	}
}

func TestPool_Parallelism(t *testing.T) {
	r := &mockRenderer{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:  4,
		Renderer: r,
	})

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = noiseTask(string(rune('a'+i)), uint32(i))
	}

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// 4 workers, 8 tasks at 50ms each: about two rounds
	maxExpected := 200 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	t.Logf("Processed %d tasks with %d workers in %v", len(tasks), 4, elapsed)
}

func TestPool_ErrorHandling(t *testing.T) {
	r := &mockRenderer{
		delay: 10 * time.Millisecond,
		fail:  map[string]bool{"b": true},
	}

	pool := New(Config{
		Workers:  2,
		Renderer: r,
	})

	tasks := []Task{noiseTask("a", 1), noiseTask("b", 2), noiseTask("c", 3)}

	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, res := range results {
		if res.Err != nil {
			failCount++
			if res.Task.Name != "b" {
				t.Errorf("Unexpected failure for %s", res.Task.Name)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	r := &mockRenderer{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers:  1,
		Renderer: r,
	})

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = noiseTask(string(rune('a'+i)), uint32(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Errorf("Expected early termination, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Fatalf("Expected a result slot per task, got %d", len(results))
	}

	var cancelled int
	for _, res := range results {
		if errors.Is(res.Err, context.DeadlineExceeded) {
			cancelled++
		}
	}
	if cancelled == 0 {
		t.Error("Expected some tasks to report the context error")
	}
	if int(r.callCount.Load()) >= len(tasks) {
		t.Errorf("Expected fewer than %d render calls, got %d", len(tasks), r.callCount.Load())
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	r := &mockRenderer{
		delay: 5 * time.Millisecond,
		fail:  map[string]bool{"c": true},
	}

	var calls, lastCompleted, lastTotal, lastFailed int
	var failedNames []string
	pool := New(Config{
		Workers:  2,
		Renderer: r,
		OnProgress: func(result Result, completed, total, failed int) {
			calls++
			lastCompleted, lastTotal, lastFailed = completed, total, failed
			if result.Err != nil {
				failedNames = append(failedNames, result.Task.Name)
			}
		},
	})

	tasks := []Task{noiseTask("a", 1), noiseTask("b", 2), noiseTask("c", 3), noiseTask("d", 4)}
	pool.Run(context.Background(), tasks)

	if calls != len(tasks) {
		t.Errorf("Expected %d progress calls, got %d", len(tasks), calls)
	}
	if lastCompleted != len(tasks) || lastTotal != len(tasks) {
		t.Errorf("Expected final progress %d/%d, got %d/%d", len(tasks), len(tasks), lastCompleted, lastTotal)
	}
	if lastFailed != 1 {
		t.Errorf("Expected 1 failed, got %d", lastFailed)
	}
	if len(failedNames) != 1 || failedNames[0] != "c" {
		t.Errorf("Expected failed result for task c, got %v", failedNames)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	pool := New(Config{Workers: 2, Renderer: &mockRenderer{}})

	if results := pool.Run(context.Background(), nil); len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
}

func TestPool_DefaultWorkers(t *testing.T) {
	pool := New(Config{Renderer: &mockRenderer{}})
	if pool.workers != 1 {
		t.Errorf("Expected 1 worker by default, got %d", pool.workers)
	}
}
