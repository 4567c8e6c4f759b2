package driver

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"skelgen/internal/gen"
)

// Task describes one object whose bindings should be generated.
type Task struct {
	// Object is the path of the compiled object or raw catalogue file.
	Object string

	Options gen.Options
}

// TaskResult pairs a task with its outcome. Err covers I/O and
// internal faults; catalogue problems live in Res.Bag.
type TaskResult struct {
	Task Task
	Res  *Result
	Err  error
}

// GenerateAll runs the tasks in parallel, bounded by jobs (0 means
// GOMAXPROCS). Results land at the task's own index, so the output
// order matches the input order regardless of scheduling. A context
// cancellation stops the run; per-task failures do not.
func GenerateAll(ctx context.Context, tasks []Task, jobs int, cache *DiskCache) ([]TaskResult, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]TaskResult, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(tasks), 1)))

	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := GenerateFile(t.Object, t.Options, cache)
			results[i] = TaskResult{Task: t, Res: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
