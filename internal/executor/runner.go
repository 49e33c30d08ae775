// Package executor runs registered startup tasks through their four stages
// with bounded parallelism, retries, timeouts and fallbacks, reporting every
// transition to the state store.
package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pablasso/liftoff/internal/graph"
	"github.com/pablasso/liftoff/internal/state"
	"github.com/pablasso/liftoff/internal/task"
)

// Initializer drives a registry of startup tasks to completion. Construct
// one per process entry point and pass it by reference; there is no package
// singleton.
type Initializer struct {
	registry *task.Registry
	store    *state.Store // nil when Options.UseStore is false
	opts     Options
	logger   *zap.Logger

	mu      sync.Mutex
	runID   string
	total   time.Duration
	timings []Timing
}

// New creates an Initializer. A nil store or Options.UseStore=false runs the
// scheduler without the observable store; a nil logger disables logging.
func New(reg *task.Registry, store *state.Store, opts Options, logger *zap.Logger) *Initializer {
	opts = opts.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.UseStore {
		store = nil
	}
	return &Initializer{
		registry: reg,
		store:    store,
		opts:     opts,
		logger:   logger,
	}
}

// Store returns the observable state store, or nil when disabled.
func (in *Initializer) Store() *state.Store { return in.store }

// Run executes all four stages in order, enforcing the minimum splash
// duration, and returns the first fatal error.
func (in *Initializer) Run(ctx context.Context) error {
	start := time.Now()
	runID := uuid.NewString()

	in.mu.Lock()
	in.runID = runID
	in.total = 0
	in.timings = nil
	in.mu.Unlock()

	if in.store != nil {
		in.store.InitStarted(runID)
	}
	in.logger.Info("initialization started", zap.String("run_id", runID))

	err := in.runStages(ctx)

	if err == nil {
		if remain := in.opts.MinSplashDuration - time.Since(start); remain > 0 {
			in.logger.Debug("holding for minimum splash duration", zap.Duration("remaining", remain))
			err = sleep(ctx, remain)
		}
	}

	in.mu.Lock()
	in.total = time.Since(start)
	in.mu.Unlock()

	if err != nil {
		if in.store != nil {
			in.store.InitFailed(err)
		}
		in.logger.Error("initialization failed", zap.Error(err))
		return err
	}

	if in.store != nil {
		in.store.InitCompleted()
	}
	in.logger.Info("initialization completed", zap.Duration("took", time.Since(start)))
	if in.opts.SlowTaskReportSize > 0 {
		in.logger.Debug("slowest tasks\n" + in.Report().String())
	}
	return nil
}

func (in *Initializer) runStages(ctx context.Context) error {
	for _, st := range task.Stages() {
		err := in.runStage(ctx, st)
		if err == nil {
			continue
		}

		var critErr *CriticalError
		if errors.As(err, &critErr) && !in.opts.StopOnCriticalError {
			in.logger.Warn("critical task failed, continuing",
				zap.Stringer("stage", st),
				zap.Error(err))
			// The stage is over even though it aborted; completing it keeps
			// overall progress able to reach 100 on a tolerated failure.
			in.stageCompleted(st)
			continue
		}
		return err
	}
	return nil
}

// runStage resolves, batches and executes one stage's tasks. Dependency
// order is guaranteed between batches; batches never contain a dependency
// pair, so tasks inside one batch are free to run concurrently.
func (in *Initializer) runStage(ctx context.Context, st task.Stage) error {
	tasks := in.registry.TasksForStage(st)
	if len(tasks) == 0 {
		in.logger.Warn("stage has no tasks", zap.Stringer("stage", st))
		in.stageStarted(st)
		in.stageCompleted(st)
		return nil
	}

	in.stageStarted(st)
	if in.store != nil {
		for _, t := range tasks {
			in.store.RegisterTask(st, t.ID)
		}
	}

	order, err := graph.Resolve(tasks, in.registry, in.logger)
	if err != nil {
		in.skipPending(st, tasks)
		return err
	}

	for _, batch := range graph.Batches(order, in.opts.MaxConcurrentTasks) {
		var g errgroup.Group
		for _, t := range batch {
			t := t
			g.Go(func() error {
				return in.executeTask(ctx, t)
			})
		}
		// Wait lets every member of the batch settle before the stage
		// reacts to a critical failure.
		if err := g.Wait(); err != nil {
			in.skipPending(st, tasks)
			return err
		}
	}

	in.stageCompleted(st)
	return nil
}

// skipPending marks tasks that never started as skipped after a stage abort.
func (in *Initializer) skipPending(st task.Stage, tasks []task.Descriptor) {
	if in.store == nil {
		return
	}
	for _, t := range tasks {
		// Ignored for tasks already past pending.
		_ = in.store.TaskSkipped(st, t.ID)
	}
}

func (in *Initializer) stageStarted(st task.Stage) {
	in.logger.Debug("stage started", zap.Stringer("stage", st))
	if in.store == nil {
		return
	}
	if err := in.store.StageStarted(st); err != nil {
		in.logger.Warn("stage transition rejected", zap.Error(err))
	}
}

func (in *Initializer) stageCompleted(st task.Stage) {
	in.logger.Debug("stage completed", zap.Stringer("stage", st))
	if in.store == nil {
		return
	}
	if err := in.store.StageCompleted(st); err != nil {
		in.logger.Warn("stage transition rejected", zap.Error(err))
	}
}

func (in *Initializer) taskStarted(d task.Descriptor) {
	in.logger.Debug("task started", zap.String("task", d.ID))
	if in.store == nil {
		return
	}
	if err := in.store.TaskStarted(d.Stage, d.ID); err != nil {
		in.logger.Warn("task transition rejected", zap.Error(err))
	}
}

func (in *Initializer) taskCompleted(d task.Descriptor, attempts int, took time.Duration) {
	in.logger.Debug("task completed",
		zap.String("task", d.ID),
		zap.Int("attempts", attempts),
		zap.Duration("took", took))
	in.recordTiming(d, state.StatusCompleted, took)
	if in.store == nil {
		return
	}
	if err := in.store.TaskCompleted(d.Stage, d.ID, attempts); err != nil {
		in.logger.Warn("task transition rejected", zap.Error(err))
	}
}

func (in *Initializer) taskFailed(d task.Descriptor, taskErr state.TaskError, took time.Duration) {
	in.logger.Warn("task failed",
		zap.String("task", d.ID),
		zap.Int("attempts", taskErr.Attempts),
		zap.Error(taskErr.Err))
	in.recordTiming(d, state.StatusFailed, took)
	if in.store == nil {
		return
	}
	if err := in.store.TaskFailed(d.Stage, d.ID, taskErr); err != nil {
		in.logger.Warn("task transition rejected", zap.Error(err))
	}
}
