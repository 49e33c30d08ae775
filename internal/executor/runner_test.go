package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pablasso/liftoff/internal/graph"
	"github.com/pablasso/liftoff/internal/state"
	"github.com/pablasso/liftoff/internal/task"
	"github.com/pablasso/liftoff/internal/testutil"
)

func ok(ctx context.Context) error { return nil }

func TestRun_StagesExecuteInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(id string) task.Func {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil
		}
	}

	in, store := newInitializer(t, []task.Descriptor{
		{ID: "r1", Stage: task.StageReady, Run: record("r1")},
		{ID: "s1", Stage: task.StageServices, Run: record("s1")},
		{ID: "k1", Stage: task.StageCore, Run: record("k1")},
		{ID: "c1", Stage: task.StageCritical, Run: record("c1")},
	}, testOptions())

	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"c1", "k1", "s1", "r1"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	snap := store.Snapshot()
	for _, st := range task.Stages() {
		if snap.Stages[st].Status != state.StatusCompleted {
			t.Errorf("stage %s = %s, want completed", st, snap.Stages[st].Status)
		}
	}
}

func TestRun_CriticalFailureAbortsPipeline(t *testing.T) {
	var laterRan atomic.Bool

	in, store := newInitializer(t, []task.Descriptor{
		{
			ID:       "doomed",
			Stage:    task.StageCritical,
			Priority: task.PriorityCritical,
			Run: func(ctx context.Context) error {
				return errors.New("boom")
			},
		},
		{
			ID:    "later",
			Stage: task.StageCore,
			Run: func(ctx context.Context) error {
				laterRan.Store(true)
				return nil
			},
		},
	}, testOptions())

	err := in.Run(context.Background())
	if err == nil {
		t.Fatal("expected the run to fail")
	}
	var critErr *CriticalError
	if !errors.As(err, &critErr) || critErr.TaskID != "doomed" {
		t.Fatalf("error = %v, want CriticalError for doomed", err)
	}
	if laterRan.Load() {
		t.Error("later stages must not run after a critical failure")
	}

	snap := store.Snapshot()
	if !snap.Failed || snap.Initialized {
		t.Errorf("unexpected lifecycle flags: failed=%v initialized=%v", snap.Failed, snap.Initialized)
	}
	if snap.Stages[task.StageCore].Status != state.StatusPending {
		t.Errorf("core stage = %s, want pending", snap.Stages[task.StageCore].Status)
	}
}

func TestRun_NonCriticalFailureDoesNotAbort(t *testing.T) {
	in, store := newInitializer(t, []task.Descriptor{
		{
			ID:       "shaky",
			Stage:    task.StageServices,
			Priority: task.PriorityNormal,
			Run: func(ctx context.Context) error {
				return errors.New("boom")
			},
		},
		{ID: "final", Stage: task.StageReady, Run: ok},
	}, testOptions())

	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("non-critical failure must not abort: %v", err)
	}

	snap := store.Snapshot()
	if !snap.Initialized {
		t.Error("run should complete")
	}
	if snap.Stages[task.StageServices].Tasks["shaky"].Status != state.StatusFailed {
		t.Error("failed task should stay failed")
	}
	if snap.Stages[task.StageReady].Tasks["final"].Status != state.StatusCompleted {
		t.Error("ready stage should still run")
	}
	if len(snap.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(snap.Errors))
	}
}

func TestRun_StopOnCriticalErrorDisabled(t *testing.T) {
	opts := testOptions()
	opts.StopOnCriticalError = false

	var laterRan atomic.Bool
	in, store := newInitializer(t, []task.Descriptor{
		{
			ID:       "doomed",
			Stage:    task.StageCritical,
			Priority: task.PriorityCritical,
			Run: func(ctx context.Context) error {
				return errors.New("boom")
			},
		},
		{
			ID:    "later",
			Stage: task.StageCore,
			Run: func(ctx context.Context) error {
				laterRan.Store(true)
				return nil
			},
		},
	}, opts)

	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("critical failure should be tolerated: %v", err)
	}
	if !laterRan.Load() {
		t.Error("later stages should run when StopOnCriticalError is off")
	}

	snap := store.Snapshot()
	if !snap.Initialized {
		t.Error("run should complete")
	}
	// The aborted stage still terminates, so the run ends at full progress.
	if snap.Stages[task.StageCritical].Status != state.StatusCompleted {
		t.Errorf("critical stage = %s, want completed", snap.Stages[task.StageCritical].Status)
	}
	if snap.OverallProgress != 100 {
		t.Errorf("overall = %d, want 100", snap.OverallProgress)
	}
}

func TestRun_AbortSkipsPendingTasks(t *testing.T) {
	opts := testOptions()
	opts.MaxConcurrentTasks = 1

	in, store := newInitializer(t, []task.Descriptor{
		{
			ID:       "first",
			Stage:    task.StageCritical,
			Priority: task.PriorityCritical,
			Run: func(ctx context.Context) error {
				return errors.New("boom")
			},
		},
		{ID: "second", Stage: task.StageCritical, Run: ok},
	}, opts)

	if err := in.Run(context.Background()); err == nil {
		t.Fatal("expected the run to fail")
	}

	if got := store.Snapshot().Stages[task.StageCritical].Tasks["second"].Status; got != state.StatusSkipped {
		t.Errorf("unstarted sibling = %s, want skipped", got)
	}
}

func TestRun_CycleFailsBeforeExecution(t *testing.T) {
	var ran atomic.Bool
	run := func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}

	in, store := newInitializer(t, []task.Descriptor{
		{ID: "a", Stage: task.StageCore, Dependencies: []string{"b"}, Run: run},
		{ID: "b", Stage: task.StageCore, Dependencies: []string{"a"}, Run: run},
	}, testOptions())

	err := in.Run(context.Background())
	if !errors.Is(err, graph.ErrCycle) {
		t.Fatalf("error = %v, want ErrCycle", err)
	}
	if ran.Load() {
		t.Error("no task may run when the stage has a cycle")
	}

	snap := store.Snapshot()
	for id, ts := range snap.Stages[task.StageCore].Tasks {
		if ts.Status == state.StatusCompleted {
			t.Errorf("task %s completed despite the cycle", id)
		}
	}
	if !snap.Failed {
		t.Error("run should be marked failed")
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	opts := testOptions()
	opts.MaxConcurrentTasks = 2

	var inflight, peak atomic.Int32
	slow := func(ctx context.Context) error {
		cur := inflight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inflight.Add(-1)
		return nil
	}

	var tasks []task.Descriptor
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		tasks = append(tasks, task.Descriptor{ID: id, Stage: task.StageCore, Run: slow})
	}

	in, _ := newInitializer(t, tasks, opts)
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestRun_DependencyNeverRunsConcurrentlyWithDependent(t *testing.T) {
	// Chain shorter than the batch size: the batcher must still separate the
	// pair, so the dependent only starts after its dependency finished.
	var mu sync.Mutex
	ends := make(map[string]time.Time)
	starts := make(map[string]time.Time)
	timed := func(id string, d time.Duration) task.Func {
		return func(ctx context.Context) error {
			mu.Lock()
			starts[id] = time.Now()
			mu.Unlock()
			time.Sleep(d)
			mu.Lock()
			ends[id] = time.Now()
			mu.Unlock()
			return nil
		}
	}

	in, _ := newInitializer(t, []task.Descriptor{
		{ID: "a", Stage: task.StageCore, Run: timed("a", 40*time.Millisecond)},
		{ID: "b", Stage: task.StageCore, Dependencies: []string{"a"}, Run: timed("b", 10*time.Millisecond)},
	}, testOptions())

	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if starts["b"].Before(ends["a"]) {
		t.Errorf("b started %s before its dependency a finished", ends["a"].Sub(starts["b"]))
	}
}

func TestRun_ProgressMonotoneAndComplete(t *testing.T) {
	// One task at a time so listener callbacks arrive in a deterministic order.
	opts := testOptions()
	opts.MaxConcurrentTasks = 1

	in, store := newInitializer(t, []task.Descriptor{
		{ID: "c1", Stage: task.StageCritical, Run: ok},
		{ID: "k1", Stage: task.StageCore, Run: ok},
		{ID: "k2", Stage: task.StageCore, Run: ok},
		{ID: "s1", Stage: task.StageServices, Run: ok},
	}, opts)

	var rec testutil.Recorder
	store.AddListener(rec.Listener())

	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	values := rec.ProgressValues()
	if len(values) == 0 {
		t.Fatal("expected progress updates")
	}
	last := 0
	for i, v := range values {
		if v < last {
			t.Fatalf("progress decreased at %d: %v", i, values)
		}
		last = v
	}
	if last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
	if store.OverallProgress() != 100 {
		t.Errorf("store progress = %d, want 100", store.OverallProgress())
	}

	kinds := rec.Kinds()
	if kinds[len(kinds)-1] != "init_complete" {
		t.Errorf("last event = %s, want init_complete", kinds[len(kinds)-1])
	}
}

func TestRun_EmptyStagesCompleteTrivially(t *testing.T) {
	in, store := newInitializer(t, []task.Descriptor{
		{ID: "only", Stage: task.StageCore, Run: ok},
	}, testOptions())

	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := store.Snapshot()
	for _, st := range task.Stages() {
		if snap.Stages[st].Status != state.StatusCompleted {
			t.Errorf("stage %s = %s, want completed", st, snap.Stages[st].Status)
		}
	}
	if snap.OverallProgress != 100 {
		t.Errorf("overall = %d, want 100", snap.OverallProgress)
	}
}

func TestRun_MinSplashDuration(t *testing.T) {
	opts := testOptions()
	opts.MinSplashDuration = 120 * time.Millisecond

	in, _ := newInitializer(t, []task.Descriptor{
		{ID: "instant", Stage: task.StageCritical, Run: ok},
	}, opts)

	start := time.Now()
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Errorf("run finished in %s, want >= 120ms", elapsed)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	in, _ := newInitializer(t, []task.Descriptor{
		{
			ID:    "blocked",
			Stage: task.StageCritical,
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}, testOptions())

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := in.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestRun_WithoutStore(t *testing.T) {
	opts := testOptions()
	opts.UseStore = false

	reg := task.NewRegistry(zap.NewNop())
	if err := reg.Register(task.Descriptor{ID: "bg", Stage: task.StageCore, Run: ok}); err != nil {
		t.Fatalf("register: %v", err)
	}
	in := New(reg, state.NewStore(), opts, zap.NewNop())

	if in.Store() != nil {
		t.Fatal("UseStore=false should detach the store")
	}
	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(in.Report().Slowest) != 1 {
		t.Error("report should still record timings without a store")
	}
}

func TestReport_RanksSlowest(t *testing.T) {
	opts := testOptions()
	opts.SlowTaskReportSize = 2

	sleepFor := func(d time.Duration) task.Func {
		return func(ctx context.Context) error {
			time.Sleep(d)
			return nil
		}
	}
	in, _ := newInitializer(t, []task.Descriptor{
		{ID: "fast", Stage: task.StageCore, Run: sleepFor(5 * time.Millisecond)},
		{ID: "slow", Stage: task.StageCore, Run: sleepFor(60 * time.Millisecond)},
		{ID: "medium", Stage: task.StageCore, Run: sleepFor(25 * time.Millisecond)},
	}, opts)

	if err := in.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report := in.Report()
	if report.Total <= 0 {
		t.Error("report total should be positive")
	}
	if len(report.Slowest) != 2 {
		t.Fatalf("slowest = %d entries, want 2", len(report.Slowest))
	}
	if report.Slowest[0].TaskID != "slow" || report.Slowest[1].TaskID != "medium" {
		t.Errorf("unexpected ranking: %s, %s", report.Slowest[0].TaskID, report.Slowest[1].TaskID)
	}
	if report.String() == "" {
		t.Error("report should render")
	}
}
