package pipeline

import (
	"context"
	"os"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/preflightci/preflight/pkg/logger"
)

var orchLog = logger.New("pipeline:orchestrator")

// Orchestrator drives one validation run: it validates the target, resolves
// every tool the pipeline needs, executes the stages, and finalizes the
// consolidated result. It does not own the ephemeral environment; the
// caller holds the cleanup guard so teardown happens on every exit path,
// including ones that never reach the orchestrator.
type Orchestrator struct {
	runner   Runner
	resolver Resolver

	// Parallel allows stages sharing a non-zero group to run concurrently.
	// Off by default: most validators are cheap and interleaved output is
	// harder to debug than a slightly slower run.
	Parallel bool
}

// NewOrchestrator wires a runner and a resolver into an orchestrator.
func NewOrchestrator(runner Runner, resolver Resolver) *Orchestrator {
	return &Orchestrator{runner: runner, resolver: resolver}
}

// Run executes the pipeline against target. It returns an error only when
// no meaningful report can be produced (missing target, canceled before
// completion); stage failures are reported inside the RunResult, not as an
// error. The returned result is finalized.
func (o *Orchestrator) Run(ctx context.Context, target string, stages []Stage) (*RunResult, error) {
	if _, err := os.Stat(target); err != nil {
		return nil, InvalidTargetError(target, err)
	}

	result := NewRunResult(target)
	orchLog.Printf("run %s: target %s, %d stages", result.RunID, target, len(stages))

	handles, unavailable := o.resolveTools(stages)

	for _, batch := range groupStages(stages, o.Parallel) {
		if ctx.Err() != nil {
			result.Finalize()
			return result, ctx.Err()
		}
		results := o.runBatch(ctx, batch, handles, unavailable, target)
		for _, sr := range results {
			result.Append(sr)
		}
	}

	result.Finalize()
	orchLog.Printf("run %s: overall %s in %s", result.RunID, result.Overall, result.Duration)
	return result, ctx.Err()
}

// resolveTools resolves each distinct tool once, in first-use order. Tools
// that cannot be resolved are recorded so their stages degrade to Skip
// instead of aborting the run.
func (o *Orchestrator) resolveTools(stages []Stage) (map[string]ExecutableHandle, map[string]error) {
	handles := make(map[string]ExecutableHandle)
	unavailable := make(map[string]error)
	for _, stage := range stages {
		name := stage.Tool.Name
		if _, ok := handles[name]; ok {
			continue
		}
		if _, ok := unavailable[name]; ok {
			continue
		}
		handle, err := o.resolver.Resolve(stage.Tool)
		if err != nil {
			orchLog.Printf("tool %s unavailable: %v", name, err)
			unavailable[name] = err
			continue
		}
		orchLog.Printf("tool %s resolved to %s (ephemeral=%v)", name, handle.Path, handle.Ephemeral)
		handles[name] = handle
	}
	return handles, unavailable
}

// runBatch executes one batch of stages, concurrently when the batch holds
// more than one stage. Results come back in the batch's declared order.
func (o *Orchestrator) runBatch(ctx context.Context, batch []Stage, handles map[string]ExecutableHandle, unavailable map[string]error, target string) []StageResult {
	results := make([]StageResult, len(batch))

	run := func(i int) {
		stage := batch[i]
		if err, ok := unavailable[stage.Tool.Name]; ok {
			results[i] = StageResult{
				StageID: stage.ID,
				Outcome: Skip,
				Detail:  err.Error(),
				Hint:    stage.Hint,
			}
			return
		}
		results[i] = o.runner.RunStage(ctx, stage, handles[stage.Tool.Name], target)
	}

	if len(batch) == 1 {
		run(0)
		return results
	}

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i := range batch {
		p.Go(func() { run(i) })
	}
	p.Wait()
	return results
}

// groupStages splits the pipeline into execution batches. Without parallel
// mode every stage is its own batch. In parallel mode, consecutive stages
// sharing the same non-zero group form one batch; declared order still
// holds across batches.
func groupStages(stages []Stage, parallel bool) [][]Stage {
	var batches [][]Stage
	for i := 0; i < len(stages); {
		stage := stages[i]
		if !parallel || stage.Group == 0 {
			batches = append(batches, []Stage{stage})
			i++
			continue
		}
		j := i + 1
		for j < len(stages) && stages[j].Group == stage.Group {
			j++
		}
		batches = append(batches, stages[i:j])
		i = j
	}
	return batches
}

// FilterStages returns the stages whose IDs appear in wanted, preserving
// pipeline order. Unknown IDs are reported so a typo in --stage does not
// silently validate nothing.
func FilterStages(stages []Stage, wanted []string) ([]Stage, []string) {
	if len(wanted) == 0 {
		return stages, nil
	}
	want := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		want[id] = true
	}
	var filtered []Stage
	for _, s := range stages {
		if want[s.ID] {
			filtered = append(filtered, s)
			delete(want, s.ID)
		}
	}
	var unknown []string
	for _, id := range wanted {
		if want[id] {
			unknown = append(unknown, id)
		}
	}
	return filtered, unknown
}
