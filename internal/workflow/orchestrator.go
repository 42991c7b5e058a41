// Package workflow runs ordered multi-step operations where later steps
// depend on earlier ones and a failure must stop the run immediately with
// enough context to resume by hand.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrRunInProgress rejects a second run for a key whose previous run has not
// finished. The daemon holds one wallet identity, so two interleaved
// submissions for it would race on nonces and allowances.
var ErrRunInProgress = errors.New("workflow run already in progress")

// Step is one unit of a run. Run is given the workflow context and must
// return nil only when its effect is durably applied.
type Step struct {
	Label string
	Run   func(ctx context.Context) error
}

// StepError reports which step of a run failed. Earlier steps completed and
// their effects persist; nothing after the failed step was attempted.
type StepError struct {
	Step  int
	Total int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d (%s): %v", e.Step, e.Total, e.Label, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ProgressFunc observes a step about to execute.
type ProgressFunc func(step, total int, label string)

// Orchestrator serializes runs per key and executes steps strictly in order.
type Orchestrator struct {
	mu     sync.Mutex
	active map[string]struct{}
	log    *slog.Logger
}

func NewOrchestrator(log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		active: make(map[string]struct{}),
		log:    log.With("component", "workflow"),
	}
}

// Run executes steps in order under the given key. name labels the workflow
// kind in logs and metrics; key scopes the mutual exclusion (typically
// workflow kind plus signer address).
func (o *Orchestrator) Run(ctx context.Context, name, key string, steps []Step, progress ProgressFunc) error {
	o.mu.Lock()
	if _, busy := o.active[key]; busy {
		o.mu.Unlock()
		return ErrRunInProgress
	}
	o.active[key] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.active, key)
		o.mu.Unlock()
	}()

	total := len(steps)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			runsTotal.WithLabelValues(name, "canceled").Inc()
			return &StepError{Step: i + 1, Total: total, Label: step.Label, Err: err}
		}
		if progress != nil {
			progress(i+1, total, step.Label)
		}
		o.log.Info("workflow step", "workflow", name, "step", i+1, "total", total, "label", step.Label)
		if err := step.Run(ctx); err != nil {
			stepFailuresTotal.WithLabelValues(name, step.Label).Inc()
			runsTotal.WithLabelValues(name, "failed").Inc()
			o.log.Warn("workflow step failed",
				"workflow", name, "step", i+1, "total", total,
				"label", step.Label, "error", err.Error())
			return &StepError{Step: i + 1, Total: total, Label: step.Label, Err: err}
		}
	}
	runsTotal.WithLabelValues(name, "ok").Inc()
	o.log.Info("workflow complete", "workflow", name, "steps", total)
	return nil
}
