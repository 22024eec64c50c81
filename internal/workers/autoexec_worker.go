package workers

import (
	"context"
	"time"

	"hermes/internal/services/autoexec"
	"hermes/pkg/errors"
)

// AutoExecWorker drives the auto-execution engine on a schedule. It is
// the external periodic trigger the engine expects: each iteration is
// one RunOnce invocation.
type AutoExecWorker struct {
	*BaseWorker
	engine *autoexec.Engine
}

// NewAutoExecWorker creates the engine worker
func NewAutoExecWorker(engine *autoexec.Engine, interval time.Duration, enabled bool) *AutoExecWorker {
	return &AutoExecWorker{
		BaseWorker: NewBaseWorker("autoexec", interval, enabled),
		engine:     engine,
	}
}

// Run executes one engine iteration
func (w *AutoExecWorker) Run(ctx context.Context) error {
	start := time.Now()

	summary, err := w.engine.RunOnce(ctx)
	if err != nil {
		w.RecordError(err, time.Since(start))
		// Repository unavailability is surfaced to the scheduler; the
		// next tick retries
		return errors.Wrap(err, "engine run")
	}

	if summary.Processed > 0 {
		w.Log().Infow("Auto-execution iteration complete",
			"processed", summary.Processed,
			"successful", summary.Successful,
			"failed", summary.Failed,
		)
	}

	w.RecordRun(time.Since(start))
	return nil
}
