package api

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

// LocalDispatcher runs jobs on goroutines in this process. Jobs inherit
// the base context, not the request's.
type LocalDispatcher struct {
	base   context.Context
	runner *pipeline.Runner
	wg     sync.WaitGroup
}

// NewLocalDispatcher creates a dispatcher whose jobs stop when base is cancelled.
func NewLocalDispatcher(base context.Context, runner *pipeline.Runner) *LocalDispatcher {
	return &LocalDispatcher{base: base, runner: runner}
}

// Dispatch implements Dispatcher. The job is moved to RUNNING before
// Dispatch returns, so a second dispatch of the same job fails with
// pipeline.ErrJobRunning.
func (d *LocalDispatcher) Dispatch(ctx context.Context, jobID string, req pipeline.Request) error {
	if len(req.Stages) == 0 {
		req.Stages = pipeline.DefaultStages
	}
	job, err := d.runner.Begin(ctx, jobID, req.Stages)
	if err != nil {
		return err
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		report, err := d.runner.RunStarted(d.base, job, req)
		if err != nil {
			zap.L().Error("background job failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		zap.L().Info("background job complete",
			zap.String("job_id", jobID),
			zap.String("status", string(report.Status)),
			zap.Duration("duration", report.Duration),
		)
	}()
	return nil
}

// Wait blocks until dispatched jobs return.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
