// Package workflow runs lead generation jobs as Temporal workflows. Each
// stage is its own activity so a worker restart resumes at the stage that
// was in flight.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// DefaultTaskQueue is used when the config leaves temporal.task_queue empty.
const DefaultTaskQueue = "leadgen"

const (
	stageTimeout      = 2 * time.Hour
	heartbeatInterval = 20 * time.Second
	heartbeatTimeout  = time.Minute
	stageAttempts     = 2
)

// Input starts a job workflow.
type Input struct {
	JobID   string           `json:"job_id"`
	Request pipeline.Request `json:"request"`
}

// StageInput runs one stage of a job.
type StageInput struct {
	JobID   string           `json:"job_id"`
	Stage   pipeline.Stage   `json:"stage"`
	Request pipeline.Request `json:"request"`
}

// FinishInput closes out a job. Error is empty on success.
type FinishInput struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

// WorkflowID is the Temporal workflow ID for a job.
func WorkflowID(jobID string) string {
	return "leadgen-job-" + jobID
}

// JobWorkflow begins the job, runs each stage as an activity, then records
// the final status. A stage failure fails the workflow after the job is
// marked FAILED.
func JobWorkflow(ctx workflow.Context, in Input) (*pipeline.Report, error) {
	stages := in.Request.Stages
	if len(stages) == 0 {
		stages = pipeline.DefaultStages
	}
	logger := workflow.GetLogger(ctx)

	short := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 5},
	})
	long := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: stageTimeout,
		HeartbeatTimeout:    heartbeatTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: stageAttempts},
	})

	var a *Activities
	var userID string
	if err := workflow.ExecuteActivity(short, a.Begin, in).Get(ctx, &userID); err != nil {
		return nil, err
	}

	req := in.Request
	req.Stages = stages
	if req.UserID == "" {
		req.UserID = userID
	}

	report := &pipeline.Report{JobID: in.JobID, Status: model.JobStatusRunning}
	var stageErr error
	for _, st := range stages {
		var part pipeline.Report
		err := workflow.ExecuteActivity(long, a.RunStage, StageInput{JobID: in.JobID, Stage: st, Request: req}).Get(ctx, &part)
		if err != nil {
			logger.Error("stage failed", "job_id", in.JobID, "stage", string(st), "error", err)
			stageErr = err
			break
		}
		report.Merge(part)
	}

	fin := FinishInput{JobID: in.JobID}
	if stageErr != nil {
		fin.Error = stageErr.Error()
	}
	if err := workflow.ExecuteActivity(short, a.Finish, fin).Get(ctx, &report.Status); err != nil {
		return nil, err
	}
	if stageErr != nil {
		return nil, stageErr
	}
	return report, nil
}

// Activities adapts a pipeline.Runner to Temporal activities.
type Activities struct {
	Runner *pipeline.Runner
}

// Begin marks the job RUNNING and returns its user ID.
func (a *Activities) Begin(ctx context.Context, in Input) (string, error) {
	job, err := a.Runner.Begin(ctx, in.JobID, in.Request.Stages)
	if err != nil {
		if errors.Is(err, pipeline.ErrJobRunning) || errors.Is(err, store.ErrNotFound) {
			return "", temporal.NewNonRetryableApplicationError(err.Error(), "JobNotStartable", err)
		}
		return "", err
	}
	return job.UserID, nil
}

// RunStage runs one stage, heartbeating while it works.
func (a *Activities) RunStage(ctx context.Context, in StageInput) (pipeline.Report, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(heartbeatInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx, string(in.Stage))
			}
		}
	}()
	return a.Runner.RunStage(ctx, in.JobID, in.Stage, in.Request)
}

// Finish records the final job status.
func (a *Activities) Finish(ctx context.Context, in FinishInput) (model.JobStatus, error) {
	var stageErr error
	if in.Error != "" {
		stageErr = eris.New(in.Error)
	}
	return a.Runner.Finish(ctx, in.JobID, stageErr), nil
}

// Start launches the workflow for a job.
func Start(ctx context.Context, c client.Client, taskQueue string, in Input) (client.WorkflowRun, error) {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(in.JobID),
		TaskQueue: taskQueue,

		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, JobWorkflow, in)
	if err != nil {
		return nil, startError(err)
	}
	return run, nil
}

// startError maps an already-running workflow to pipeline.ErrJobRunning.
func startError(err error) error {
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &started) {
		return eris.Wrapf(pipeline.ErrJobRunning, "workflow: start: %s", started.Error())
	}
	return eris.Wrap(err, "workflow: start")
}

// NewWorker registers the workflow and activities on a task queue.
func NewWorker(c client.Client, taskQueue string, runner *pipeline.Runner) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(JobWorkflow)
	w.RegisterActivity(&Activities{Runner: runner})
	return w
}

// Dispatcher starts job workflows on a Temporal cluster.
type Dispatcher struct {
	Client    client.Client
	TaskQueue string
}

// Dispatch starts the job's workflow without waiting for it.
func (d Dispatcher) Dispatch(ctx context.Context, jobID string, req pipeline.Request) error {
	_, err := Start(ctx, d.Client, d.TaskQueue, Input{JobID: jobID, Request: req})
	return err
}
