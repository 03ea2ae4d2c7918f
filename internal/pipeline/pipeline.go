// Package pipeline owns the job lifecycle: it moves a job from PENDING to
// RUNNING, runs the requested stages in order, and records COMPLETED or
// FAILED.
package pipeline

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/agent"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/joblog"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/serp"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Stage names a unit of work within a job.
type Stage string

const (
	StageSERP   Stage = "serp"
	StageEnrich Stage = "enrich"
	StageAgent  Stage = "agent"
)

// DefaultStages is the search-then-enrich run.
var DefaultStages = []Stage{StageSERP, StageEnrich}

// ErrJobRunning is returned when a job is started while already RUNNING.
var ErrJobRunning = store.ErrJobRunning

// ParseStages parses a comma separated stage list.
func ParseStages(s string) ([]Stage, error) {
	var out []Stage
	for _, part := range strings.Split(s, ",") {
		st := Stage(strings.TrimSpace(strings.ToLower(part)))
		switch st {
		case "":
			continue
		case StageSERP, StageEnrich, StageAgent:
			if !slices.Contains(out, st) {
				out = append(out, st)
			}
		default:
			return nil, eris.Errorf("pipeline: unknown stage %q", st)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("pipeline: no stages")
	}
	return out, nil
}

// SERPRunner runs the search stage.
type SERPRunner interface {
	RunForJob(ctx context.Context, jobID, userID string) (serp.Result, error)
}

// Enricher runs the enrichment stage.
type Enricher interface {
	EnrichCompaniesForJob(ctx context.Context, jobID string, maxEnrichments int, userID string) (enrich.Result, error)
}

// AgentRunner runs the agentic stage.
type AgentRunner interface {
	Run(ctx context.Context, jobID string, opts agent.Options) (agent.Result, error)
}

// Jobs is the job and pool storage the runner needs.
type Jobs interface {
	CreateJob(ctx context.Context, j *model.LeadGenJob) error
	GetJob(ctx context.Context, id string) (*model.LeadGenJob, error)
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error
	StartJob(ctx context.Context, id string) error
	SavePool(ctx context.Context, p *model.Pool) error
	GetPool(ctx context.Context, id string) (*model.Pool, error)
}

// Deps wires the stage runners. A nil runner makes its stage fail.
type Deps struct {
	Jobs   Jobs
	SERP   SERPRunner
	Enrich Enricher
	Agent  AgentRunner
	Logs   *joblog.Sink
}

// Runner executes job stages.
type Runner struct {
	Deps
}

// New creates a Runner.
func New(d Deps) *Runner {
	return &Runner{Deps: d}
}

// Request selects the stages of a run and their knobs.
type Request struct {
	Stages         []Stage       `json:"stages,omitempty"`
	MaxEnrichments int           `json:"max_enrichments,omitempty"`
	UserID         string        `json:"user_id,omitempty"`
	Agent          agent.Options `json:"agent"`
}

// Report summarizes one run.
type Report struct {
	JobID    string          `json:"job_id"`
	Status   model.JobStatus `json:"status"`
	SERP     *serp.Result    `json:"serp,omitempty"`
	Enrich   *enrich.Result  `json:"enrich,omitempty"`
	Agent    *agent.Result   `json:"agent,omitempty"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration_ns"`
}

// NewJob describes a job to submit. When Targeting is set the pool is saved
// with it, otherwise PoolID must name an existing pool.
type NewJob struct {
	PoolID         string                  `json:"pool_id,omitempty"`
	PoolName       string                  `json:"pool_name,omitempty"`
	Targeting      *model.TargetingProfile `json:"targeting,omitempty"`
	Providers      model.JobProviders      `json:"providers"`
	QueryTemplates []string                `json:"query_templates,omitempty"`
	UserID         string                  `json:"user_id,omitempty"`
}

// Submit creates a PENDING job, saving the pool's targeting first when given.
func (r *Runner) Submit(ctx context.Context, nj NewJob) (*model.LeadGenJob, error) {
	switch {
	case nj.Targeting != nil:
		pool := &model.Pool{ID: nj.PoolID, Name: nj.PoolName, Targeting: nj.Targeting.Clone()}
		if err := r.Jobs.SavePool(ctx, pool); err != nil {
			return nil, eris.Wrap(err, "pipeline: save pool")
		}
		nj.PoolID = pool.ID
	case nj.PoolID == "":
		return nil, eris.New("pipeline: pool id or targeting is required")
	default:
		if _, err := r.Jobs.GetPool(ctx, nj.PoolID); err != nil {
			return nil, eris.Wrap(err, "pipeline: get pool")
		}
	}

	job := &model.LeadGenJob{
		PoolID:         nj.PoolID,
		UserID:         nj.UserID,
		Providers:      nj.Providers,
		QueryTemplates: slices.Clone(nj.QueryTemplates),
		Status:         model.JobStatusPending,
	}
	if err := r.Jobs.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}
	return job, nil
}

// Run executes the requested stages against a job. A stage error marks the
// job FAILED and is returned.
func (r *Runner) Run(ctx context.Context, jobID string, req Request) (*Report, error) {
	if len(req.Stages) == 0 {
		req.Stages = DefaultStages
	}
	job, err := r.Begin(ctx, jobID, req.Stages)
	if err != nil {
		return nil, err
	}
	return r.RunStarted(ctx, job, req)
}

// RunStarted runs the stages of req on a job that Begin already moved to
// RUNNING, then finishes it.
func (r *Runner) RunStarted(ctx context.Context, job *model.LeadGenJob, req Request) (*Report, error) {
	if len(req.Stages) == 0 {
		req.Stages = DefaultStages
	}
	jobID := job.ID
	start := time.Now()
	if req.UserID == "" {
		req.UserID = job.UserID
	}

	report := &Report{JobID: jobID, Status: model.JobStatusRunning}
	var stageErr error
	for _, st := range req.Stages {
		part, err := r.RunStage(ctx, jobID, st, req)
		report.Merge(part)
		if err != nil {
			stageErr = err
			break
		}
	}

	report.Status = r.Finish(ctx, jobID, stageErr)
	report.Duration = time.Since(start)
	if stageErr != nil {
		report.Error = stageErr.Error()
		return report, stageErr
	}
	return report, nil
}

// Begin moves a job to RUNNING. It fails if the job is missing or already
// running; of two concurrent calls only one succeeds.
func (r *Runner) Begin(ctx context.Context, jobID string, stages []Stage) (*model.LeadGenJob, error) {
	if err := r.Jobs.StartJob(ctx, jobID); err != nil {
		return nil, eris.Wrap(err, "pipeline: start job")
	}
	job, err := r.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: get job")
	}
	if r.Logs != nil {
		r.Logs.For(jobID).Info("job started: stages %s", joinStages(stages))
	}
	return job, nil
}

// RunStage runs one stage and returns a report holding only that stage's
// result. Stage errors are logged to the job and wrapped with the stage name.
func (r *Runner) RunStage(ctx context.Context, jobID string, st Stage, req Request) (Report, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("job_id", jobID))
	part := Report{JobID: jobID}

	start := time.Now()
	err := r.runStage(ctx, st, jobID, req, &part)
	dur := time.Since(start)
	part.Duration = dur
	if err != nil {
		log.Error("pipeline: stage failed", zap.String("stage", string(st)), zap.Duration("duration", dur), zap.Error(err))
		if r.Logs != nil {
			r.Logs.For(jobID).Error("stage %s failed: %v", st, err)
		}
		return part, eris.Wrapf(err, "pipeline: stage %s", st)
	}
	log.Info("pipeline: stage complete", zap.String("stage", string(st)), zap.Duration("duration", dur))
	return part, nil
}

// Finish records COMPLETED, or FAILED when stageErr is set, and flushes the
// job log. Writes survive cancellation of ctx.
func (r *Runner) Finish(ctx context.Context, jobID string, stageErr error) model.JobStatus {
	status := model.JobStatusCompleted
	if stageErr != nil {
		status = model.JobStatusFailed
	} else if r.Logs != nil {
		r.Logs.For(jobID).Info("job completed")
	}
	r.setStatus(ctx, jobID, status)

	if r.Logs != nil {
		if err := r.Logs.Flush(context.WithoutCancel(ctx)); err != nil {
			zap.L().Warn("pipeline: flush job log", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	return status
}

// Merge copies the stage results present in other.
func (rep *Report) Merge(other Report) {
	if other.SERP != nil {
		rep.SERP = other.SERP
	}
	if other.Enrich != nil {
		rep.Enrich = other.Enrich
	}
	if other.Agent != nil {
		rep.Agent = other.Agent
	}
}

func (r *Runner) setStatus(ctx context.Context, jobID string, status model.JobStatus) {
	if err := r.Jobs.UpdateJobStatus(context.WithoutCancel(ctx), jobID, status); err != nil {
		zap.L().Warn("pipeline: failed to update status",
			zap.String("job_id", jobID), zap.String("status", string(status)), zap.Error(err))
	}
}

func (r *Runner) runStage(ctx context.Context, st Stage, jobID string, req Request, report *Report) error {
	switch st {
	case StageSERP:
		if r.SERP == nil {
			return eris.New("search stage not configured")
		}
		job, err := r.Jobs.GetJob(ctx, jobID)
		if err != nil {
			return eris.Wrap(err, "get job")
		}
		if !job.Providers.SERP {
			zap.L().Warn("pipeline: search disabled for job", zap.String("job_id", jobID))
			if r.Logs != nil {
				r.Logs.For(jobID).Warn("search stage skipped: serp provider disabled for this job")
			}
			return nil
		}
		res, err := r.SERP.RunForJob(ctx, jobID, req.UserID)
		report.SERP = &res
		return err
	case StageEnrich:
		if r.Enrich == nil {
			return eris.New("enrich stage not configured")
		}
		res, err := r.Enrich.EnrichCompaniesForJob(ctx, jobID, req.MaxEnrichments, req.UserID)
		report.Enrich = &res
		return err
	case StageAgent:
		if r.Agent == nil {
			return eris.New("agent stage not configured")
		}
		res, err := r.Agent.Run(ctx, jobID, req.Agent)
		report.Agent = &res
		return err
	default:
		return eris.Errorf("unknown stage %q", st)
	}
}

func joinStages(stages []Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
