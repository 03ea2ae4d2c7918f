package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/testsuite"

	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/joblog"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/serp"
	"github.com/sells-group/leadgen-cli/internal/store"
)

type fakeSERP struct {
	calls int
	err   error
}

func (f *fakeSERP) RunForJob(context.Context, string, string) (serp.Result, error) {
	f.calls++
	return serp.Result{CreatedCandidates: 4, UniqueDomains: []string{"taco-place.com"}}, f.err
}

type fakeEnrich struct {
	userID string
}

func (f *fakeEnrich) EnrichCompaniesForJob(_ context.Context, _ string, _ int, userID string) (enrich.Result, error) {
	f.userID = userID
	return enrich.Result{Enriched: 3}, nil
}

func newRunner(t *testing.T, s *fakeSERP, e *fakeEnrich) (*pipeline.Runner, *store.MemoryStore, string) {
	t.Helper()
	st := store.NewMemory()
	sink := joblog.NewSink(st, joblog.Config{})
	t.Cleanup(func() { _ = sink.Close(context.Background()) })

	r := pipeline.New(pipeline.Deps{Jobs: st, SERP: s, Enrich: e, Logs: sink})
	job, err := r.Submit(context.Background(), pipeline.NewJob{
		Targeting: &model.TargetingProfile{Industries: []string{"Restaurants"}},
		Providers: model.JobProviders{SERP: true},
		UserID:    "user-9",
	})
	require.NoError(t, err)
	return r, st, job.ID
}

func TestJobWorkflow_Completes(t *testing.T) {
	s, e := &fakeSERP{}, &fakeEnrich{}
	runner, st, jobID := newRunner(t, s, e)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&Activities{Runner: runner})

	env.ExecuteWorkflow(JobWorkflow, Input{JobID: jobID})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var report pipeline.Report
	require.NoError(t, env.GetWorkflowResult(&report))
	assert.Equal(t, model.JobStatusCompleted, report.Status)
	require.NotNil(t, report.SERP)
	assert.Equal(t, 4, report.SERP.CreatedCandidates)
	require.NotNil(t, report.Enrich)
	assert.Equal(t, 3, report.Enrich.Enriched)
	assert.Equal(t, "user-9", e.userID)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestJobWorkflow_StageFailureMarksJobFailed(t *testing.T) {
	s, e := &fakeSERP{err: errors.New("search down")}, &fakeEnrich{}
	runner, st, jobID := newRunner(t, s, e)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&Activities{Runner: runner})

	env.ExecuteWorkflow(JobWorkflow, Input{JobID: jobID})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search down")
	assert.Equal(t, stageAttempts, s.calls)
	assert.Empty(t, e.userID)

	job, err := st.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

func TestJobWorkflow_MissingJobIsNotRetried(t *testing.T) {
	s, e := &fakeSERP{}, &fakeEnrich{}
	runner, _, _ := newRunner(t, s, e)

	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&Activities{Runner: runner})

	env.ExecuteWorkflow(JobWorkflow, Input{JobID: "missing"})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Zero(t, s.calls)
}

func TestJobWorkflow_MockedActivities(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	a := &Activities{}
	env.RegisterActivity(a)

	env.OnActivity(a.Begin, mock.Anything, mock.Anything).Return("user-1", nil)
	env.OnActivity(a.RunStage, mock.Anything, mock.Anything).Return(pipeline.Report{
		Agent: nil,
		SERP:  &serp.Result{CreatedCandidates: 1},
	}, nil)
	env.OnActivity(a.Finish, mock.Anything, FinishInput{JobID: "job-1"}).Return(model.JobStatusCompleted, nil)

	env.ExecuteWorkflow(JobWorkflow, Input{JobID: "job-1", Request: pipeline.Request{Stages: []pipeline.Stage{pipeline.StageSERP}}})

	require.NoError(t, env.GetWorkflowError())
	var report pipeline.Report
	require.NoError(t, env.GetWorkflowResult(&report))
	assert.Equal(t, 1, report.SERP.CreatedCandidates)
	env.AssertExpectations(t)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "leadgen-job-abc", WorkflowID("abc"))
}

func TestStartError_AlreadyStartedIsJobRunning(t *testing.T) {
	err := startError(&serviceerror.WorkflowExecutionAlreadyStarted{Message: "workflow execution already started"})
	assert.ErrorIs(t, err, pipeline.ErrJobRunning)

	err = startError(errors.New("frontend unavailable"))
	assert.NotErrorIs(t, err, pipeline.ErrJobRunning)
	assert.Contains(t, err.Error(), "workflow: start")
}
