package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/agent"
	"github.com/sells-group/leadgen-cli/internal/enrich"
	"github.com/sells-group/leadgen-cli/internal/joblog"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/serp"
	"github.com/sells-group/leadgen-cli/internal/store"
)

type fakeSERP struct {
	calls []string
	err   error
	seen  func(status model.JobStatus)
	st    *store.MemoryStore
}

func (f *fakeSERP) RunForJob(ctx context.Context, jobID, userID string) (serp.Result, error) {
	f.calls = append(f.calls, userID)
	if f.seen != nil {
		job, _ := f.st.GetJob(ctx, jobID)
		f.seen(job.Status)
	}
	return serp.Result{CreatedCandidates: 3}, f.err
}

type fakeEnrich struct {
	max   int
	calls int
}

func (f *fakeEnrich) EnrichCompaniesForJob(_ context.Context, _ string, maxEnrichments int, _ string) (enrich.Result, error) {
	f.calls++
	f.max = maxEnrichments
	return enrich.Result{Enriched: 2, Failed: 1}, nil
}

type fakeAgent struct {
	opts agent.Options
}

func (f *fakeAgent) Run(_ context.Context, _ string, opts agent.Options) (agent.Result, error) {
	f.opts = opts
	return agent.Result{Saved: 1, StopReason: agent.StopEndTurn}, nil
}

func setup(t *testing.T) (*store.MemoryStore, *joblog.Sink) {
	t.Helper()
	st := store.NewMemory()
	sink := joblog.NewSink(st, joblog.Config{})
	t.Cleanup(func() { _ = sink.Close(context.Background()) })
	return st, sink
}

func submit(t *testing.T, r *Runner) *model.LeadGenJob {
	t.Helper()
	job, err := r.Submit(context.Background(), NewJob{
		PoolName:  "Tacos",
		Targeting: &model.TargetingProfile{Industries: []string{"Restaurants"}, Geos: []string{"Albuquerque"}},
		Providers: model.JobProviders{SERP: true},
		UserID:    "user-1",
	})
	require.NoError(t, err)
	return job
}

func TestRun_DefaultStagesComplete(t *testing.T) {
	st, sink := setup(t)
	s := &fakeSERP{st: st}
	e := &fakeEnrich{}
	var during model.JobStatus
	s.seen = func(status model.JobStatus) { during = status }

	r := New(Deps{Jobs: st, SERP: s, Enrich: e, Logs: sink})
	job := submit(t, r)
	assert.Equal(t, model.JobStatusPending, job.Status)

	report, err := r.Run(context.Background(), job.ID, Request{MaxEnrichments: 7})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusRunning, during)
	assert.Equal(t, model.JobStatusCompleted, report.Status)
	assert.Equal(t, 3, report.SERP.CreatedCandidates)
	assert.Equal(t, 2, report.Enrich.Enriched)
	assert.Nil(t, report.Agent)
	assert.Equal(t, 7, e.max)
	assert.Equal(t, []string{"user-1"}, s.calls)

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, stored.Status)
	require.NotEmpty(t, stored.Logs)
	assert.Equal(t, "job started: stages serp,enrich", stored.Logs[0].Message)
}

func TestRun_StageFailureMarksFailed(t *testing.T) {
	st, sink := setup(t)
	s := &fakeSERP{err: errors.New("pool vanished")}
	e := &fakeEnrich{}

	r := New(Deps{Jobs: st, SERP: s, Enrich: e, Logs: sink})
	job := submit(t, r)

	report, err := r.Run(context.Background(), job.ID, Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: stage serp")
	assert.Equal(t, model.JobStatusFailed, report.Status)
	assert.Zero(t, e.calls)

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, stored.Status)
	last := stored.Logs[len(stored.Logs)-1]
	assert.Equal(t, model.LogError, last.Level)
	assert.Contains(t, last.Message, "stage serp failed")
}

func TestRun_AgentStage(t *testing.T) {
	st, sink := setup(t)
	a := &fakeAgent{}
	r := New(Deps{Jobs: st, Agent: a, Logs: sink})
	job := submit(t, r)

	report, err := r.Run(context.Background(), job.ID, Request{
		Stages: []Stage{StageAgent},
		Agent:  agent.Options{MaxCompanies: 4, Prompt: "taquerias"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Agent.Saved)
	assert.Equal(t, 4, a.opts.MaxCompanies)
}

func TestRun_UnconfiguredStageFails(t *testing.T) {
	st, sink := setup(t)
	r := New(Deps{Jobs: st, Logs: sink})
	job := submit(t, r)

	_, err := r.Run(context.Background(), job.ID, Request{Stages: []Stage{StageAgent}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent stage not configured")
}

func TestRun_RejectsRunningJob(t *testing.T) {
	st, sink := setup(t)
	r := New(Deps{Jobs: st, SERP: &fakeSERP{}, Logs: sink})
	job := submit(t, r)
	require.NoError(t, st.UpdateJobStatus(context.Background(), job.ID, model.JobStatusRunning))

	_, err := r.Run(context.Background(), job.ID, Request{Stages: []Stage{StageSERP}})
	assert.ErrorIs(t, err, ErrJobRunning)
}

func TestRun_SERPDisabledSkipsStage(t *testing.T) {
	st, sink := setup(t)
	s := &fakeSERP{}
	e := &fakeEnrich{}
	r := New(Deps{Jobs: st, SERP: s, Enrich: e, Logs: sink})
	job, err := r.Submit(context.Background(), NewJob{
		Targeting: &model.TargetingProfile{Industries: []string{"Restaurants"}},
		Providers: model.JobProviders{SERP: false, AIAnalysis: true},
	})
	require.NoError(t, err)

	report, err := r.Run(context.Background(), job.ID, Request{})
	require.NoError(t, err)
	assert.Empty(t, s.calls)
	assert.Nil(t, report.SERP)
	assert.Equal(t, 1, e.calls)
	assert.Equal(t, model.JobStatusCompleted, report.Status)

	stored, err := st.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	var warned bool
	for _, l := range stored.Logs {
		if l.Level == model.LogWarn && strings.Contains(l.Message, "search stage skipped") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestBegin_ConcurrentCallsStartOnce(t *testing.T) {
	st, sink := setup(t)
	r := New(Deps{Jobs: st, Logs: sink})
	job := submit(t, r)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
		running int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Begin(context.Background(), job.ID, DefaultStages)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				started++
			case errors.Is(err, ErrJobRunning):
				running++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)
	assert.Equal(t, callers-1, running)
}

func TestRun_MissingJob(t *testing.T) {
	st, sink := setup(t)
	r := New(Deps{Jobs: st, Logs: sink})

	_, err := r.Run(context.Background(), "nope", Request{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSubmit(t *testing.T) {
	st, sink := setup(t)
	r := New(Deps{Jobs: st, Logs: sink})
	ctx := context.Background()

	job := submit(t, r)
	pool, err := st.GetPool(ctx, job.PoolID)
	require.NoError(t, err)
	assert.Equal(t, "Tacos", pool.Name)
	assert.Equal(t, []string{"Restaurants"}, pool.Targeting.Industries)

	again, err := r.Submit(ctx, NewJob{PoolID: job.PoolID, QueryTemplates: []string{"{industry} {geo}"}})
	require.NoError(t, err)
	assert.Equal(t, job.PoolID, again.PoolID)
	assert.NotEqual(t, job.ID, again.ID)

	_, err = r.Submit(ctx, NewJob{})
	assert.Error(t, err)

	_, err = r.Submit(ctx, NewJob{PoolID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestParseStages(t *testing.T) {
	stages, err := ParseStages("serp, Enrich,serp")
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageSERP, StageEnrich}, stages)

	_, err = ParseStages("serp,crawl")
	assert.Error(t, err)

	_, err = ParseStages(" , ")
	assert.Error(t, err)
}
