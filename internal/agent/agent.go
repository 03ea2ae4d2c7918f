// Package agent lets a model drive lead discovery through a fixed tool set:
// search, visit, score, save, and refine. The loop enforces the iteration and
// company limits regardless of what the model asks for.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/joblog"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
)

// Defaults for Options and Config fields left zero.
const (
	DefaultMaxIterations = 25
	DefaultMaxCompanies  = 10
	DefaultMaxTokens     = 4096
	DefaultSearchLimit   = 10
)

// Stop reasons reported in Result.
const (
	StopEndTurn       = "end_turn"
	StopMaxIterations = "max_iterations"
	StopMaxCompanies  = "max_companies"
	StopCancelled     = "cancelled"
	StopModelError    = "model_error"
)

// Repository is the persistence the agent needs.
type Repository interface {
	store.CompanyRepository
	store.CandidateRepository
	store.ContactRepository
	store.JobRepository
	store.PoolRepository
}

// Config holds process-level settings.
type Config struct {
	Model         string
	MaxTokens     int64
	MaxIterations int
	MaxCompanies  int
}

// Options tune a single run. Zero values fall back to Config.
type Options struct {
	MaxCompanies  int    `json:"max_companies"`
	MaxIterations int    `json:"max_iterations"`
	Prompt        string `json:"prompt"`
}

// Result summarizes a run.
type Result struct {
	Iterations int    `json:"iterations"`
	Saved      int    `json:"saved"`
	StopReason string `json:"stop_reason"`
}

// Orchestrator runs the tool loop for one job at a time.
type Orchestrator struct {
	repo      Repository
	client    anthropic.Client
	provider  search.Provider
	extractor extract.Extractor
	ai        *ai.Service
	logs      *joblog.Sink
	scorer    *normalize.Scorer
	cfg       Config
	now       func() time.Time
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Repo      Repository
	Client    anthropic.Client
	Provider  search.Provider
	Extractor extract.Extractor
	AI        *ai.Service
	Logs      *joblog.Sink
	Scorer    *normalize.Scorer
}

// New builds an Orchestrator.
func New(d Deps, cfg Config) *Orchestrator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxCompanies <= 0 {
		cfg.MaxCompanies = DefaultMaxCompanies
	}
	scorer := d.Scorer
	if scorer == nil {
		scorer = normalize.NewScorer(normalize.DefaultWeights())
	}
	return &Orchestrator{
		repo:      d.Repo,
		client:    d.Client,
		provider:  d.Provider,
		extractor: d.Extractor,
		ai:        d.AI,
		logs:      d.Logs,
		scorer:    scorer,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// run is the mutable state of one Run call.
type run struct {
	job          *model.LeadGenJob
	profile      model.TargetingProfile
	maxCompanies int
	jl           *joblog.JobLog

	saved    map[string]bool
	fit      map[string]int
	counters model.JobCounters
}

// Run drives the model until it stops calling tools, the iteration budget is
// spent, MaxCompanies companies are saved, or ctx is cancelled. It fails only
// when the job or its pool cannot be loaded.
func (o *Orchestrator) Run(ctx context.Context, jobID string, opts Options) (Result, error) {
	var res Result
	job, err := o.repo.GetJob(ctx, jobID)
	if err != nil {
		return res, eris.Wrapf(err, "agent: load job %s", jobID)
	}
	pool, err := o.repo.GetPool(ctx, job.PoolID)
	if err != nil {
		return res, eris.Wrapf(err, "agent: load pool %s", job.PoolID)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = o.cfg.MaxIterations
	}
	if opts.MaxCompanies <= 0 {
		opts.MaxCompanies = o.cfg.MaxCompanies
	}

	r := &run{
		job:          job,
		profile:      pool.Targeting,
		maxCompanies: opts.MaxCompanies,
		jl:           o.logs.For(jobID),
		saved:        make(map[string]bool),
		fit:          make(map[string]int),
	}
	log := zap.L().With(zap.String("component", "agent"), zap.String("job_id", jobID))
	r.jl.Info("agent started: up to %d companies in %d iterations", opts.MaxCompanies, opts.MaxIterations)

	messages := []anthropic.Message{anthropic.UserText(userPrompt(opts.Prompt, opts.MaxCompanies))}
	system := systemPrompt(r.profile, opts.MaxCompanies)
	tools := toolDefs()

	res.StopReason = StopMaxIterations
loop:
	for res.Iterations < opts.MaxIterations {
		if ctx.Err() != nil {
			res.StopReason = StopCancelled
			break
		}
		res.Iterations++

		resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     o.cfg.Model,
			MaxTokens: o.cfg.MaxTokens,
			System:    system,
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			if ctx.Err() != nil {
				res.StopReason = StopCancelled
				break
			}
			r.jl.Error("agent model call failed on iteration %d: %v", res.Iterations, err)
			res.StopReason = StopModelError
			break
		}
		resp.Usage.LogCost(o.cfg.Model, "agent")
		messages = append(messages, anthropic.Message{Role: "assistant", Content: resp.Content})

		uses := resp.ToolUses()
		if len(uses) == 0 {
			res.StopReason = StopEndTurn
			break
		}

		results := make([]anthropic.ContentBlock, 0, len(uses))
		for _, use := range uses {
			out, isErr := o.execute(ctx, r, use)
			results = append(results, anthropic.ToolResult(use.ID, out, isErr))
		}
		messages = append(messages, anthropic.Message{Role: "user", Content: results})

		switch {
		case len(r.saved) >= r.maxCompanies:
			res.StopReason = StopMaxCompanies
			break loop
		case ctx.Err() != nil:
			res.StopReason = StopCancelled
			break loop
		}
	}

	res.Saved = len(r.saved)
	if err := o.repo.IncrementCounters(context.WithoutCancel(ctx), jobID, r.counters); err != nil {
		log.Error("update job counters", zap.Error(err))
	}
	if res.Saved == 0 {
		r.jl.Error("agent finished without saving any company (%s after %d iterations)", res.StopReason, res.Iterations)
	} else {
		r.jl.Info("agent finished: %d companies saved, %s after %d iterations", res.Saved, res.StopReason, res.Iterations)
	}
	return res, nil
}

// execute runs one tool call and returns its JSON result.
func (o *Orchestrator) execute(ctx context.Context, r *run, use anthropic.ContentBlock) (string, bool) {
	var (
		out any
		err error
	)
	switch use.Name {
	case ToolSearchCompanies:
		out, err = o.searchCompanies(ctx, r, use.Input)
	case ToolVisitWebsite:
		out, err = o.visitWebsite(ctx, use.Input)
	case ToolAnalyzeFit:
		out, err = o.analyzeFit(ctx, r, use.Input)
	case ToolSaveCompany:
		out, err = o.saveCompany(ctx, r, use.Input)
	case ToolRefineStrategy:
		out, err = o.refineStrategy(r, use.Input)
	default:
		err = eris.Errorf("unknown tool %q", use.Name)
	}
	if err != nil {
		zap.L().Warn("agent tool failed", zap.String("tool", use.Name), zap.Error(err))
		return errorJSON(err), true
	}
	b, err := json.Marshal(out)
	if err != nil {
		return errorJSON(err), true
	}
	return string(b), false
}

func errorJSON(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

func decodeInput[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, eris.Wrap(err, "invalid tool input")
	}
	return v, nil
}

func systemPrompt(p model.TargetingProfile, maxCompanies int) string {
	profile, _ := json.MarshalIndent(p, "", "  ")
	return fmt.Sprintf(`You are a B2B lead researcher. Find up to %d companies that match this targeting profile and save each one with at least one reachable contact.

Targeting profile:
%s

Work in a loop: search for candidate companies, visit their websites to confirm fit and find contact details, optionally score fit, then save qualified companies. Only save a company when you have a real email address or phone number from its website. Use refine_search_strategy when searches stop producing new companies. Stop calling tools when you have saved enough companies or cannot find more.`, maxCompanies, profile)
}

func userPrompt(prompt string, maxCompanies int) string {
	if prompt != "" {
		return prompt
	}
	return fmt.Sprintf("Find and save %d companies that match the targeting profile.", maxCompanies)
}
