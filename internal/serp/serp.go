// Package serp turns a job's targeting profile into search queries, runs them
// with progressive loosening, and records every discovered domain as a lead
// candidate.
package serp

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/joblog"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Defaults for Config fields left zero.
const (
	DefaultQueryDelay = 1500 * time.Millisecond
	DefaultMaxQueries = 20
	DefaultMaxResults = 10
)

const (
	maxAttempts   = 3
	enoughDomains = 10
	maxSnippets   = 5
)

// ZeroResultsMessage is logged at ERROR when no attempt finds a domain.
const ZeroResultsMessage = "no company domains found after all search attempts; likely causes: " +
	"the search provider blocked or rate limited the browser, the targeting profile is too narrow, " +
	"every result was an excluded directory or social site, or the network is unavailable"

// Repository is the persistence the orchestrator needs.
type Repository interface {
	store.CompanyRepository
	store.CandidateRepository
	store.JobRepository
	store.PoolRepository
}

// Config tunes a run.
type Config struct {
	// QueryDelay spaces provider calls. Negative disables throttling.
	QueryDelay time.Duration
	MaxQueries int
	MaxResults int
	// Templates are used when the job carries none.
	Templates []string
}

// Result summarizes one run.
type Result struct {
	CreatedCandidates int      `json:"created_candidates"`
	SourceEvents      int      `json:"source_events"`
	UniqueDomains     []string `json:"unique_domains"`
}

// Orchestrator runs the search stage of a job.
type Orchestrator struct {
	repo     Repository
	provider search.Provider
	ai       *ai.Service
	logs     *joblog.Sink
	cfg      Config
	now      func() time.Time
}

// New builds an Orchestrator. svc may be an unconfigured ai.Service.
func New(repo Repository, provider search.Provider, svc *ai.Service, logs *joblog.Sink, cfg Config) *Orchestrator {
	if cfg.QueryDelay == 0 {
		cfg.QueryDelay = DefaultQueryDelay
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = DefaultMaxQueries
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &Orchestrator{
		repo:     repo,
		provider: provider,
		ai:       svc,
		logs:     logs,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunForJob searches for the job's pool and creates candidates for new
// domains. It fails only when the job or its pool cannot be loaded.
func (o *Orchestrator) RunForJob(ctx context.Context, jobID, userID string) (Result, error) {
	res := Result{UniqueDomains: []string{}}
	job, err := o.repo.GetJob(ctx, jobID)
	if err != nil {
		return res, eris.Wrapf(err, "serp: load job %s", jobID)
	}
	pool, err := o.repo.GetPool(ctx, job.PoolID)
	if err != nil {
		return res, eris.Wrapf(err, "serp: load pool %s", job.PoolID)
	}
	profile := pool.Targeting
	maxCompanies := profile.MaxCompanies()
	target := min(enoughDomains, maxCompanies)

	log := zap.L().With(zap.String("component", "serp"), zap.String("job_id", jobID), zap.String("user_id", userID))
	jl := o.logs.For(jobID)
	exclude := search.NewFilter(profile.ExcludeDomains...)
	limiter := o.limiter()

	var (
		domains []string
		seen    = make(map[string]bool)
		ran     = make(map[string]bool)
		queries int
	)

attempts:
	for attempt, strategy := range Strategies {
		if attempt >= maxAttempts || len(domains) >= target {
			break
		}
		batch := o.queriesFor(ctx, attempt, strategy, job, profile)
		jl.Info("search attempt %d (%s): %d queries, %d domains so far", attempt+1, strategy, len(batch), len(domains))

		for _, q := range batch {
			if ran[q] {
				continue
			}
			ran[q] = true
			if len(domains) >= maxCompanies {
				break attempts
			}
			if err := limiter.Wait(ctx); err != nil {
				jl.Warn("search interrupted: %v", err)
				break attempts
			}

			results, err := o.provider.Search(ctx, q, o.cfg.MaxResults)
			if err != nil {
				jl.Warn("query %q failed: %v", q, err)
			}
			queries++

			var found []string
			for _, r := range results {
				if r.Domain == "" || exclude.Excluded(r.Domain) {
					continue
				}
				found = append(found, r.Domain)
				if !seen[r.Domain] {
					seen[r.Domain] = true
					domains = append(domains, r.Domain)
				}
			}
			if o.recordEvent(ctx, job.ID, q, strategy, results, found) {
				res.SourceEvents++
			}
		}
	}

	if len(domains) == 0 {
		jl.Error("%s", ZeroResultsMessage)
	}
	if len(domains) > maxCompanies {
		domains = domains[:maxCompanies]
	}
	res.UniqueDomains = append(res.UniqueDomains, domains...)

	for _, d := range domains {
		created, err := o.persistDomain(ctx, job, d)
		if err != nil {
			jl.Warn("could not save %s: %v", d, err)
			continue
		}
		if created {
			res.CreatedCandidates++
		}
	}

	if err := o.repo.IncrementCounters(ctx, jobID, model.JobCounters{
		Queries:           queries,
		SourceEvents:      res.SourceEvents,
		CandidatesCreated: res.CreatedCandidates,
	}); err != nil {
		log.Error("update job counters", zap.Error(err))
	}
	jl.Info("search finished: %d queries, %d unique domains, %d new candidates", queries, len(domains), res.CreatedCandidates)
	return res, nil
}

func (o *Orchestrator) limiter() *rate.Limiter {
	if o.cfg.QueryDelay < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(o.cfg.QueryDelay), 1)
}

// queriesFor returns the queries for one attempt. The first attempt prefers
// AI generation when the job enables it.
func (o *Orchestrator) queriesFor(ctx context.Context, attempt int, s SearchStrategy, job *model.LeadGenJob, profile model.TargetingProfile) []string {
	p := s.Apply(profile)
	if s.Generic() {
		return ExpandTemplates(GenericTemplates, p, o.cfg.MaxQueries)
	}
	if attempt == 0 && job.Providers.AIQueries && o.ai.Configured() {
		return o.ai.GenerateQueries(ctx, p, aiQueryCount(profile.MaxCompanies()))
	}
	templates := job.QueryTemplates
	if len(templates) == 0 {
		templates = o.cfg.Templates
	}
	if len(templates) == 0 {
		templates = DefaultTemplates
	}
	if q := ExpandTemplates(templates, p, o.cfg.MaxQueries); len(q) > 0 {
		return q
	}
	return ExpandTemplates(GenericTemplates, p, o.cfg.MaxQueries)
}

func (o *Orchestrator) recordEvent(ctx context.Context, jobID, query string, s SearchStrategy, results []search.Result, domains []string) bool {
	ev := &model.LeadSourceEvent{
		JobID:     jobID,
		Type:      search.EventType(o.provider.Name()),
		Query:     query,
		FetchedAt: o.now(),
		Metadata: model.SourceEventMetadata{
			Domains:      domains,
			TotalResults: len(results),
			Strategy:     s.String(),
		},
	}
	if len(results) > 0 {
		ev.URL = results[0].URL
	}
	for _, r := range results {
		if r.Snippet != "" && len(ev.Metadata.Snippets) < maxSnippets {
			ev.Metadata.Snippets = append(ev.Metadata.Snippets, r.Snippet)
		}
	}
	if err := o.repo.RecordSourceEvent(ctx, ev); err != nil {
		zap.L().Warn("record source event", zap.String("job_id", jobID), zap.String("query", query), zap.Error(err))
		return false
	}
	return true
}

// persistDomain upserts the global company and creates the pool candidate
// when missing. It reports whether a candidate was created.
func (o *Orchestrator) persistDomain(ctx context.Context, job *model.LeadGenJob, domain string) (bool, error) {
	existing, err := o.repo.GetCompanyByDomain(ctx, domain)
	if err != nil {
		return false, err
	}
	name := ""
	if existing == nil || existing.CompanyName == "" {
		name = model.DomainCompanyName(domain)
	}
	company, err := o.repo.UpsertCompany(ctx, store.CompanyUpsert{
		Domain:      domain,
		CompanyName: name,
		Provenance:  model.ProvenanceEntry{Source: model.SourceSERP, JobID: job.ID, Timestamp: o.now()},
	})
	if err != nil {
		return false, err
	}

	candidate, err := o.repo.GetCandidate(ctx, job.PoolID, domain)
	if err != nil {
		return false, err
	}
	if candidate != nil {
		return false, nil
	}
	return o.repo.CreateCandidate(ctx, &model.LeadCandidate{
		PoolID:      job.PoolID,
		CompanyID:   company.ID,
		Domain:      domain,
		CompanyName: company.CompanyName,
		Description: company.Description,
		Industry:    company.Industry,
		TechStack:   company.TechStack,
		HomepageURL: "https://" + domain,
		Score:       model.DefaultCandidateScore,
		Status:      model.CandidateStatusNew,
	})
}
