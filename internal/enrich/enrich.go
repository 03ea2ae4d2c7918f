// Package enrich fills in descriptive fields for a pool's lead candidates by
// visiting their homepages and, when enabled, classifying them with AI.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/contact"
	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/joblog"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Defaults for Config fields left zero.
const (
	DefaultDelay          = 2 * time.Second
	DefaultMaxEnrichments = 25
)

// Repository is the persistence the orchestrator needs.
type Repository interface {
	store.CompanyRepository
	store.CandidateRepository
	store.ContactRepository
	store.JobRepository
	store.PoolRepository
}

// Config tunes a run.
type Config struct {
	// Delay spaces homepage visits. Negative disables throttling.
	Delay          time.Duration
	MaxEnrichments int
}

// Result counts the outcome of one run.
type Result struct {
	Enriched int `json:"enriched"`
	Failed   int `json:"failed"`
}

// Orchestrator enriches candidates one at a time.
type Orchestrator struct {
	repo       Repository
	extractor  extract.Extractor
	ai         *ai.Service
	logs       *joblog.Sink
	scorer     *normalize.Scorer
	industries *normalize.IndustryClassifier
	cfg        Config
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScorer sets the confidence weights used for contacts.
func WithScorer(s *normalize.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithIndustryClassifier sets the keyword classifier used when AI gives no industry.
func WithIndustryClassifier(c *normalize.IndustryClassifier) Option {
	return func(o *Orchestrator) { o.industries = c }
}

// New builds an Orchestrator. svc may be an unconfigured ai.Service.
func New(repo Repository, ex extract.Extractor, svc *ai.Service, logs *joblog.Sink, cfg Config, opts ...Option) *Orchestrator {
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.MaxEnrichments <= 0 {
		cfg.MaxEnrichments = DefaultMaxEnrichments
	}
	o := &Orchestrator{
		repo:      repo,
		extractor: ex,
		ai:        svc,
		logs:      logs,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.scorer == nil {
		o.scorer = normalize.NewScorer(normalize.DefaultWeights())
	}
	if o.industries == nil {
		o.industries = normalize.NewIndustryClassifier(nil)
	}
	return o
}

func (o *Orchestrator) limiter() *rate.Limiter {
	if o.cfg.Delay < 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(o.cfg.Delay), 1)
}

// EnrichCompaniesForJob enriches up to maxEnrichments candidates of the job's
// pool that still lack a description or industry, oldest first. Per-candidate
// failures are counted, not returned. maxEnrichments <= 0 uses the configured
// default.
func (o *Orchestrator) EnrichCompaniesForJob(ctx context.Context, jobID string, maxEnrichments int, userID string) (Result, error) {
	var res Result
	job, err := o.repo.GetJob(ctx, jobID)
	if err != nil {
		return res, eris.Wrapf(err, "enrich: load job %s", jobID)
	}
	if maxEnrichments <= 0 {
		maxEnrichments = o.cfg.MaxEnrichments
	}
	log := zap.L().With(zap.String("component", "enrich"), zap.String("job_id", jobID), zap.String("user_id", userID))
	jl := o.logs.For(jobID)

	profile := model.TargetingProfile{}
	if pool, err := o.repo.GetPool(ctx, job.PoolID); err == nil {
		profile = pool.Targeting
	} else {
		log.Warn("pool not found, using default contact limit", zap.String("pool_id", job.PoolID), zap.Error(err))
	}

	candidates, err := o.repo.ListCandidatesNeedingEnrichment(ctx, job.PoolID, maxEnrichments)
	if err != nil {
		jl.Error("enrichment could not list candidates: %v", err)
		return res, nil
	}
	jl.Info("enriching %d candidates", len(candidates))

	limiter := o.limiter()
	contactsSaved := 0
	for i := range candidates {
		if err := limiter.Wait(ctx); err != nil {
			jl.Warn("enrichment interrupted after %d candidates", i)
			break
		}
		saved, ok := o.enrichOne(ctx, job, profile, &candidates[i], jl)
		if !ok {
			res.Failed++
			continue
		}
		res.Enriched++
		contactsSaved += saved
	}

	if err := o.repo.IncrementCounters(ctx, jobID, model.JobCounters{
		Enriched:      res.Enriched,
		EnrichFailed:  res.Failed,
		ContactsSaved: contactsSaved,
	}); err != nil {
		log.Error("update job counters", zap.Error(err))
	}
	jl.Info("enrichment finished: %d enriched, %d failed, %d contacts saved", res.Enriched, res.Failed, contactsSaved)
	return res, nil
}

// enrichOne reports the number of contacts saved and whether the candidate
// was enriched.
func (o *Orchestrator) enrichOne(ctx context.Context, job *model.LeadGenJob, profile model.TargetingProfile, c *model.LeadCandidate, jl *joblog.JobLog) (int, bool) {
	url := "https://" + c.Domain
	page := o.extractor.Extract(ctx, url)
	if page.Failed() {
		jl.Warn("enrichment failed for %s: %s", c.Domain, page.Err)
		return 0, false
	}

	description := firstNonEmpty(page.DescriptionGuess, page.MetaDescription, page.OGDescription, c.Description)

	var cls ai.Classification
	if job.Providers.AIAnalysis {
		cls = o.ai.ClassifyCompany(ctx, c.Domain, description)
	}
	tech := model.MergeTechStack(page.TechStack, cls.TechStack)

	name := c.CompanyName
	if page.CompanyNameGuess != "" && (name == "" || name == model.DomainCompanyName(c.Domain)) {
		name = page.CompanyNameGuess
	}

	industry := cls.Industry
	if industry == "" {
		industry, _ = o.industries.Infer(name, page.Title, description,
			strings.Join(page.Keywords, " "), strings.Join(tech, " "))
	}

	company, err := o.repo.UpsertCompany(ctx, store.CompanyUpsert{
		Domain:      c.Domain,
		CompanyName: name,
		Description: description,
		Industry:    industry,
		TechStack:   tech,
		Provenance:  model.ProvenanceEntry{Source: model.SourceEnrichment, JobID: job.ID, Timestamp: o.now()},
	})
	if err != nil {
		jl.Error("enrichment could not update company %s: %v", c.Domain, err)
		return 0, false
	}

	c.CompanyID = company.ID
	c.CompanyName = name
	if c.Description == "" {
		c.Description = description
	}
	if c.Industry == "" {
		c.Industry = industry
	}
	c.TechStack = model.MergeTechStack(c.TechStack, tech)
	if c.HomepageURL == "" {
		c.HomepageURL = url
	}
	c.Score = max(c.Score, page.Confidence, cls.Confidence)
	if err := o.repo.UpdateCandidate(ctx, c); err != nil {
		jl.Error("enrichment could not update candidate %s: %v", c.Domain, err)
		return 0, false
	}

	return o.saveContacts(ctx, profile, c, page, jl), true
}

func (o *Orchestrator) saveContacts(ctx context.Context, profile model.TargetingProfile, c *model.LeadCandidate, page *extract.Page, jl *joblog.JobLog) int {
	existing, err := o.repo.ListContacts(ctx, c.ID)
	if err != nil {
		jl.Warn("could not list contacts for %s: %v", c.Domain, err)
		return 0
	}
	room := profile.MaxContactsPerCompany() - len(existing)
	owner := contact.Owner{PoolID: c.PoolID, CandidateID: c.ID, Domain: c.Domain}

	saved := 0
	for _, ct := range contact.FromPage(o.scorer, owner, page.Emails, page.Phones, room) {
		if ct.DedupeKey == nil && hasPhone(existing, ct.Phone) {
			continue
		}
		created, err := o.repo.SaveContact(ctx, ct)
		if err != nil {
			jl.Warn("could not save contact for %s: %v", c.Domain, err)
			continue
		}
		if created {
			saved++
		}
	}
	return saved
}

func hasPhone(contacts []model.ContactCandidate, phone string) bool {
	for _, c := range contacts {
		if c.Phone == phone {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
