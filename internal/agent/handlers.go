package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/ai"
	"github.com/sells-group/leadgen-cli/internal/contact"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/store"
)

type searchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchOutput struct {
	Results []search.Result `json:"results"`
}

func (o *Orchestrator) searchCompanies(ctx context.Context, r *run, raw json.RawMessage) (any, error) {
	in, err := decodeInput[searchInput](raw)
	if err != nil {
		return nil, err
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return nil, eris.New("query is required")
	}
	if in.Limit <= 0 || in.Limit > search.MaxResults {
		in.Limit = DefaultSearchLimit
	}

	results, err := o.provider.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "search failed")
	}
	exclude := search.NewFilter(r.profile.ExcludeDomains...)
	kept := make([]search.Result, 0, len(results))
	domains := make([]string, 0, len(results))
	for _, res := range results {
		if exclude.Excluded(res.Domain) {
			continue
		}
		kept = append(kept, res)
		domains = append(domains, res.Domain)
	}

	r.counters.Queries++
	ev := &model.LeadSourceEvent{
		JobID:     r.job.ID,
		Type:      search.EventType(o.provider.Name()),
		Query:     in.Query,
		FetchedAt: o.now(),
		Metadata:  model.SourceEventMetadata{Domains: domains, TotalResults: len(results), Strategy: "agent"},
	}
	if len(kept) > 0 {
		ev.URL = kept[0].URL
	}
	if err := o.repo.RecordSourceEvent(ctx, ev); err != nil {
		r.jl.Warn("agent could not record search %q: %v", in.Query, err)
	} else {
		r.counters.SourceEvents++
	}
	return searchOutput{Results: kept}, nil
}

type visitInput struct {
	URL string `json:"url"`
}

func (o *Orchestrator) visitWebsite(ctx context.Context, raw json.RawMessage) (any, error) {
	in, err := decodeInput[visitInput](raw)
	if err != nil {
		return nil, err
	}
	u, ok := normalize.URL(in.URL)
	if !ok {
		return nil, eris.Errorf("invalid url %q", in.URL)
	}
	page := o.extractor.Extract(ctx, u)
	if page.Failed() {
		return nil, eris.Errorf("could not load %s: %s", u, page.Err)
	}
	return page, nil
}

type fitInput struct {
	Domain      string `json:"domain"`
	CompanyName string `json:"company_name"`
	Description string `json:"description"`
	Industry    string `json:"industry"`
}

func (o *Orchestrator) analyzeFit(ctx context.Context, r *run, raw json.RawMessage) (any, error) {
	in, err := decodeInput[fitInput](raw)
	if err != nil {
		return nil, err
	}
	domain, ok := normalize.Domain(in.Domain)
	if !ok {
		return nil, eris.Errorf("invalid domain %q", in.Domain)
	}
	fit := o.ai.ScoreFit(ctx, ai.Company{
		Domain:      domain,
		Name:        in.CompanyName,
		Description: in.Description,
		Industry:    in.Industry,
	}, r.profile)
	r.fit[domain] = fit.Score
	return fit, nil
}

type saveInput struct {
	Domain      string           `json:"domain"`
	CompanyName string           `json:"company_name"`
	Description string           `json:"description"`
	Industry    string           `json:"industry"`
	TechStack   []string         `json:"tech_stack"`
	Contacts    []contact.Fields `json:"contacts"`
}

type saveOutput struct {
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	CompanyID      string `json:"company_id,omitempty"`
	CandidateID    string `json:"candidate_id,omitempty"`
	ContactsSaved  int    `json:"contacts_saved"`
	SavedCompanies int    `json:"saved_companies"`
	Remaining      int    `json:"remaining"`
}

func (o *Orchestrator) rejectSave(r *run, msg string) saveOutput {
	return saveOutput{Success: false, Error: msg, SavedCompanies: len(r.saved), Remaining: r.maxCompanies - len(r.saved)}
}

// saveCompany persists a company only when at least one contact has a
// usable channel. Rejections are results, not tool errors.
func (o *Orchestrator) saveCompany(ctx context.Context, r *run, raw json.RawMessage) (any, error) {
	in, err := decodeInput[saveInput](raw)
	if err != nil {
		return nil, err
	}
	domain, ok := normalize.Domain(in.Domain)
	if !ok {
		return o.rejectSave(r, "invalid domain"), nil
	}
	if !r.saved[domain] && len(r.saved) >= r.maxCompanies {
		return o.rejectSave(r, "company limit reached"), nil
	}

	var reachable []contact.Fields
	for _, c := range in.Contacts {
		if _, ok := contact.Build(o.scorer, contact.Owner{Domain: domain}, c); ok {
			reachable = append(reachable, c)
		}
	}
	if len(reachable) == 0 {
		r.jl.Warn("agent save of %s rejected: no contact with a valid email or phone", domain)
		return o.rejectSave(r, "at least one contact must have a valid email or phone"), nil
	}

	name := strings.TrimSpace(in.CompanyName)
	description := strings.TrimSpace(in.Description)
	industry := strings.TrimSpace(in.Industry)
	tech := model.MergeTechStack(in.TechStack)
	if name == "" || description == "" || industry == "" {
		cls := o.ai.ClassifyCompany(ctx, domain, description)
		if industry == "" {
			industry = cls.Industry
		}
		if description == "" {
			description = classificationSummary(cls)
		}
		tech = model.MergeTechStack(tech, cls.TechStack)
	}
	if name == "" {
		name = model.DomainCompanyName(domain)
	}

	company, err := o.repo.UpsertCompany(ctx, store.CompanyUpsert{
		Domain:      domain,
		CompanyName: name,
		Description: description,
		Industry:    industry,
		TechStack:   tech,
		Provenance:  model.ProvenanceEntry{Source: model.SourceAgent, JobID: r.job.ID, Timestamp: o.now()},
	})
	if err != nil {
		return nil, eris.Wrap(err, "save company")
	}

	candidate, err := o.upsertCandidate(ctx, r, company, domain)
	if err != nil {
		return nil, err
	}

	owner := contact.Owner{PoolID: candidate.PoolID, CandidateID: candidate.ID, Domain: domain}
	limit := r.profile.MaxContactsPerCompany()
	saved := 0
	for _, f := range reachable {
		if saved == limit {
			break
		}
		c, _ := contact.Build(o.scorer, owner, f)
		created, err := o.repo.SaveContact(ctx, c)
		if err != nil {
			r.jl.Warn("agent could not save contact for %s: %v", domain, err)
			continue
		}
		if created {
			saved++
		}
	}
	r.counters.ContactsSaved += saved

	r.saved[domain] = true
	r.jl.Info("agent saved %s with %d contacts", domain, saved)
	return saveOutput{
		Success:        true,
		CompanyID:      company.ID,
		CandidateID:    candidate.ID,
		ContactsSaved:  saved,
		SavedCompanies: len(r.saved),
		Remaining:      r.maxCompanies - len(r.saved),
	}, nil
}

func (o *Orchestrator) upsertCandidate(ctx context.Context, r *run, company *model.GlobalCompany, domain string) (*model.LeadCandidate, error) {
	score := model.DefaultCandidateScore
	if s, ok := r.fit[domain]; ok {
		score = s
	}
	existing, err := o.repo.GetCandidate(ctx, r.job.PoolID, domain)
	if err != nil {
		return nil, eris.Wrap(err, "load candidate")
	}
	if existing != nil {
		existing.CompanyID = company.ID
		existing.CompanyName = company.CompanyName
		if existing.Description == "" {
			existing.Description = company.Description
		}
		if existing.Industry == "" {
			existing.Industry = company.Industry
		}
		existing.TechStack = model.MergeTechStack(existing.TechStack, company.TechStack)
		existing.Score = max(existing.Score, score)
		if err := o.repo.UpdateCandidate(ctx, existing); err != nil {
			return nil, eris.Wrap(err, "update candidate")
		}
		return existing, nil
	}

	c := &model.LeadCandidate{
		PoolID:      r.job.PoolID,
		CompanyID:   company.ID,
		Domain:      domain,
		CompanyName: company.CompanyName,
		Description: company.Description,
		Industry:    company.Industry,
		TechStack:   company.TechStack,
		HomepageURL: "https://" + domain,
		Score:       score,
		Status:      model.CandidateStatusNew,
	}
	created, err := o.repo.CreateCandidate(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "create candidate")
	}
	if created {
		r.counters.CandidatesCreated++
		return c, nil
	}
	// Lost a race with another writer; use the stored row.
	stored, err := o.repo.GetCandidate(ctx, r.job.PoolID, domain)
	if err != nil {
		return nil, eris.Wrap(err, "reload candidate")
	}
	if stored == nil {
		return nil, eris.Errorf("candidate %s vanished", domain)
	}
	return stored, nil
}

func classificationSummary(c ai.Classification) string {
	var parts []string
	if c.BusinessModel != "" {
		parts = append(parts, c.BusinessModel)
	}
	if c.TargetMarket != "" {
		parts = append(parts, "serving "+c.TargetMarket)
	}
	return strings.Join(parts, ", ")
}

type refineInput struct {
	Reasoning      string `json:"reasoning"`
	CurrentResults int    `json:"current_results"`
	TargetResults  int    `json:"target_results"`
}

type refineOutput struct {
	Continue bool `json:"continue"`
}

func (o *Orchestrator) refineStrategy(r *run, raw json.RawMessage) (any, error) {
	in, err := decodeInput[refineInput](raw)
	if err != nil {
		return nil, err
	}
	r.jl.Info("agent strategy (%d/%d): %s", in.CurrentResults, in.TargetResults, strings.TrimSpace(in.Reasoning))
	return refineOutput{Continue: in.CurrentResults < in.TargetResults}, nil
}
