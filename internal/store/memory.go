package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// MemoryStore keeps everything in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu         sync.Mutex
	pools      map[string]model.Pool
	companies  map[string]model.GlobalCompany // by dedupe key
	candidates map[string]model.LeadCandidate // by id
	order      []string                       // candidate ids in creation order
	contacts   []model.ContactCandidate
	jobs       map[string]model.LeadGenJob
	logs       []model.JobLogEntry
	events     []model.LeadSourceEvent
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		pools:      make(map[string]model.Pool),
		companies:  make(map[string]model.GlobalCompany),
		candidates: make(map[string]model.LeadCandidate),
		jobs:       make(map[string]model.LeadGenJob),
	}
}

func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) UpsertCompany(_ context.Context, u CompanyUpsert) (*model.GlobalCompany, error) {
	key, ok := normalize.CompanyDedupeKey(u.Domain)
	if !ok {
		return nil, eris.Errorf("memory: invalid domain %q", u.Domain)
	}
	domain, _ := normalize.Domain(u.Domain)
	ts := now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.companies[key]
	if !exists {
		c = model.GlobalCompany{
			ID:        uuid.New().String(),
			Domain:    domain,
			DedupeKey: key,
			Status:    model.CompanyStatusActive,
			FirstSeen: ts,
		}
	}
	mergeCompany(&c, u, ts)
	s.companies[key] = c

	out := cloneCompany(c)
	return &out, nil
}

func (s *MemoryStore) GetCompanyByDomain(_ context.Context, domain string) (*model.GlobalCompany, error) {
	key, ok := normalize.CompanyDedupeKey(domain)
	if !ok {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, exists := s.companies[key]
	if !exists {
		return nil, nil
	}
	out := cloneCompany(c)
	return &out, nil
}

func (s *MemoryStore) CreateCandidate(_ context.Context, c *model.LeadCandidate) (bool, error) {
	if c.Domain == "" || c.PoolID == "" {
		return false, eris.New("memory: candidate requires pool and domain")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if existing := s.candidates[id]; existing.PoolID == c.PoolID && existing.Domain == c.Domain {
			return false, nil
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	s.candidates[c.ID] = cloneCandidate(*c)
	s.order = append(s.order, c.ID)
	return true, nil
}

func (s *MemoryStore) GetCandidate(_ context.Context, poolID, domain string) (*model.LeadCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if c := s.candidates[id]; c.PoolID == poolID && c.Domain == domain {
			out := cloneCandidate(c)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateCandidate(_ context.Context, c *model.LeadCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[c.ID]; !ok {
		return eris.Wrapf(ErrNotFound, "candidate %s", c.ID)
	}
	c.UpdatedAt = now()
	s.candidates[c.ID] = cloneCandidate(*c)
	return nil
}

func (s *MemoryStore) ListCandidates(_ context.Context, poolID string, limit int) ([]model.LeadCandidate, error) {
	return s.listCandidates(poolID, limit, func(model.LeadCandidate) bool { return true }), nil
}

func (s *MemoryStore) ListCandidatesNeedingEnrichment(_ context.Context, poolID string, limit int) ([]model.LeadCandidate, error) {
	return s.listCandidates(poolID, limit, func(c model.LeadCandidate) bool { return c.NeedsEnrichment() }), nil
}

func (s *MemoryStore) listCandidates(poolID string, limit int, keep func(model.LeadCandidate) bool) []model.LeadCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.LeadCandidate
	for _, id := range s.order {
		c := s.candidates[id]
		if c.PoolID != poolID || !keep(c) {
			continue
		}
		out = append(out, cloneCandidate(c))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (s *MemoryStore) SaveContact(_ context.Context, c *model.ContactCandidate) (bool, error) {
	if !c.Reachable() {
		return false, eris.New("memory: contact requires email or phone")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.DedupeKey != nil {
		for i, existing := range s.contacts {
			if existing.PoolID == c.PoolID && existing.DedupeKey != nil && *existing.DedupeKey == *c.DedupeKey {
				c.ID = existing.ID
				c.CreatedAt = existing.CreatedAt
				c.Confidence = max(c.Confidence, existing.Confidence)
				s.contacts[i] = *c
				return false, nil
			}
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now()
	s.contacts = append(s.contacts, *c)
	return true, nil
}

func (s *MemoryStore) ListContacts(_ context.Context, candidateID string) ([]model.ContactCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ContactCandidate
	for _, c := range s.contacts {
		if c.CandidateID == candidateID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListPoolContacts(_ context.Context, poolID string) ([]model.ContactCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ContactCandidate
	for _, c := range s.contacts {
		if c.PoolID == poolID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateJob(_ context.Context, j *model.LeadGenJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = model.JobStatusPending
	}
	ts := now()
	j.CreatedAt, j.UpdatedAt = ts, ts
	stored := *j
	stored.QueryTemplates = slices.Clone(j.QueryTemplates)
	stored.Logs = nil
	s.jobs[j.ID] = stored
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.LeadGenJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	for _, l := range s.logs {
		if l.JobID == id {
			j.Logs = append(j.Logs, l)
		}
	}
	j.QueryTemplates = slices.Clone(j.QueryTemplates)
	return &j, nil
}

func (s *MemoryStore) UpdateJobStatus(_ context.Context, id string, status model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "job %s", id)
	}
	j.Status = status
	j.UpdatedAt = now()
	s.jobs[id] = j
	return nil
}

func (s *MemoryStore) StartJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "job %s", id)
	}
	if j.Status == model.JobStatusRunning {
		return eris.Wrapf(ErrJobRunning, "job %s", id)
	}
	j.Status = model.JobStatusRunning
	j.UpdatedAt = now()
	s.jobs[id] = j
	return nil
}

func (s *MemoryStore) IncrementCounters(_ context.Context, id string, delta model.JobCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "job %s", id)
	}
	j.Counters = j.Counters.Add(delta)
	j.UpdatedAt = now()
	s.jobs[id] = j
	return nil
}

func (s *MemoryStore) AppendLogs(_ context.Context, entries []model.JobLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entries...)
	return nil
}

func (s *MemoryStore) ListLogs(_ context.Context, jobID string) ([]model.JobLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.JobLogEntry
	for _, l := range s.logs {
		if l.JobID == jobID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordSourceEvent(_ context.Context, e *model.LeadSourceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *MemoryStore) ListSourceEvents(_ context.Context, jobID string) ([]model.LeadSourceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.LeadSourceEvent
	for _, e := range s.events {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) SavePool(_ context.Context, p *model.Pool) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *p
	stored.Targeting = p.Targeting.Clone()
	s.pools[p.ID] = stored
	return nil
}

func (s *MemoryStore) GetPool(_ context.Context, id string) (*model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "pool %s", id)
	}
	p.Targeting = p.Targeting.Clone()
	return &p, nil
}

// mergeCompany folds a sighting into c: non-empty fields win, tech stacks
// union, provenance appends, and LastSeen advances.
func mergeCompany(c *model.GlobalCompany, u CompanyUpsert, ts time.Time) {
	if u.CompanyName != "" {
		c.CompanyName = u.CompanyName
	}
	if u.Description != "" {
		c.Description = u.Description
	}
	if u.Industry != "" {
		c.Industry = u.Industry
	}
	c.TechStack = model.MergeTechStack(c.TechStack, u.TechStack)
	c.Provenance = append(slices.Clone(c.Provenance), provenanceOf(u, ts))
	c.LastSeen = ts
}

func provenanceOf(u CompanyUpsert, ts time.Time) model.ProvenanceEntry {
	p := u.Provenance
	if p.Timestamp.IsZero() {
		p.Timestamp = ts
	}
	return p
}

func cloneCompany(c model.GlobalCompany) model.GlobalCompany {
	c.TechStack = slices.Clone(c.TechStack)
	c.Provenance = slices.Clone(c.Provenance)
	return c
}

func cloneCandidate(c model.LeadCandidate) model.LeadCandidate {
	c.TechStack = slices.Clone(c.TechStack)
	return c
}
