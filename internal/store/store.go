// Package store persists lead-generation entities behind typed repositories.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrNotFound is returned when a job or pool lookup by ID misses.
var ErrNotFound = eris.New("store: not found")

// ErrJobRunning is returned by StartJob when the job is already RUNNING.
var ErrJobRunning = eris.New("store: job already running")

// CompanyUpsert carries the fields a sighting contributes to a GlobalCompany.
// Empty strings leave existing values untouched; TechStack is unioned and
// Provenance is appended.
type CompanyUpsert struct {
	Domain      string
	CompanyName string
	Description string
	Industry    string
	TechStack   []string
	Provenance  model.ProvenanceEntry
}

// CompanyRepository manages the cross-tenant company index.
type CompanyRepository interface {
	// UpsertCompany creates the row for a new domain or merges into the
	// existing one keyed by its dedupe key.
	UpsertCompany(ctx context.Context, u CompanyUpsert) (*model.GlobalCompany, error)
	// GetCompanyByDomain returns nil, nil when the domain is unknown.
	GetCompanyByDomain(ctx context.Context, domain string) (*model.GlobalCompany, error)
}

// CandidateRepository manages per-pool lead candidates.
type CandidateRepository interface {
	// CreateCandidate inserts c unless (pool, domain) already exists. It
	// reports whether a row was created.
	CreateCandidate(ctx context.Context, c *model.LeadCandidate) (bool, error)
	// GetCandidate returns nil, nil when the pool has no such domain.
	GetCandidate(ctx context.Context, poolID, domain string) (*model.LeadCandidate, error)
	UpdateCandidate(ctx context.Context, c *model.LeadCandidate) error
	ListCandidates(ctx context.Context, poolID string, limit int) ([]model.LeadCandidate, error)
	// ListCandidatesNeedingEnrichment returns candidates missing a
	// description or industry, oldest first.
	ListCandidatesNeedingEnrichment(ctx context.Context, poolID string, limit int) ([]model.LeadCandidate, error)
}

// ContactRepository manages contacts attached to candidates.
type ContactRepository interface {
	// SaveContact inserts c, or refreshes the existing contact sharing its
	// dedupe key within the pool. It reports whether a row was created.
	SaveContact(ctx context.Context, c *model.ContactCandidate) (bool, error)
	ListContacts(ctx context.Context, candidateID string) ([]model.ContactCandidate, error)
	ListPoolContacts(ctx context.Context, poolID string) ([]model.ContactCandidate, error)
}

// JobRepository manages job records, their logs, and source events.
type JobRepository interface {
	CreateJob(ctx context.Context, j *model.LeadGenJob) error
	GetJob(ctx context.Context, id string) (*model.LeadGenJob, error)
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error
	// StartJob moves a job to RUNNING unless it already is, in one
	// conditional write.
	StartJob(ctx context.Context, id string) error
	IncrementCounters(ctx context.Context, id string, delta model.JobCounters) error
	// AppendLogs writes a batch of entries, possibly spanning jobs.
	AppendLogs(ctx context.Context, entries []model.JobLogEntry) error
	ListLogs(ctx context.Context, jobID string) ([]model.JobLogEntry, error)
	RecordSourceEvent(ctx context.Context, e *model.LeadSourceEvent) error
	ListSourceEvents(ctx context.Context, jobID string) ([]model.LeadSourceEvent, error)
}

// PoolRepository manages pools and their targeting profiles.
type PoolRepository interface {
	SavePool(ctx context.Context, p *model.Pool) error
	GetPool(ctx context.Context, id string) (*model.Pool, error)
}

// Store bundles every repository with lifecycle management.
type Store interface {
	CompanyRepository
	CandidateRepository
	ContactRepository
	JobRepository
	PoolRepository

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

func now() time.Time {
	return time.Now().UTC()
}
