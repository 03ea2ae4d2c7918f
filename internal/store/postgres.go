package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/db"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
	raw  *pgxpool.Pool // nil when constructed over a mock
}

// NewPostgres connects to Postgres and returns a store.
func NewPostgres(ctx context.Context, connString string, cfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, raw: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Migrate is unavailable unless
// the pool is a *pgxpool.Pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	s := &PostgresStore{pool: pool}
	if raw, ok := pool.(*pgxpool.Pool); ok {
		s.raw = raw
	}
	return s
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.raw == nil {
		return eris.New("postgres: migrate requires a pgxpool connection")
	}
	sqlDB := stdlib.OpenDBFromPool(s.raw)
	defer sqlDB.Close() //nolint:errcheck
	return runMigrations(ctx, sqlDB, "postgres", "migrations/postgres")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Companies ---

const pgCompanyColumns = `id, domain, dedupe_key, company_name, description, industry, tech_stack, status, provenance, first_seen, last_seen`

// The merge happens in one statement so concurrent sightings of the same
// domain never lose a provenance entry.
const pgUpsertCompany = `INSERT INTO global_companies (` + pgCompanyColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'ACTIVE', $8, $9, $9)
ON CONFLICT (dedupe_key) DO UPDATE SET
	company_name = COALESCE(NULLIF(EXCLUDED.company_name, ''), global_companies.company_name),
	description  = COALESCE(NULLIF(EXCLUDED.description, ''), global_companies.description),
	industry     = COALESCE(NULLIF(EXCLUDED.industry, ''), global_companies.industry),
	tech_stack   = (
		SELECT COALESCE(jsonb_agg(DISTINCT t ORDER BY t), '[]'::jsonb)
		FROM jsonb_array_elements_text(global_companies.tech_stack || EXCLUDED.tech_stack) AS t
	),
	provenance   = global_companies.provenance || EXCLUDED.provenance,
	last_seen    = EXCLUDED.last_seen
RETURNING ` + pgCompanyColumns

func (s *PostgresStore) UpsertCompany(ctx context.Context, u CompanyUpsert) (*model.GlobalCompany, error) {
	key, ok := normalize.CompanyDedupeKey(u.Domain)
	if !ok {
		return nil, eris.Errorf("postgres: invalid domain %q", u.Domain)
	}
	domain, _ := normalize.Domain(u.Domain)
	ts := now()

	tech, err := json.Marshal(model.MergeTechStack(u.TechStack))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal tech stack")
	}
	prov, err := json.Marshal([]model.ProvenanceEntry{provenanceOf(u, ts)})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal provenance")
	}

	row := s.pool.QueryRow(ctx, pgUpsertCompany,
		uuid.New().String(), domain, key, u.CompanyName, u.Description, u.Industry, tech, prov, ts)
	c, err := pgScanCompany(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert company %s", domain)
	}
	return c, nil
}

func (s *PostgresStore) GetCompanyByDomain(ctx context.Context, domain string) (*model.GlobalCompany, error) {
	key, ok := normalize.CompanyDedupeKey(domain)
	if !ok {
		return nil, nil
	}
	c, err := pgScanCompany(s.pool.QueryRow(ctx,
		`SELECT `+pgCompanyColumns+` FROM global_companies WHERE dedupe_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %s", domain)
	}
	return c, nil
}

func pgScanCompany(row pgx.Row) (*model.GlobalCompany, error) {
	var c model.GlobalCompany
	var tech, prov []byte
	var status string
	if err := row.Scan(&c.ID, &c.Domain, &c.DedupeKey, &c.CompanyName, &c.Description, &c.Industry,
		&tech, &status, &prov, &c.FirstSeen, &c.LastSeen); err != nil {
		return nil, err
	}
	c.Status = model.CompanyStatus(status)
	if err := json.Unmarshal(tech, &c.TechStack); err != nil {
		return nil, eris.Wrap(err, "unmarshal tech stack")
	}
	if err := json.Unmarshal(prov, &c.Provenance); err != nil {
		return nil, eris.Wrap(err, "unmarshal provenance")
	}
	return &c, nil
}

// --- Candidates ---

const pgCandidateColumns = `id, pool_id, company_id, domain, company_name, description, industry, tech_stack, homepage_url, score, status, created_at, updated_at`

func (s *PostgresStore) CreateCandidate(ctx context.Context, c *model.LeadCandidate) (bool, error) {
	if c.Domain == "" || c.PoolID == "" {
		return false, eris.New("postgres: candidate requires pool and domain")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	tech, err := json.Marshal(nonNil(c.TechStack))
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal tech stack")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO lead_candidates (`+pgCandidateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (pool_id, domain) DO NOTHING`,
		c.ID, c.PoolID, nullable(c.CompanyID), c.Domain, c.CompanyName, c.Description, c.Industry,
		tech, c.HomepageURL, c.Score, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert candidate %s", c.Domain)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, poolID, domain string) (*model.LeadCandidate, error) {
	c, err := pgScanCandidate(s.pool.QueryRow(ctx,
		`SELECT `+pgCandidateColumns+` FROM lead_candidates WHERE pool_id = $1 AND domain = $2`, poolID, domain))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get candidate %s", domain)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCandidate(ctx context.Context, c *model.LeadCandidate) error {
	c.UpdatedAt = now()
	tech, err := json.Marshal(nonNil(c.TechStack))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tech stack")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_candidates SET company_id = $2, company_name = $3, description = $4, industry = $5,
		tech_stack = $6, homepage_url = $7, score = $8, status = $9, updated_at = $10 WHERE id = $1`,
		c.ID, nullable(c.CompanyID), c.CompanyName, c.Description, c.Industry,
		tech, c.HomepageURL, c.Score, string(c.Status), c.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update candidate %s", c.ID)
	}
	return checkTag(tag, "candidate", c.ID)
}

func (s *PostgresStore) ListCandidates(ctx context.Context, poolID string, limit int) ([]model.LeadCandidate, error) {
	return s.queryCandidates(ctx,
		`SELECT `+pgCandidateColumns+` FROM lead_candidates WHERE pool_id = $1
		ORDER BY created_at, id LIMIT $2`, poolID, pgLimit(limit))
}

func (s *PostgresStore) ListCandidatesNeedingEnrichment(ctx context.Context, poolID string, limit int) ([]model.LeadCandidate, error) {
	return s.queryCandidates(ctx,
		`SELECT `+pgCandidateColumns+` FROM lead_candidates
		WHERE pool_id = $1 AND (description = '' OR industry = '')
		ORDER BY created_at, id LIMIT $2`, poolID, pgLimit(limit))
}

func (s *PostgresStore) queryCandidates(ctx context.Context, query string, args ...any) ([]model.LeadCandidate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query candidates")
	}
	defer rows.Close()

	var out []model.LeadCandidate
	for rows.Next() {
		c, err := pgScanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func pgScanCandidate(row pgx.Row) (*model.LeadCandidate, error) {
	var c model.LeadCandidate
	var companyID *string
	var tech []byte
	var status string
	if err := row.Scan(&c.ID, &c.PoolID, &companyID, &c.Domain, &c.CompanyName, &c.Description, &c.Industry,
		&tech, &c.HomepageURL, &c.Score, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if companyID != nil {
		c.CompanyID = *companyID
	}
	c.Status = model.CandidateStatus(status)
	if err := json.Unmarshal(tech, &c.TechStack); err != nil {
		return nil, eris.Wrap(err, "unmarshal tech stack")
	}
	return &c, nil
}

// --- Contacts ---

const pgContactColumns = `id, candidate_id, pool_id, full_name, title, email, phone, linkedin_url, dedupe_key, confidence, status, created_at`

func (s *PostgresStore) SaveContact(ctx context.Context, c *model.ContactCandidate) (bool, error) {
	if !c.Reachable() {
		return false, eris.New("postgres: contact requires email or phone")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now()

	var id string
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contact_candidates (`+pgContactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (pool_id, dedupe_key) DO UPDATE SET
			full_name = EXCLUDED.full_name, title = EXCLUDED.title, email = EXCLUDED.email,
			phone = EXCLUDED.phone, linkedin_url = EXCLUDED.linkedin_url,
			confidence = GREATEST(contact_candidates.confidence, EXCLUDED.confidence)
		RETURNING id, (xmax = 0)`,
		c.ID, c.CandidateID, c.PoolID, c.FullName, c.Title, c.Email, c.Phone, c.LinkedInURL,
		c.DedupeKey, c.Confidence, string(c.Status), c.CreatedAt,
	).Scan(&id, &inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: save contact %s", c.FullName)
	}
	c.ID = id
	return inserted, nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, candidateID string) ([]model.ContactCandidate, error) {
	return s.queryContacts(ctx,
		`SELECT `+pgContactColumns+` FROM contact_candidates WHERE candidate_id = $1 ORDER BY created_at, id`, candidateID)
}

func (s *PostgresStore) ListPoolContacts(ctx context.Context, poolID string) ([]model.ContactCandidate, error) {
	return s.queryContacts(ctx,
		`SELECT `+pgContactColumns+` FROM contact_candidates WHERE pool_id = $1 ORDER BY created_at, id`, poolID)
}

func (s *PostgresStore) queryContacts(ctx context.Context, query string, args ...any) ([]model.ContactCandidate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query contacts")
	}
	defer rows.Close()

	var out []model.ContactCandidate
	for rows.Next() {
		var c model.ContactCandidate
		var status string
		if err := rows.Scan(&c.ID, &c.CandidateID, &c.PoolID, &c.FullName, &c.Title, &c.Email, &c.Phone,
			&c.LinkedInURL, &c.DedupeKey, &c.Confidence, &status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		c.Status = model.ContactStatus(status)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate contacts")
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, j *model.LeadGenJob) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = model.JobStatusPending
	}
	ts := now()
	j.CreatedAt, j.UpdatedAt = ts, ts

	providers, err := json.Marshal(j.Providers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal providers")
	}
	templates, err := json.Marshal(nonNil(j.QueryTemplates))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal templates")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO lead_gen_jobs (id, pool_id, user_id, providers, query_templates, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		j.ID, j.PoolID, j.UserID, providers, templates, string(j.Status), j.CreatedAt, j.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert job %s", j.ID)
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.LeadGenJob, error) {
	var j model.LeadGenJob
	var providers, templates []byte
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, pool_id, user_id, providers, query_templates, status,
			queries, source_events, candidates_created, enriched, enrich_failed, contacts_saved,
			created_at, updated_at
		FROM lead_gen_jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.PoolID, &j.UserID, &providers, &templates, &status,
		&j.Counters.Queries, &j.Counters.SourceEvents, &j.Counters.CandidatesCreated,
		&j.Counters.Enriched, &j.Counters.EnrichFailed, &j.Counters.ContactsSaved,
		&j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal(providers, &j.Providers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal providers")
	}
	if err := json.Unmarshal(templates, &j.QueryTemplates); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal templates")
	}

	logs, err := s.ListLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	j.Logs = logs
	return &j, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_gen_jobs SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), now())
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", id)
	}
	return checkTag(tag, "job", id)
}

func (s *PostgresStore) StartJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_gen_jobs SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $2`,
		id, string(model.JobStatusRunning), now())
	if err != nil {
		return eris.Wrapf(err, "postgres: start job %s", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lead_gen_jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return eris.Wrapf(err, "postgres: start job %s", id)
	}
	if exists {
		return eris.Wrapf(ErrJobRunning, "job %s", id)
	}
	return eris.Wrapf(ErrNotFound, "job %s", id)
}

func (s *PostgresStore) IncrementCounters(ctx context.Context, id string, d model.JobCounters) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_gen_jobs SET
			queries = queries + $2, source_events = source_events + $3,
			candidates_created = candidates_created + $4, enriched = enriched + $5,
			enrich_failed = enrich_failed + $6, contacts_saved = contacts_saved + $7,
			updated_at = $8
		WHERE id = $1`,
		id, d.Queries, d.SourceEvents, d.CandidatesCreated, d.Enriched, d.EnrichFailed, d.ContactsSaved, now(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment counters %s", id)
	}
	return checkTag(tag, "job", id)
}

var logColumns = []string{"job_id", "ts", "level", "message"}

func (s *PostgresStore) AppendLogs(ctx context.Context, entries []model.JobLogEntry) error {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.JobID, e.Timestamp.UTC(), string(e.Level), e.Message}
	}
	_, err := db.CopyFrom(ctx, s.pool, "job_logs", logColumns, rows)
	return eris.Wrap(err, "postgres: append logs")
}

func (s *PostgresStore) ListLogs(ctx context.Context, jobID string) ([]model.JobLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, ts, level, message FROM job_logs WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query logs")
	}
	defer rows.Close()

	var out []model.JobLogEntry
	for rows.Next() {
		var e model.JobLogEntry
		var level string
		if err := rows.Scan(&e.JobID, &e.Timestamp, &level, &e.Message); err != nil {
			return nil, eris.Wrap(err, "postgres: scan log")
		}
		e.Level = model.LogLevel(level)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate logs")
}

func (s *PostgresStore) RecordSourceEvent(ctx context.Context, e *model.LeadSourceEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal event metadata")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lead_source_events (id, job_id, type, query, url, fetched_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.JobID, string(e.Type), e.Query, e.URL, e.FetchedAt.UTC(), meta,
	)
	return eris.Wrap(err, "postgres: insert source event")
}

func (s *PostgresStore) ListSourceEvents(ctx context.Context, jobID string) ([]model.LeadSourceEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_id, type, query, url, fetched_at, metadata FROM lead_source_events
		WHERE job_id = $1 ORDER BY fetched_at, id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query source events")
	}
	defer rows.Close()

	var out []model.LeadSourceEvent
	for rows.Next() {
		var e model.LeadSourceEvent
		var typ string
		var meta []byte
		if err := rows.Scan(&e.ID, &e.JobID, &typ, &e.Query, &e.URL, &e.FetchedAt, &meta); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source event")
		}
		e.Type = model.SourceEventType(typ)
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal event metadata")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate source events")
}

// --- Pools ---

func (s *PostgresStore) SavePool(ctx context.Context, p *model.Pool) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	targeting, err := json.Marshal(p.Targeting)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal targeting")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pools (id, name, targeting) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, targeting = EXCLUDED.targeting`,
		p.ID, p.Name, targeting,
	)
	return eris.Wrapf(err, "postgres: save pool %s", p.ID)
}

func (s *PostgresStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	var p model.Pool
	var targeting []byte
	err := s.pool.QueryRow(ctx, `SELECT id, name, targeting FROM pools WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &targeting)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "pool %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get pool %s", id)
	}
	if err := json.Unmarshal(targeting, &p.Targeting); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal targeting")
	}
	return &p, nil
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func pgLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
