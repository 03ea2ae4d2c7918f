package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single writer avoids SQLITE_BUSY between the job runner and the log sink.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, "sqlite3", "migrations/sqlite")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Companies ---

const sqliteCompanyColumns = `id, domain, dedupe_key, company_name, description, industry, tech_stack, status, provenance, first_seen, last_seen`

func (s *SQLiteStore) UpsertCompany(ctx context.Context, u CompanyUpsert) (*model.GlobalCompany, error) {
	key, ok := normalize.CompanyDedupeKey(u.Domain)
	if !ok {
		return nil, eris.Errorf("sqlite: invalid domain %q", u.Domain)
	}
	domain, _ := normalize.Domain(u.Domain)
	ts := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert company")
	}
	defer tx.Rollback() //nolint:errcheck

	c, err := scanCompany(tx.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyColumns+` FROM global_companies WHERE dedupe_key = ?`, key))
	if err != nil {
		return nil, err
	}

	if c == nil {
		c = &model.GlobalCompany{
			ID:        uuid.New().String(),
			Domain:    domain,
			DedupeKey: key,
			Status:    model.CompanyStatusActive,
			FirstSeen: ts,
		}
		mergeCompany(c, u, ts)
		tech, prov, err := marshalCompanyJSON(c)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO global_companies (`+sqliteCompanyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Domain, c.DedupeKey, c.CompanyName, c.Description, c.Industry, tech, string(c.Status), prov, c.FirstSeen, c.LastSeen,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert company %s", domain)
		}
	} else {
		mergeCompany(c, u, ts)
		tech, prov, err := marshalCompanyJSON(c)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE global_companies SET company_name = ?, description = ?, industry = ?, tech_stack = ?, provenance = ?, last_seen = ? WHERE id = ?`,
			c.CompanyName, c.Description, c.Industry, tech, prov, c.LastSeen, c.ID,
		)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: update company %s", domain)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert company")
	}
	return c, nil
}

func (s *SQLiteStore) GetCompanyByDomain(ctx context.Context, domain string) (*model.GlobalCompany, error) {
	key, ok := normalize.CompanyDedupeKey(domain)
	if !ok {
		return nil, nil
	}
	return scanCompany(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCompanyColumns+` FROM global_companies WHERE dedupe_key = ?`, key))
}

func scanCompany(row scannable) (*model.GlobalCompany, error) {
	var c model.GlobalCompany
	var tech, prov, status string
	err := row.Scan(&c.ID, &c.Domain, &c.DedupeKey, &c.CompanyName, &c.Description, &c.Industry,
		&tech, &status, &prov, &c.FirstSeen, &c.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan company")
	}
	c.Status = model.CompanyStatus(status)
	if err := json.Unmarshal([]byte(tech), &c.TechStack); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal tech stack")
	}
	if err := json.Unmarshal([]byte(prov), &c.Provenance); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal provenance")
	}
	return &c, nil
}

func marshalCompanyJSON(c *model.GlobalCompany) (string, string, error) {
	tech, err := json.Marshal(nonNil(c.TechStack))
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: marshal tech stack")
	}
	prov, err := json.Marshal(c.Provenance)
	if err != nil {
		return "", "", eris.Wrap(err, "sqlite: marshal provenance")
	}
	return string(tech), string(prov), nil
}

// --- Candidates ---

const sqliteCandidateColumns = `id, pool_id, company_id, domain, company_name, description, industry, tech_stack, homepage_url, score, status, created_at, updated_at`

func (s *SQLiteStore) CreateCandidate(ctx context.Context, c *model.LeadCandidate) (bool, error) {
	if c.Domain == "" || c.PoolID == "" {
		return false, eris.New("sqlite: candidate requires pool and domain")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	tech, err := json.Marshal(nonNil(c.TechStack))
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal tech stack")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_candidates (`+sqliteCandidateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pool_id, domain) DO NOTHING`,
		c.ID, c.PoolID, nullString(c.CompanyID), c.Domain, c.CompanyName, c.Description, c.Industry,
		string(tech), c.HomepageURL, c.Score, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert candidate %s", c.Domain)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, poolID, domain string) (*model.LeadCandidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteCandidateColumns+` FROM lead_candidates WHERE pool_id = ? AND domain = ?`, poolID, domain)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *SQLiteStore) UpdateCandidate(ctx context.Context, c *model.LeadCandidate) error {
	c.UpdatedAt = now()
	tech, err := json.Marshal(nonNil(c.TechStack))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tech stack")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_candidates SET company_id = ?, company_name = ?, description = ?, industry = ?, tech_stack = ?,
		homepage_url = ?, score = ?, status = ?, updated_at = ? WHERE id = ?`,
		nullString(c.CompanyID), c.CompanyName, c.Description, c.Industry, string(tech),
		c.HomepageURL, c.Score, string(c.Status), c.UpdatedAt, c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update candidate %s", c.ID)
	}
	return checkRowsAffected(res, "candidate", c.ID)
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, poolID string, limit int) ([]model.LeadCandidate, error) {
	return s.queryCandidates(ctx,
		`SELECT `+sqliteCandidateColumns+` FROM lead_candidates WHERE pool_id = ? ORDER BY created_at, rowid LIMIT ?`,
		poolID, sqlLimit(limit))
}

func (s *SQLiteStore) ListCandidatesNeedingEnrichment(ctx context.Context, poolID string, limit int) ([]model.LeadCandidate, error) {
	return s.queryCandidates(ctx,
		`SELECT `+sqliteCandidateColumns+` FROM lead_candidates
		WHERE pool_id = ? AND (description = '' OR industry = '')
		ORDER BY created_at, rowid LIMIT ?`,
		poolID, sqlLimit(limit))
}

func (s *SQLiteStore) queryCandidates(ctx context.Context, query string, args ...any) ([]model.LeadCandidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query candidates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LeadCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func scanCandidate(row scannable) (*model.LeadCandidate, error) {
	var c model.LeadCandidate
	var companyID sql.NullString
	var tech, status string
	err := row.Scan(&c.ID, &c.PoolID, &companyID, &c.Domain, &c.CompanyName, &c.Description, &c.Industry,
		&tech, &c.HomepageURL, &c.Score, &status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan candidate")
	}
	c.CompanyID = companyID.String
	c.Status = model.CandidateStatus(status)
	if err := json.Unmarshal([]byte(tech), &c.TechStack); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal tech stack")
	}
	return &c, nil
}

// --- Contacts ---

const sqliteContactColumns = `id, candidate_id, pool_id, full_name, title, email, phone, linkedin_url, dedupe_key, confidence, status, created_at`

func (s *SQLiteStore) SaveContact(ctx context.Context, c *model.ContactCandidate) (bool, error) {
	if !c.Reachable() {
		return false, eris.New("sqlite: contact requires email or phone")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now()

	var existingID string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO contact_candidates (`+sqliteContactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (pool_id, dedupe_key) DO UPDATE SET
			full_name = excluded.full_name, title = excluded.title, email = excluded.email,
			phone = excluded.phone, linkedin_url = excluded.linkedin_url, confidence = MAX(confidence, excluded.confidence)
		RETURNING id`,
		c.ID, c.CandidateID, c.PoolID, c.FullName, c.Title, c.Email, c.Phone, c.LinkedInURL,
		c.DedupeKey, c.Confidence, string(c.Status), c.CreatedAt,
	).Scan(&existingID)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: save contact %s", c.FullName)
	}
	created := existingID == c.ID
	c.ID = existingID
	return created, nil
}

func (s *SQLiteStore) ListContacts(ctx context.Context, candidateID string) ([]model.ContactCandidate, error) {
	return s.queryContacts(ctx,
		`SELECT `+sqliteContactColumns+` FROM contact_candidates WHERE candidate_id = ? ORDER BY created_at, rowid`, candidateID)
}

func (s *SQLiteStore) ListPoolContacts(ctx context.Context, poolID string) ([]model.ContactCandidate, error) {
	return s.queryContacts(ctx,
		`SELECT `+sqliteContactColumns+` FROM contact_candidates WHERE pool_id = ? ORDER BY created_at, rowid`, poolID)
}

func (s *SQLiteStore) queryContacts(ctx context.Context, query string, args ...any) ([]model.ContactCandidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query contacts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ContactCandidate
	for rows.Next() {
		var c model.ContactCandidate
		var key sql.NullString
		var status string
		if err := rows.Scan(&c.ID, &c.CandidateID, &c.PoolID, &c.FullName, &c.Title, &c.Email, &c.Phone,
			&c.LinkedInURL, &key, &c.Confidence, &status, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		if key.Valid {
			c.DedupeKey = &key.String
		}
		c.Status = model.ContactStatus(status)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate contacts")
}

// --- Jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, j *model.LeadGenJob) error {
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
		return eris.Wrap(err, "sqlite: marshal providers")
	}
	templates, err := json.Marshal(nonNil(j.QueryTemplates))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal templates")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lead_gen_jobs (id, pool_id, user_id, providers, query_templates, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.PoolID, j.UserID, string(providers), string(templates), string(j.Status), j.CreatedAt, j.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert job %s", j.ID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.LeadGenJob, error) {
	var j model.LeadGenJob
	var providers, templates, status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, pool_id, user_id, providers, query_templates, status,
			queries, source_events, candidates_created, enriched, enrich_failed, contacts_saved,
			created_at, updated_at
		FROM lead_gen_jobs WHERE id = ?`, id,
	).Scan(&j.ID, &j.PoolID, &j.UserID, &providers, &templates, &status,
		&j.Counters.Queries, &j.Counters.SourceEvents, &j.Counters.CandidatesCreated,
		&j.Counters.Enriched, &j.Counters.EnrichFailed, &j.Counters.ContactsSaved,
		&j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(providers), &j.Providers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal providers")
	}
	if err := json.Unmarshal([]byte(templates), &j.QueryTemplates); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal templates")
	}

	logs, err := s.ListLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	j.Logs = logs
	return &j, nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_gen_jobs SET status = ?, updated_at = ? WHERE id = ?`, string(status), now(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) StartJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_gen_jobs SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		string(model.JobStatusRunning), now(), id, string(model.JobStatusRunning))
	if err != nil {
		return eris.Wrapf(err, "sqlite: start job %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM lead_gen_jobs WHERE id = ?)`, id).Scan(&exists); err != nil {
		return eris.Wrapf(err, "sqlite: start job %s", id)
	}
	if exists {
		return eris.Wrapf(ErrJobRunning, "job %s", id)
	}
	return eris.Wrapf(ErrNotFound, "job %s", id)
}

func (s *SQLiteStore) IncrementCounters(ctx context.Context, id string, d model.JobCounters) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_gen_jobs SET
			queries = queries + ?, source_events = source_events + ?, candidates_created = candidates_created + ?,
			enriched = enriched + ?, enrich_failed = enrich_failed + ?, contacts_saved = contacts_saved + ?,
			updated_at = ?
		WHERE id = ?`,
		d.Queries, d.SourceEvents, d.CandidatesCreated, d.Enriched, d.EnrichFailed, d.ContactsSaved, now(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment counters %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) AppendLogs(ctx context.Context, entries []model.JobLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO job_logs (job_id, ts, level, message) VALUES `)
	args := make([]any, 0, len(entries)*4)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, e.JobID, e.Timestamp.UTC(), string(e.Level), e.Message)
	}
	_, err := s.db.ExecContext(ctx, b.String(), args...)
	return eris.Wrap(err, "sqlite: append logs")
}

func (s *SQLiteStore) ListLogs(ctx context.Context, jobID string) ([]model.JobLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, ts, level, message FROM job_logs WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query logs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.JobLogEntry
	for rows.Next() {
		var e model.JobLogEntry
		var level string
		if err := rows.Scan(&e.JobID, &e.Timestamp, &level, &e.Message); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan log")
		}
		e.Level = model.LogLevel(level)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate logs")
}

func (s *SQLiteStore) RecordSourceEvent(ctx context.Context, e *model.LeadSourceEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal event metadata")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lead_source_events (id, job_id, type, query, url, fetched_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.JobID, string(e.Type), e.Query, e.URL, e.FetchedAt.UTC(), string(meta),
	)
	return eris.Wrap(err, "sqlite: insert source event")
}

func (s *SQLiteStore) ListSourceEvents(ctx context.Context, jobID string) ([]model.LeadSourceEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, type, query, url, fetched_at, metadata FROM lead_source_events
		WHERE job_id = ? ORDER BY fetched_at, rowid`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query source events")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LeadSourceEvent
	for rows.Next() {
		var e model.LeadSourceEvent
		var typ, meta string
		if err := rows.Scan(&e.ID, &e.JobID, &typ, &e.Query, &e.URL, &e.FetchedAt, &meta); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source event")
		}
		e.Type = model.SourceEventType(typ)
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal event metadata")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate source events")
}

// --- Pools ---

func (s *SQLiteStore) SavePool(ctx context.Context, p *model.Pool) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	targeting, err := json.Marshal(p.Targeting)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal targeting")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pools (id, name, targeting, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, targeting = excluded.targeting`,
		p.ID, p.Name, string(targeting), now(),
	)
	return eris.Wrapf(err, "sqlite: save pool %s", p.ID)
}

func (s *SQLiteStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	var p model.Pool
	var targeting string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, targeting FROM pools WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &targeting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "pool %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pool %s", id)
	}
	if err := json.Unmarshal([]byte(targeting), &p.Targeting); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal targeting")
	}
	return &p, nil
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
