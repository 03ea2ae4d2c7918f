package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func companyRow(mock pgxmock.PgxPoolIface, prov string) *pgxmock.Rows {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return mock.NewRows([]string{"id", "domain", "dedupe_key", "company_name", "description", "industry",
		"tech_stack", "status", "provenance", "first_seen", "last_seen"}).
		AddRow("c1", "tacoplace.com", "company:tacoplace.com", "Taco Place", "", "",
			[]byte(`["Square"]`), "ACTIVE", []byte(prov), ts, ts)
}

func TestPostgresStore_UpsertCompany_SingleStatement(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO global_companies .* ON CONFLICT \(dedupe_key\) DO UPDATE SET .*provenance\s+= global_companies.provenance \|\| EXCLUDED.provenance`).
		WithArgs(pgxmock.AnyArg(), "tacoplace.com", "company:tacoplace.com", "Taco Place", "", "",
			[]byte(`["Square"]`), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(companyRow(mock, `[{"source":"serp","job_id":"j1","timestamp":"2026-01-01T00:00:00Z"},{"source":"serp","job_id":"j2","timestamp":"2026-01-01T00:00:00Z"}]`))

	c, err := s.UpsertCompany(context.Background(), CompanyUpsert{
		Domain:      "www.tacoplace.com",
		CompanyName: "Taco Place",
		TechStack:   []string{"Square"},
		Provenance:  model.ProvenanceEntry{Source: model.SourceSERP, JobID: "j2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, []string{"Square"}, c.TechStack)
	assert.Len(t, c.Provenance, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompanyByDomain_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM global_companies WHERE dedupe_key = \$1`).
		WithArgs("company:unknown.com").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompanyByDomain(context.Background(), "unknown.com")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateCandidate_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO lead_candidates .* ON CONFLICT \(pool_id, domain\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := s.CreateCandidate(context.Background(), &model.LeadCandidate{PoolID: "p", Domain: "tacoplace.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveContact_ReportsInsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO contact_candidates .* ON CONFLICT \(pool_id, dedupe_key\) DO UPDATE .* RETURNING id, \(xmax = 0\)`).
		WillReturnRows(mock.NewRows([]string{"id", "inserted"}).AddRow("existing", false))

	key := "email:maria@tacoplace.com"
	c := &model.ContactCandidate{PoolID: "p", CandidateID: "c", FullName: "Maria", Email: "maria@tacoplace.com", DedupeKey: &key}
	created, err := s.SaveContact(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing", c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveContact_Unreachable(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.SaveContact(context.Background(), &model.ContactCandidate{FullName: "Nobody"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLogs_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectCopyFrom(pgx.Identifier{"job_logs"}, []string{"job_id", "ts", "level", "message"}).
		WillReturnResult(2)

	err := s.AppendLogs(context.Background(), []model.JobLogEntry{
		{JobID: "j1", Timestamp: ts, Level: model.LogInfo, Message: "a"},
		{JobID: "j1", Timestamp: ts, Level: model.LogInfo, Message: "b"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementCounters_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_gen_jobs SET\s+queries = queries \+ \$2`).
		WithArgs("missing", 1, 0, 0, 0, 0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.IncrementCounters(context.Background(), "missing", model.JobCounters{Queries: 1})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM lead_gen_jobs WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_RequiresPool(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	assert.Error(t, s.Migrate(context.Background()))
}

func TestPostgresStore_StartJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE lead_gen_jobs SET status = \$2, updated_at = \$3 WHERE id = \$1 AND status <> \$2`).
		WithArgs("j1", "RUNNING", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.StartJob(ctx, "j1"))

	mock.ExpectExec(`UPDATE lead_gen_jobs SET status = \$2`).
		WithArgs("j1", "RUNNING", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM lead_gen_jobs WHERE id = \$1\)`).
		WithArgs("j1").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))
	assert.True(t, errors.Is(s.StartJob(ctx, "j1"), ErrJobRunning))

	mock.ExpectExec(`UPDATE lead_gen_jobs SET status = \$2`).
		WithArgs("nope", "RUNNING", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("nope").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))
	assert.True(t, errors.Is(s.StartJob(ctx, "nope"), ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}
