package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/normalize"
)

// runRepositoryContract exercises behavior every Store must share.
func runRepositoryContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("company upsert merges by dedupe key", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.UpsertCompany(ctx, CompanyUpsert{
			Domain:      "https://www.TacoPlace.com/menu",
			CompanyName: "Taco Place",
			TechStack:   []string{"Square"},
			Provenance:  model.ProvenanceEntry{Source: model.SourceSERP, JobID: "job-1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "tacoplace.com", first.Domain)
		assert.Equal(t, "company:tacoplace.com", first.DedupeKey)
		require.Len(t, first.Provenance, 1)

		second, err := s.UpsertCompany(ctx, CompanyUpsert{
			Domain:      "tacoplace.com",
			Description: "Family taqueria",
			TechStack:   []string{"WordPress"},
			Provenance:  model.ProvenanceEntry{Source: model.SourceEnrichment, JobID: "job-2"},
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Taco Place", second.CompanyName)
		assert.Equal(t, "Family taqueria", second.Description)
		assert.Equal(t, []string{"Square", "WordPress"}, second.TechStack)
		require.Len(t, second.Provenance, 2)
		assert.Equal(t, "job-1", second.Provenance[0].JobID)
		assert.Equal(t, "job-2", second.Provenance[1].JobID)

		got, err := s.GetCompanyByDomain(ctx, "www.tacoplace.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)

		missing, err := s.GetCompanyByDomain(ctx, "unknown.com")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("candidate unique per pool and domain", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SavePool(ctx, &model.Pool{ID: "pool-1", Name: "Tacos"}))
		require.NoError(t, s.SavePool(ctx, &model.Pool{ID: "pool-2", Name: "Other"}))

		created, err := s.CreateCandidate(ctx, &model.LeadCandidate{
			PoolID: "pool-1", Domain: "tacoplace.com", Score: model.DefaultCandidateScore, Status: model.CandidateStatusNew,
		})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.CreateCandidate(ctx, &model.LeadCandidate{
			PoolID: "pool-1", Domain: "tacoplace.com", Status: model.CandidateStatusNew,
		})
		require.NoError(t, err)
		assert.False(t, created)

		created, err = s.CreateCandidate(ctx, &model.LeadCandidate{
			PoolID: "pool-2", Domain: "tacoplace.com", Status: model.CandidateStatusNew,
		})
		require.NoError(t, err)
		assert.True(t, created)

		list, err := s.ListCandidates(ctx, "pool-1", 0)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		c, err := s.GetCandidate(ctx, "pool-1", "tacoplace.com")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, model.DefaultCandidateScore, c.Score)

		none, err := s.GetCandidate(ctx, "pool-1", "nope.com")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("needing enrichment drops enriched candidates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SavePool(ctx, &model.Pool{ID: "pool-1"}))

		for _, d := range []string{"a.com", "b.com", "c.com"} {
			_, err := s.CreateCandidate(ctx, &model.LeadCandidate{PoolID: "pool-1", Domain: d, Status: model.CandidateStatusNew})
			require.NoError(t, err)
		}
		b, err := s.GetCandidate(ctx, "pool-1", "b.com")
		require.NoError(t, err)
		b.Description = "desc"
		b.Industry = "Retail"
		b.TechStack = []string{"Shopify"}
		require.NoError(t, s.UpdateCandidate(ctx, b))

		pending, err := s.ListCandidatesNeedingEnrichment(ctx, "pool-1", 0)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "a.com", pending[0].Domain)
		assert.Equal(t, "c.com", pending[1].Domain)

		limited, err := s.ListCandidatesNeedingEnrichment(ctx, "pool-1", 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		err = s.UpdateCandidate(ctx, &model.LeadCandidate{ID: "missing"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("contacts require reachability and dedupe within pool", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SavePool(ctx, &model.Pool{ID: "pool-1"}))
		cand := &model.LeadCandidate{PoolID: "pool-1", Domain: "tacoplace.com", Status: model.CandidateStatusNew}
		_, err := s.CreateCandidate(ctx, cand)
		require.NoError(t, err)

		_, err = s.SaveContact(ctx, &model.ContactCandidate{CandidateID: cand.ID, PoolID: "pool-1", FullName: "Nobody"})
		require.Error(t, err)

		key := "email:maria@tacoplace.com"
		created, err := s.SaveContact(ctx, &model.ContactCandidate{
			CandidateID: cand.ID, PoolID: "pool-1", FullName: "Maria Lopez", Email: "maria@tacoplace.com",
			DedupeKey: &key, Confidence: 80, Status: model.ContactStatusNew,
		})
		require.NoError(t, err)
		assert.True(t, created)

		again := key
		created, err = s.SaveContact(ctx, &model.ContactCandidate{
			CandidateID: cand.ID, PoolID: "pool-1", FullName: "Maria Lopez", Title: "Owner",
			Email: "maria@tacoplace.com", DedupeKey: &again, Confidence: 60, Status: model.ContactStatusNew,
		})
		require.NoError(t, err)
		assert.False(t, created)

		created, err = s.SaveContact(ctx, &model.ContactCandidate{
			CandidateID: cand.ID, PoolID: "pool-1", FullName: normalize.DirectContactName, Phone: "+15055551234",
			Status: model.ContactStatusNew,
		})
		require.NoError(t, err)
		assert.True(t, created)

		contacts, err := s.ListContacts(ctx, cand.ID)
		require.NoError(t, err)
		require.Len(t, contacts, 2)
		assert.Equal(t, "Owner", contacts[0].Title)
		assert.Equal(t, 80, contacts[0].Confidence)
		assert.Nil(t, contacts[1].DedupeKey)

		poolContacts, err := s.ListPoolContacts(ctx, "pool-1")
		require.NoError(t, err)
		assert.Len(t, poolContacts, 2)
	})

	t.Run("jobs track status counters logs and events", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SavePool(ctx, &model.Pool{ID: "pool-1"}))

		job := &model.LeadGenJob{PoolID: "pool-1", UserID: "u1", Providers: model.JobProviders{SERP: true}}
		require.NoError(t, s.CreateJob(ctx, job))
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)

		require.NoError(t, s.UpdateJobStatus(ctx, job.ID, model.JobStatusRunning))
		require.NoError(t, s.IncrementCounters(ctx, job.ID, model.JobCounters{Queries: 2, CandidatesCreated: 3}))
		require.NoError(t, s.IncrementCounters(ctx, job.ID, model.JobCounters{Queries: 1}))

		ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		require.NoError(t, s.AppendLogs(ctx, []model.JobLogEntry{
			{JobID: job.ID, Timestamp: ts, Level: model.LogInfo, Message: "first"},
			{JobID: job.ID, Timestamp: ts, Level: model.LogWarn, Message: "second"},
		}))
		require.NoError(t, s.AppendLogs(ctx, nil))

		require.NoError(t, s.RecordSourceEvent(ctx, &model.LeadSourceEvent{
			JobID: job.ID, Type: model.SourceEventSERP, Query: "tacos albuquerque", FetchedAt: ts,
			Metadata: model.SourceEventMetadata{Domains: []string{"tacoplace.com"}, TotalResults: 1},
		}))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, got.Status)
		assert.True(t, got.Providers.SERP)
		assert.Equal(t, 3, got.Counters.Queries)
		assert.Equal(t, 3, got.Counters.CandidatesCreated)
		require.Len(t, got.Logs, 2)
		assert.Equal(t, "first", got.Logs[0].Message)
		assert.Equal(t, model.LogWarn, got.Logs[1].Level)

		events, err := s.ListSourceEvents(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, []string{"tacoplace.com"}, events[0].Metadata.Domains)

		_, err = s.GetJob(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(s.UpdateJobStatus(ctx, "missing", model.JobStatusFailed), ErrNotFound))
	})

	t.Run("start job moves to running once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.SavePool(ctx, &model.Pool{ID: "pool-1"}))
		job := &model.LeadGenJob{PoolID: "pool-1"}
		require.NoError(t, s.CreateJob(ctx, job))

		require.NoError(t, s.StartJob(ctx, job.ID))
		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, got.Status)

		assert.True(t, errors.Is(s.StartJob(ctx, job.ID), ErrJobRunning))
		assert.True(t, errors.Is(s.StartJob(ctx, "missing"), ErrNotFound))

		require.NoError(t, s.UpdateJobStatus(ctx, job.ID, model.JobStatusCompleted))
		assert.NoError(t, s.StartJob(ctx, job.ID), "finished jobs can be rerun")
	})

	t.Run("pools round trip targeting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p := &model.Pool{Name: "Tacos", Targeting: model.TargetingProfile{
			Industries: []string{"Restaurant"},
			Geos:       []string{"Albuquerque, NM"},
			Limits:     model.TargetingLimits{MaxCompanies: 5},
		}}
		require.NoError(t, s.SavePool(ctx, p))

		got, err := s.GetPool(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Tacos", got.Name)
		assert.Equal(t, []string{"Restaurant"}, got.Targeting.Industries)
		assert.Equal(t, 5, got.Targeting.MaxCompanies())

		_, err = s.GetPool(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runRepositoryContract(t, func(*testing.T) Store { return NewMemory() })
}

func TestSQLiteStore_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Store { return newTestSQLiteStore(t) })
}
