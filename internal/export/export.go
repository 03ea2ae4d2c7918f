// Package export pushes a pool's qualified candidates and their contacts to
// spreadsheets and CRMs.
package export

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Lead is a candidate with its saved contacts, best contact first.
type Lead struct {
	Candidate model.LeadCandidate
	Contacts  []model.ContactCandidate
}

// PrimaryContact returns the highest-confidence contact, or nil.
func (l Lead) PrimaryContact() *model.ContactCandidate {
	if len(l.Contacts) == 0 {
		return nil
	}
	return &l.Contacts[0]
}

// Repository is the read side of the store used for export.
type Repository interface {
	ListCandidates(ctx context.Context, poolID string, limit int) ([]model.LeadCandidate, error)
	ListPoolContacts(ctx context.Context, poolID string) ([]model.ContactCandidate, error)
}

// Filter selects which candidates are exported.
type Filter struct {
	MinScore        int
	Limit           int
	IncludeRejected bool
}

// Result counts what a sink wrote.
type Result struct {
	Companies int `json:"companies"`
	Contacts  int `json:"contacts"`
	Skipped   int `json:"skipped"`
}

// Exporter writes leads to one destination.
type Exporter interface {
	Name() string
	Export(ctx context.Context, leads []Lead) (Result, error)
}

// Collect loads the pool's leads, highest score first.
func Collect(ctx context.Context, repo Repository, poolID string, f Filter) ([]Lead, error) {
	candidates, err := repo.ListCandidates(ctx, poolID, 0)
	if err != nil {
		return nil, eris.Wrap(err, "export: list candidates")
	}
	contacts, err := repo.ListPoolContacts(ctx, poolID)
	if err != nil {
		return nil, eris.Wrap(err, "export: list contacts")
	}

	byCandidate := make(map[string][]model.ContactCandidate)
	for _, c := range contacts {
		byCandidate[c.CandidateID] = append(byCandidate[c.CandidateID], c)
	}

	var leads []Lead
	for _, c := range candidates {
		if c.Score < f.MinScore {
			continue
		}
		if c.Status == model.CandidateStatusRejected && !f.IncludeRejected {
			continue
		}
		cs := byCandidate[c.ID]
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].Confidence > cs[j].Confidence })
		leads = append(leads, Lead{Candidate: c, Contacts: cs})
	}

	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Candidate.Score != leads[j].Candidate.Score {
			return leads[i].Candidate.Score > leads[j].Candidate.Score
		}
		return leads[i].Candidate.Domain < leads[j].Candidate.Domain
	})
	if f.Limit > 0 && len(leads) > f.Limit {
		leads = leads[:f.Limit]
	}
	return leads, nil
}

// Run exports to every sink concurrently. Results are keyed by sink name.
func Run(ctx context.Context, leads []Lead, sinks ...Exporter) (map[string]Result, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(sinks))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sinks {
		g.Go(func() error {
			res, err := s.Export(gctx, leads)
			if err != nil {
				return eris.Wrapf(err, "export: %s", s.Name())
			}
			zap.L().Info("export complete",
				zap.String("sink", s.Name()),
				zap.Int("companies", res.Companies),
				zap.Int("contacts", res.Contacts),
				zap.Int("skipped", res.Skipped),
			)
			mu.Lock()
			results[s.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
